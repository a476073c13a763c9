package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// GitLabService shells out to the `glab` CLI. GitLab models merge
// requests rather than PRs but exposes the same base-branch/draft
// shape ryu needs; field names below follow glab's `mr` JSON output.
type GitLabService struct {
	repoRoot string
	glabPath string
}

func NewGitLabService(repoRoot string) (*GitLabService, error) {
	glabPath, err := exec.LookPath("glab")
	if err != nil {
		return nil, &Error{Class: StatusUnsupported, Message: "`glab` not installed; install the GitLab CLI to submit to GitLab", Err: err}
	}
	return &GitLabService{repoRoot: repoRoot, glabPath: glabPath}, nil
}

func (s *GitLabService) SupportsDrafts() bool { return true }

type glabMRFields struct {
	IID          int    `json:"iid"`
	WebURL       string `json:"web_url"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	State        string `json:"state"`
	TargetBranch string `json:"target_branch"`
	SourceBranch string `json:"source_branch"`
	Draft        bool   `json:"draft"`
	WorkInProg   bool   `json:"work_in_progress"`
}

func (s *GitLabService) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.glabPath, args...)
	cmd.Dir = s.repoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, classifyGlabError(err, out)
	}
	return out, nil
}

func classifyGlabError(err error, out []byte) error {
	msg := strings.TrimSpace(string(out))
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "not logged"):
		return &Error{Class: StatusAuth, Message: "glab authentication error", Err: fmt.Errorf("%s", msg)}
	case strings.Contains(lower, "404") || strings.Contains(lower, "not found"):
		return &Error{Class: StatusNotFound, Message: "not found", Err: fmt.Errorf("%s", msg)}
	case strings.Contains(lower, "already exists") || strings.Contains(lower, "already open"):
		return &Error{Class: StatusConflict, Message: "conflict", Err: fmt.Errorf("%s", msg)}
	case msg == "":
		return &Error{Class: StatusUnknown, Message: "glab invocation failed", Err: err}
	default:
		return &Error{Class: StatusServer, Message: "glab invocation failed", Err: fmt.Errorf("%s", msg)}
	}
}

func (s *GitLabService) FindPRByHead(ctx context.Context, headBranch string) (*PullRequest, error) {
	out, err := s.run(ctx, "mr", "list", "--source-branch", headBranch, "-F", "json")
	if err != nil {
		return nil, err
	}
	var mrs []glabMRFields
	if err := json.Unmarshal(out, &mrs); err != nil {
		return nil, &Error{Class: StatusUnknown, Message: "failed to parse glab mr list output", Err: err}
	}
	if len(mrs) == 0 {
		return nil, nil
	}
	return fromGlabFields(mrs[0]), nil
}

func (s *GitLabService) GetPR(ctx context.Context, number int) (*PullRequest, error) {
	out, err := s.run(ctx, "mr", "view", strconv.Itoa(number), "-F", "json")
	if err != nil {
		return nil, err
	}
	var f glabMRFields
	if err := json.Unmarshal(out, &f); err != nil {
		return nil, &Error{Class: StatusUnknown, Message: "failed to parse glab mr view output", Err: err}
	}
	return fromGlabFields(f), nil
}

func (s *GitLabService) CreatePR(ctx context.Context, params CreateParams) (*PullRequest, error) {
	args := []string{"mr", "create",
		"--source-branch", params.Head,
		"--target-branch", params.Base,
		"--title", params.Title,
		"--description", params.Body,
		"--yes",
	}
	if params.Draft {
		args = append(args, "--draft")
	}
	_, err := s.run(ctx, args...)
	if err != nil {
		fe, ok := err.(*Error)
		if ok && fe.Class == StatusConflict {
			if existing, ferr := s.FindPRByHead(ctx, params.Head); ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}
	pr, err := s.FindPRByHead(ctx, params.Head)
	if err != nil || pr == nil {
		return &PullRequest{Title: params.Title, Body: params.Body, BaseBranch: params.Base, HeadBranch: params.Head, State: StateOpen, IsDraft: params.Draft}, nil
	}
	return pr, nil
}

func (s *GitLabService) UpdatePRBase(ctx context.Context, number int, newBase string) error {
	_, err := s.run(ctx, "mr", "update", strconv.Itoa(number), "--target-branch", newBase)
	return err
}

func (s *GitLabService) PublishPR(ctx context.Context, number int) error {
	_, err := s.run(ctx, "mr", "update", strconv.Itoa(number), "--ready")
	return err
}

func (s *GitLabService) UpsertStackComment(ctx context.Context, number int, body, marker string) error {
	existingID, err := s.findManagedNoteID(ctx, number, marker)
	if err != nil {
		return err
	}
	if existingID != "" {
		_, err := s.run(ctx, "api", fmt.Sprintf("merge_requests/%d/notes/%s", number, existingID), "-X", "PUT", "-f", "body="+body)
		return err
	}
	_, err = s.run(ctx, "mr", "note", strconv.Itoa(number), "--message", body)
	return err
}

type glabNote struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
}

func (s *GitLabService) findManagedNoteID(ctx context.Context, number int, marker string) (string, error) {
	out, err := s.run(ctx, "api", fmt.Sprintf("merge_requests/%d/notes", number))
	if err != nil {
		return "", nil
	}
	var notes []glabNote
	if err := json.Unmarshal(out, &notes); err != nil {
		return "", nil
	}
	for _, n := range notes {
		if strings.Contains(n.Body, marker) {
			return strconv.FormatInt(n.ID, 10), nil
		}
	}
	return "", nil
}

func fromGlabFields(f glabMRFields) *PullRequest {
	return &PullRequest{
		Number:     f.IID,
		URL:        f.WebURL,
		Title:      f.Title,
		Body:       f.Description,
		BaseBranch: f.TargetBranch,
		HeadBranch: f.SourceBranch,
		State:      normalizeGlabState(f.State),
		IsDraft:    f.Draft || f.WorkInProg,
	}
}

func normalizeGlabState(state string) State {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "merged":
		return StateMerged
	case "closed":
		return StateClosed
	default:
		return StateOpen
	}
}
