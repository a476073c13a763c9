package forge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// GitHubService shells out to the `gh` CLI, mirroring the teacher's
// GHManager (gh_manager.go) and strata's PRService
// (internal/service/pr_service.go) subprocess-and-parse-JSON pattern.
type GitHubService struct {
	repoRoot string
	ghPath   string
}

// NewGitHubService resolves the gh binary and binds it to repoRoot.
func NewGitHubService(repoRoot string) (*GitHubService, error) {
	ghPath, err := exec.LookPath("gh")
	if err != nil {
		return nil, &Error{Class: StatusUnsupported, Message: "`gh` not installed; install GitHub CLI to submit to GitHub", Err: err}
	}
	return &GitHubService{repoRoot: repoRoot, ghPath: ghPath}, nil
}

func (s *GitHubService) SupportsDrafts() bool { return true }

type ghPRFields struct {
	Number      int    `json:"number"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	State       string `json:"state"`
	BaseRefName string `json:"baseRefName"`
	HeadRefName string `json:"headRefName"`
	IsDraft     bool   `json:"isDraft"`
}

const ghJSONFields = "number,url,title,body,state,baseRefName,headRefName,isDraft"

func (s *GitHubService) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.ghPath, args...)
	cmd.Dir = s.repoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, classifyGHError(err, out)
	}
	return out, nil
}

func classifyGHError(err error, out []byte) error {
	msg := strings.TrimSpace(string(out))
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "authentication") || strings.Contains(lower, "not logged"):
		return &Error{Class: StatusAuth, Message: "gh authentication error", Err: fmt.Errorf("%s", msg)}
	case strings.Contains(lower, "no pull requests found") || strings.Contains(lower, "not found"):
		return &Error{Class: StatusNotFound, Message: "not found", Err: fmt.Errorf("%s", msg)}
	case strings.Contains(lower, "already exists"):
		return &Error{Class: StatusConflict, Message: "conflict", Err: fmt.Errorf("%s", msg)}
	case msg == "":
		return &Error{Class: StatusUnknown, Message: "gh invocation failed", Err: err}
	default:
		return &Error{Class: StatusServer, Message: "gh invocation failed", Err: fmt.Errorf("%s", msg)}
	}
}

func (s *GitHubService) FindPRByHead(ctx context.Context, headBranch string) (*PullRequest, error) {
	out, err := s.run(ctx, "pr", "list", "--head", headBranch, "--json", ghJSONFields, "--limit", "1")
	if err != nil {
		return nil, err
	}
	var prs []ghPRFields
	if err := json.Unmarshal(out, &prs); err != nil {
		return nil, &Error{Class: StatusUnknown, Message: "failed to parse gh pr list output", Err: err}
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return fromGHFields(prs[0]), nil
}

func (s *GitHubService) GetPR(ctx context.Context, number int) (*PullRequest, error) {
	out, err := s.run(ctx, "pr", "view", strconv.Itoa(number), "--json", ghJSONFields)
	if err != nil {
		return nil, err
	}
	var f ghPRFields
	if err := json.Unmarshal(out, &f); err != nil {
		return nil, &Error{Class: StatusUnknown, Message: "failed to parse gh pr view output", Err: err}
	}
	return fromGHFields(f), nil
}

func (s *GitHubService) CreatePR(ctx context.Context, params CreateParams) (*PullRequest, error) {
	args := []string{"pr", "create",
		"--base", params.Base,
		"--head", params.Head,
		"--title", params.Title,
		"--body", params.Body,
	}
	if params.Draft {
		args = append(args, "--draft")
	}
	out, err := s.run(ctx, args...)
	if err != nil {
		// A concurrent submission may have created the PR first; treat
		// CreatePr as idempotent under re-submission and fall back to
		// discovery instead of failing.
		fe, ok := err.(*Error)
		if ok && fe.Class == StatusConflict {
			if existing, ferr := s.FindPRByHead(ctx, params.Head); ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}
	url := strings.TrimSpace(string(out))
	pr, err := s.FindPRByHead(ctx, params.Head)
	if err != nil || pr == nil {
		return &PullRequest{URL: url, Title: params.Title, Body: params.Body, BaseBranch: params.Base, HeadBranch: params.Head, State: StateOpen, IsDraft: params.Draft}, nil
	}
	return pr, nil
}

func (s *GitHubService) UpdatePRBase(ctx context.Context, number int, newBase string) error {
	_, err := s.run(ctx, "pr", "edit", strconv.Itoa(number), "--base", newBase)
	return err
}

func (s *GitHubService) PublishPR(ctx context.Context, number int) error {
	_, err := s.run(ctx, "pr", "ready", strconv.Itoa(number))
	return err
}

func (s *GitHubService) UpsertStackComment(ctx context.Context, number int, body, marker string) error {
	existingID, err := s.findManagedCommentID(ctx, number, marker)
	if err != nil {
		return err
	}
	if existingID != "" {
		_, err := s.run(ctx, "api", fmt.Sprintf("repos/{owner}/{repo}/issues/comments/%s", existingID), "-X", "PATCH", "-f", "body="+body)
		return err
	}
	_, err = s.run(ctx, "pr", "comment", strconv.Itoa(number), "--body", body)
	return err
}

type ghComment struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
}

func (s *GitHubService) findManagedCommentID(ctx context.Context, number int, marker string) (string, error) {
	out, err := s.run(ctx, "api", fmt.Sprintf("repos/{owner}/{repo}/issues/%d/comments", number))
	if err != nil {
		var fe *Error
		if errors.As(err, &fe) && fe.Class == StatusNotFound {
			return "", nil
		}
		return "", err
	}
	var comments []ghComment
	if err := json.Unmarshal(out, &comments); err != nil {
		return "", nil
	}
	for _, c := range comments {
		if strings.Contains(c.Body, marker) {
			return strconv.FormatInt(c.ID, 10), nil
		}
	}
	return "", nil
}

func fromGHFields(f ghPRFields) *PullRequest {
	return &PullRequest{
		Number:     f.Number,
		URL:        f.URL,
		Title:      f.Title,
		Body:       f.Body,
		BaseBranch: f.BaseRefName,
		HeadBranch: f.HeadRefName,
		State:      normalizeGHState(f.State),
		IsDraft:    f.IsDraft,
	}
}

func normalizeGHState(state string) State {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "MERGED":
		return StateMerged
	case "CLOSED":
		return StateClosed
	default:
		return StateOpen
	}
}
