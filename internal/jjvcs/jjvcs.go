// Package jjvcs adapts a local Jujutsu workspace to the graph.Builder
// contract. Jujutsu-specific concepts (bookmarks, change ids, trunk())
// are resolved by shelling out to the jj binary, the same pattern the
// teacher uses for `gh` (see internal/forge). Ancestry walks that only
// need the underlying commit graph are answered by opening the git
// backend under .jj/repo/store/git directly with go-git, avoiding a
// jj subprocess per candidate bookmark.
package jjvcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mikkurogue/jj-ryu/internal/graph"
	"github.com/mikkurogue/jj-ryu/internal/rerr"
)

const defaultTimeout = 15 * time.Second

// Handle is a VCS handle bound to one jj workspace root.
type Handle struct {
	root   string
	jjPath string
	runner commandRunner
}

type commandRunner func(ctx context.Context, dir, name string, args ...string) (string, error)

// Open resolves the jj workspace root containing dir and returns a
// bound Handle, or a Vcs-category error naming the reason (jj not
// installed, dir not in a jj workspace).
func Open(dir string) (*Handle, error) {
	jjPath, err := exec.LookPath("jj")
	if err != nil {
		return nil, rerr.New(rerr.Vcs, errors.New("`jj` not installed; jj-ryu requires the Jujutsu CLI"))
	}
	h := &Handle{jjPath: jjPath, runner: runCommand}
	root, err := h.run(context.Background(), dir, "root")
	if err != nil {
		return nil, rerr.New(rerr.Vcs, fmt.Errorf("not inside a jj workspace: %w", err))
	}
	h.root = strings.TrimSpace(root)
	if h.root == "" {
		return nil, rerr.New(rerr.Vcs, errors.New("jj root returned an empty workspace path"))
	}
	return h, nil
}

// Root returns the workspace root directory.
func (h *Handle) Root() string { return h.root }

func (h *Handle) run(ctx context.Context, dir string, args ...string) (string, error) {
	return h.runner(ctx, dir, h.jjPath, args...)
}

func runCommand(ctx context.Context, dir, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%s %s timed out", name, strings.Join(args, " "))
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s: %s", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}

// TrunkName implements graph.Builder. trunk() resolves to a revision,
// not a bookmark name directly, so we ask jj which local bookmark
// currently points at it.
func (h *Handle) TrunkName() (string, error) {
	names, err := h.run(context.Background(), h.root, "bookmark", "list", "-r", "trunk()", "-T", "name++\"\\n\"")
	if err != nil {
		return "", fmt.Errorf("resolve trunk bookmark name: %w", err)
	}
	for _, line := range strings.Split(names, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
	}
	return "main", nil
}

// WorkingCopyChangeID implements graph.Builder.
func (h *Handle) WorkingCopyChangeID() (string, error) {
	out, err := h.run(context.Background(), h.root, "log", "--no-graph", "-r", "@", "-T", "change_id.short()")
	if err != nil {
		return "", fmt.Errorf("resolve working copy: %w", err)
	}
	id := strings.TrimSpace(out)
	if id == "" {
		return "", errors.New("empty working-copy change id")
	}
	return id, nil
}

// bookmarkTemplate renders the full (non-abbreviated) commit id:
// AncestorBookmarks and HasMergeAncestry feed Bookmark.CommitID into
// go-git's plumbing.NewHash, which needs the complete 40-hex-digit
// SHA-1, not jj's short prefix form.
const bookmarkTemplate = `name ++ "\x1f" ++ normal_target.change_id().short() ++ "\x1f" ++ normal_target.commit_id() ++ "\x1e"`

// CandidateBookmarks implements graph.Builder: enumerates bookmarks
// reachable via trunk()..@.
func (h *Handle) CandidateBookmarks() ([]graph.Bookmark, error) {
	out, err := h.run(context.Background(), h.root, "bookmark", "list", "-r", "trunk()..@", "-T", bookmarkTemplate)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks in trunk()..@: %w", err)
	}
	records := strings.Split(out, "\x1e")
	bookmarks := make([]graph.Bookmark, 0, len(records))
	for _, rec := range records {
		rec = strings.TrimSpace(rec)
		if rec == "" {
			continue
		}
		fields := strings.Split(rec, "\x1f")
		if len(fields) != 3 {
			continue
		}
		name := strings.TrimSpace(fields[0])
		if name == "" {
			continue
		}
		bookmarks = append(bookmarks, graph.Bookmark{
			Name:     name,
			ChangeID: strings.TrimSpace(fields[1]),
			CommitID: strings.TrimSpace(fields[2]),
		})
	}
	wcChangeID, err := h.WorkingCopyChangeID()
	if err == nil {
		for i := range bookmarks {
			if bookmarks[i].ChangeID == wcChangeID {
				bookmarks[i].IsWorkingCopy = true
			}
		}
	}
	return bookmarks, nil
}

// HasMergeAncestry implements graph.Builder by walking commit parents
// from the bookmark's commit back toward trunk via the git backend.
func (h *Handle) HasMergeAncestry(bookmark graph.Bookmark) (bool, error) {
	walker, err := h.openAncestryWalker()
	if err != nil {
		// Without a git backend we cannot answer definitively; treat
		// as non-merge rather than failing the whole graph build.
		return false, nil
	}
	trunkCommit, err := h.run(context.Background(), h.root, "log", "--no-graph", "-r", "trunk()", "-T", "commit_id")
	if err != nil {
		return false, err
	}
	return walker.hasMergeBetween(strings.TrimSpace(trunkCommit), bookmark.CommitID)
}

// AncestorBookmarks implements graph.Builder.
func (h *Handle) AncestorBookmarks(bookmark graph.Bookmark, candidates []graph.Bookmark) ([]string, error) {
	walker, err := h.openAncestryWalker()
	if err != nil {
		return legacyAncestorsByRevset(h, bookmark, candidates)
	}
	ancestorSet, err := walker.ancestorCommitSet(bookmark.CommitID)
	if err != nil {
		return legacyAncestorsByRevset(h, bookmark, candidates)
	}
	out := make([]string, 0)
	for _, c := range candidates {
		if c.Name == bookmark.Name {
			continue
		}
		if ancestorSet[c.CommitID] {
			out = append(out, c.Name)
		}
	}
	return out, nil
}

// legacyAncestorsByRevset is the fallback path when the git backend
// cannot be opened (e.g. a non-colocated or native jj store): ask jj
// directly whether each candidate is an ancestor via a revset.
func legacyAncestorsByRevset(h *Handle, bookmark graph.Bookmark, candidates []graph.Bookmark) ([]string, error) {
	out := make([]string, 0)
	for _, c := range candidates {
		if c.Name == bookmark.Name {
			continue
		}
		revset := fmt.Sprintf("%s & ::%s", c.Name, bookmark.Name)
		res, err := h.run(context.Background(), h.root, "log", "--no-graph", "-r", revset, "-T", "\"x\"")
		if err != nil {
			continue
		}
		if strings.TrimSpace(res) != "" {
			out = append(out, c.Name)
		}
	}
	return out, nil
}

// SegmentRootDescription implements graph.Builder. roots(parent..bookmark)
// is the commit (singular, for the linear stacks this tool supports)
// where the bookmark's segment begins: the oldest change not already
// on parentOrTrunk. Its description seeds the PR title, mirroring the
// original tool's "use the root commit's description" heuristic.
func (h *Handle) SegmentRootDescription(bookmark graph.Bookmark, parentOrTrunk string) (string, error) {
	revset := fmt.Sprintf("roots(%s..%s)", parentOrTrunk, bookmark.Name)
	out, err := h.run(context.Background(), h.root, "log", "--no-graph", "-r", revset, "-T", "description.first_line() ++ \"\\n\"")
	if err != nil {
		return "", fmt.Errorf("resolve root description of %q: %w", bookmark.Name, err)
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
	}
	return "", nil
}

// RemoteCommitID resolves what `remote` currently thinks bookmark
// points at, via jj's `name@remote` revset. An empty result means the
// bookmark has never been pushed to that remote, not an error. Returns
// the full commit id so the caller's equality check against
// Bookmark.CommitID is comparing like with like.
func (h *Handle) RemoteCommitID(bookmark, remote string) (string, error) {
	revset := fmt.Sprintf("%s@%s", bookmark, remote)
	out, err := h.run(context.Background(), h.root, "log", "--no-graph", "-r", revset, "-T", "commit_id")
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(out), nil
}

// PushBookmark pushes bookmark to remote via `jj git push`, leaving
// push transport and authentication entirely to the jj/git toolchain
// rather than reimplementing it over go-git.
func (h *Handle) PushBookmark(ctx context.Context, remote, bookmark string) error {
	_, err := h.run(ctx, h.root, "git", "push", "--remote", remote, "--bookmark", bookmark)
	if err != nil {
		return rerr.WithStep(rerr.Vcs, bookmark, "Push", err)
	}
	return nil
}

func (h *Handle) openAncestryWalker() (*ancestryWalker, error) {
	gitDir := filepath.Join(h.root, ".jj", "repo", "store", "git")
	return newAncestryWalker(gitDir)
}
