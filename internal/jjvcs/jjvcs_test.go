package jjvcs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mikkurogue/jj-ryu/internal/graph"
	"github.com/mikkurogue/jj-ryu/internal/rerr"
)

// scriptedRunner answers each call from canned responses keyed by the
// joined args, letting tests drive Handle without a real jj binary.
type scriptedRunner struct {
	byArgs map[string]string
	errs   map[string]error
}

func (r *scriptedRunner) run(_ context.Context, _, _ string, args ...string) (string, error) {
	key := strings.Join(args, " ")
	if err, ok := r.errs[key]; ok {
		return "", err
	}
	if out, ok := r.byArgs[key]; ok {
		return out, nil
	}
	return "", nil
}

func newHandle(r *scriptedRunner) *Handle {
	return &Handle{root: "/repo", jjPath: "jj", runner: r.run}
}

func TestRemoteCommitID_UnpushedBookmarkIsEmptyNotError(t *testing.T) {
	r := &scriptedRunner{
		byArgs: map[string]string{},
		errs:   map[string]error{"log --no-graph -r feature@origin -T commit_id": errors.New("no such revision")},
	}
	h := newHandle(r)
	id, err := h.RemoteCommitID("feature", "origin")
	if err != nil {
		t.Fatalf("expected no error for an unpushed bookmark, got %v", err)
	}
	if id != "" {
		t.Fatalf("expected an empty commit id, got %q", id)
	}
}

func TestRemoteCommitID_ResolvesWhenPushed(t *testing.T) {
	r := &scriptedRunner{
		byArgs: map[string]string{"log --no-graph -r feature@origin -T commit_id": "abc123\n"},
	}
	h := newHandle(r)
	id, err := h.RemoteCommitID("feature", "origin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "abc123" {
		t.Fatalf("id = %q, want %q", id, "abc123")
	}
}

func TestPushBookmark_WrapsFailureAsVcsError(t *testing.T) {
	r := &scriptedRunner{
		errs: map[string]error{"git push --remote origin --bookmark feature": errors.New("connection refused")},
	}
	h := newHandle(r)
	err := h.PushBookmark(context.Background(), "origin", "feature")
	if err == nil {
		t.Fatalf("expected push to fail")
	}
	var re *rerr.Error
	if !errors.As(err, &re) || re.Category != rerr.Vcs {
		t.Fatalf("expected a Vcs-category error, got %v", err)
	}
}

func TestPushBookmark_SucceedsWhenRunnerSucceeds(t *testing.T) {
	r := &scriptedRunner{byArgs: map[string]string{"git push --remote origin --bookmark feature": ""}}
	h := newHandle(r)
	if err := h.PushBookmark(context.Background(), "origin", "feature"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTrunkName_FallsBackToMainWhenNoBookmarkResolvesTrunk(t *testing.T) {
	r := &scriptedRunner{byArgs: map[string]string{`bookmark list -r trunk() -T name++"\n"`: "\n"}}
	h := newHandle(r)
	name, err := h.TrunkName()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "main" {
		t.Fatalf("name = %q, want fallback %q", name, "main")
	}
}

func TestTrunkName_UsesResolvedBookmark(t *testing.T) {
	r := &scriptedRunner{byArgs: map[string]string{`bookmark list -r trunk() -T name++"\n"`: "trunk-bookmark\n"}}
	h := newHandle(r)
	name, err := h.TrunkName()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "trunk-bookmark" {
		t.Fatalf("name = %q, want %q", name, "trunk-bookmark")
	}
}

func TestSegmentRootDescription_ReturnsFirstLine(t *testing.T) {
	r := &scriptedRunner{
		byArgs: map[string]string{
			`log --no-graph -r roots(main..a) -T description.first_line() ++ "\n"`: "Add retry to the push path\n",
		},
	}
	h := newHandle(r)
	desc, err := h.SegmentRootDescription(graph.Bookmark{Name: "a"}, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc != "Add retry to the push path" {
		t.Fatalf("desc = %q, want %q", desc, "Add retry to the push path")
	}
}

func TestSegmentRootDescription_EmptyWhenCommitHasNoDescription(t *testing.T) {
	r := &scriptedRunner{
		byArgs: map[string]string{
			`log --no-graph -r roots(main..a) -T description.first_line() ++ "\n"`: "\n",
		},
	}
	h := newHandle(r)
	desc, err := h.SegmentRootDescription(graph.Bookmark{Name: "a"}, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if desc != "" {
		t.Fatalf("desc = %q, want empty", desc)
	}
}
