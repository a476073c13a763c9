package analyzer

import (
	"testing"

	"github.com/mikkurogue/jj-ryu/internal/forge"
	"github.com/mikkurogue/jj-ryu/internal/graph"
)

// stubBuilder feeds graph.Build in buildLinearGraph, which builds
// a -> b -> c -> d off "main" like graph_test.go's fixture. A jj-backed
// Builder isn't needed here: analyzer only depends on the ChangeGraph's
// public surface, so a tiny stub Builder is enough.
type stubBuilder struct {
	bookmarks []graph.Bookmark
	ancestors map[string][]string
}

func (s *stubBuilder) TrunkName() (string, error)             { return "main", nil }
func (s *stubBuilder) WorkingCopyChangeID() (string, error)   { return "c-d", nil }
func (s *stubBuilder) CandidateBookmarks() ([]graph.Bookmark, error) { return s.bookmarks, nil }
func (s *stubBuilder) HasMergeAncestry(graph.Bookmark) (bool, error) { return false, nil }
func (s *stubBuilder) AncestorBookmarks(bk graph.Bookmark, _ []graph.Bookmark) ([]string, error) {
	return s.ancestors[bk.Name], nil
}
func (s *stubBuilder) SegmentRootDescription(graph.Bookmark, string) (string, error) {
	return "", nil
}

func buildLinearGraph(t *testing.T) *graph.ChangeGraph {
	t.Helper()
	b := &stubBuilder{
		bookmarks: []graph.Bookmark{
			{Name: "a", ChangeID: "c-a", CommitID: "sha-a"},
			{Name: "b", ChangeID: "c-b", CommitID: "sha-b"},
			{Name: "c", ChangeID: "c-c", CommitID: "sha-c"},
			{Name: "d", ChangeID: "c-d", CommitID: "sha-d"},
		},
		ancestors: map[string][]string{
			"a": {},
			"b": {"a"},
			"c": {"a", "b"},
			"d": {"a", "b", "c"},
		},
	}
	g, err := graph.Build(b)
	if err != nil {
		t.Fatalf("buildLinearGraph: %v", err)
	}
	return g
}

func TestAnalyze_DefaultScopeSelectsWholeTrackedStack(t *testing.T) {
	g := buildLinearGraph(t)
	tracked := map[string]bool{"a": true, "b": true, "c": true, "d": true}
	segs, warnings, err := Analyze(g, Scope{}, tracked, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	want := []string{"a", "b", "c", "d"}
	if len(segs) != len(want) {
		t.Fatalf("segs = %v, want %v", segNames(segs), want)
	}
	for i, name := range want {
		if segs[i].Bookmark.Name != name {
			t.Fatalf("segs[%d] = %q, want %q (full: %v)", i, segs[i].Bookmark.Name, name, segNames(segs))
		}
	}
}

func TestAnalyze_UntrackedBookmarksExcludedByDefault(t *testing.T) {
	g := buildLinearGraph(t)
	tracked := map[string]bool{"a": true, "b": true}
	segs, _, err := Analyze(g, Scope{}, tracked, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected only tracked bookmarks, got %v", segNames(segs))
	}
}

func TestAnalyze_AllFlagIncludesUntracked(t *testing.T) {
	g := buildLinearGraph(t)
	tracked := map[string]bool{"a": true}
	segs, _, err := Analyze(g, Scope{All: true}, tracked, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 4 {
		t.Fatalf("expected --all to include untracked bookmarks, got %v", segNames(segs))
	}
}

func TestAnalyze_OnlyNarrowsToSingleTarget(t *testing.T) {
	g := buildLinearGraph(t)
	tracked := map[string]bool{"a": true, "b": true, "c": true}
	segs, _, err := Analyze(g, Scope{Target: "b", Only: true}, tracked, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 1 || segs[0].Bookmark.Name != "b" {
		t.Fatalf("expected only b, got %v", segNames(segs))
	}
}

func TestAnalyze_UptoIncludesPrefixOnly(t *testing.T) {
	g := buildLinearGraph(t)
	tracked := map[string]bool{"a": true, "b": true, "c": true, "d": true}
	segs, _, err := Analyze(g, Scope{Upto: "b"}, tracked, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a", "b"}
	if len(segs) != len(want) {
		t.Fatalf("segs = %v, want %v", segNames(segs), want)
	}
}

func TestAnalyze_StackIncludesDescendants(t *testing.T) {
	g := buildLinearGraph(t)
	tracked := map[string]bool{"a": true, "b": true, "c": true, "d": true}
	segs, _, err := Analyze(g, Scope{Target: "b", Stack: true}, tracked, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]bool{"a": true, "b": true, "c": true, "d": true}
	if len(segs) != len(want) {
		t.Fatalf("segs = %v, want all of %v", segNames(segs), want)
	}
}

func TestAnalyze_UpdateOnlyDropsSegmentsWithoutAnExistingPR(t *testing.T) {
	g := buildLinearGraph(t)
	tracked := map[string]bool{"a": true, "b": true}
	existing := map[string]*forge.PullRequest{"a": {Number: 1, BaseBranch: "main"}}
	segs, warnings, err := Analyze(g, Scope{UpdateOnly: true}, tracked, existing, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 1 || segs[0].Bookmark.Name != "a" {
		t.Fatalf("expected only a (has a PR), got %v", segNames(segs))
	}
	if len(warnings) == 0 {
		t.Fatalf("expected a warning about the dropped bookmark b")
	}
}

func TestAnalyze_EmptySelectionIsUserError(t *testing.T) {
	g := buildLinearGraph(t)
	// No bookmark has an existing PR, so --update-only drops every segment.
	_, _, err := Analyze(g, Scope{UpdateOnly: true}, map[string]bool{}, nil, nil, nil)
	if err == nil {
		t.Fatalf("expected an error for an empty selection")
	}
}

func TestAnalyze_StaleTrackingWarnsWithoutFailing(t *testing.T) {
	g := buildLinearGraph(t)
	tracked := map[string]bool{"a": true, "ghost": true}
	_, warnings, err := Analyze(g, Scope{}, tracked, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, w := range warnings {
		if w == `stale tracking entry "ghost": no longer present in the local stack` {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a stale-tracking warning, got %v", warnings)
	}
}

func TestAnalyze_SelectFlagUsesSelector(t *testing.T) {
	g := buildLinearGraph(t)
	tracked := map[string]bool{"a": true}
	calledWith := []string(nil)
	selector := func(candidates []string, preMarked map[string]bool) ([]string, error) {
		calledWith = candidates
		return []string{"a", "c"}, nil
	}
	segs, _, err := Analyze(g, Scope{Select: true}, tracked, nil, nil, selector)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calledWith) != 4 {
		t.Fatalf("expected the selector to see all 4 candidates, got %v", calledWith)
	}
	if len(segs) != 2 {
		t.Fatalf("expected the selector's picks to win, got %v", segNames(segs))
	}
}

func segNames(segs []Segment) []string {
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.Bookmark.Name
	}
	return out
}
