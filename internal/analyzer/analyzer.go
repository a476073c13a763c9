// Package analyzer selects the ordered set of segments to submit from
// a ChangeGraph, a target bookmark, scope flags, and tracking state.
package analyzer

import (
	"fmt"
	"sort"

	"github.com/mikkurogue/jj-ryu/internal/forge"
	"github.com/mikkurogue/jj-ryu/internal/graph"
	"github.com/mikkurogue/jj-ryu/internal/rerr"
)

// Segment is one element of a submission.
type Segment struct {
	Bookmark              graph.Bookmark
	ParentBookmarkOrTrunk string
	PushRequired          bool
	ExistingPR            *forge.PullRequest
}

// Scope are the CLI-level selection flags.
type Scope struct {
	Target        string // "" means none supplied
	Stack         bool
	Upto          string // "" means unset
	Only          bool
	UpdateOnly    bool
	Select        bool
	All           bool // --all / --include-untracked
}

// Selector is invoked when Scope.Select is set; it receives the
// ordered candidate bookmark names and which ones tracking had
// already marked, and returns the subset the user picked.
type Selector func(candidates []string, preMarked map[string]bool) ([]string, error)

// Analyze narrows a ChangeGraph's bookmarks down to the ordered set to
// submit, applying tracking restriction, target-scope narrowing, an
// optional interactive override, and --update-only filtering in that
// order.
func Analyze(g *graph.ChangeGraph, scope Scope, tracked map[string]bool, existingPRs map[string]*forge.PullRequest, pushRequired map[string]bool, select_ Selector) ([]Segment, []string, error) {
	order := g.BookmarksInOrder()
	warnings := make([]string, 0)

	candidates := order
	if len(tracked) > 0 && !scope.All && !scope.Select {
		restricted := make([]string, 0, len(candidates))
		for _, name := range candidates {
			if tracked[name] {
				restricted = append(restricted, name)
			}
		}
		candidates = restricted
	}

	selected, err := applyTargetScope(g, candidates, order, scope)
	if err != nil {
		return nil, warnings, err
	}

	if scope.Select && select_ != nil {
		preMarked := make(map[string]bool, len(order))
		for _, name := range order {
			preMarked[name] = tracked[name]
		}
		picked, err := select_(order, preMarked)
		if err != nil {
			return nil, warnings, rerr.New(rerr.UserInput, err)
		}
		selected = picked
	}

	segments := make([]Segment, 0, len(selected))
	for _, name := range selected {
		bk, ok := g.Bookmark(name)
		if !ok {
			return nil, warnings, rerr.Newf(rerr.UserInput, "unknown bookmark %q", name)
		}
		parent, _ := g.ParentBranch(name)
		var existing *forge.PullRequest
		if existingPRs != nil {
			existing = existingPRs[name]
		}
		if scope.UpdateOnly && existing == nil {
			warnings = append(warnings, fmt.Sprintf("skipping %q: --update-only set and no existing PR was found", name))
			continue
		}
		segments = append(segments, Segment{
			Bookmark:              bk,
			ParentBookmarkOrTrunk: parent,
			PushRequired:          pushRequired[name],
			ExistingPR:            existing,
		})
	}

	if len(segments) == 0 {
		return nil, warnings, rerr.New(rerr.UserInput, fmt.Errorf("empty selection: no bookmarks matched the requested scope"))
	}

	for name := range tracked {
		if _, ok := g.Bookmark(name); !ok {
			warnings = append(warnings, fmt.Sprintf("stale tracking entry %q: no longer present in the local stack", name))
		}
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return indexOf(order, segments[i].Bookmark.Name) < indexOf(order, segments[j].Bookmark.Name)
	})

	return segments, warnings, nil
}

func applyTargetScope(g *graph.ChangeGraph, candidates, order []string, scope Scope) ([]string, error) {
	set := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		set[c] = true
	}

	if scope.Target == "" && scope.Upto == "" {
		if scope.Stack || scope.Only || scope.Upto != "" {
			return nil, rerr.New(rerr.UserInput, fmt.Errorf("--stack/--only/--upto require a target bookmark"))
		}
		return filterOrdered(order, set), nil
	}

	target := scope.Target
	if target == "" {
		target = scope.Upto
	}
	if _, ok := g.Bookmark(target); !ok {
		return nil, rerr.New(rerr.UserInput, fmt.Errorf("unknown bookmark %q", target))
	}

	switch {
	case scope.Only:
		if !set[target] {
			return nil, rerr.New(rerr.UserInput, fmt.Errorf("bookmark %q is excluded by tracking scope; pass --all to include it", target))
		}
		return []string{target}, nil
	case scope.Upto != "":
		if _, ok := g.Bookmark(scope.Upto); !ok {
			return nil, rerr.New(rerr.UserInput, fmt.Errorf("unknown bookmark %q", scope.Upto))
		}
		chain := chainToTarget(g, order, scope.Upto)
		return filterOrdered(chain, set), nil
	case scope.Stack:
		chain := chainToTarget(g, order, target)
		descendants := g.Descendants(target)
		all := append(chain, descendants...)
		return filterOrdered(all, set), nil
	default:
		chain := chainToTarget(g, order, target)
		return filterOrdered(chain, set), nil
	}
}

// chainToTarget returns the ordered prefix of `order` from
// nearest-to-trunk up to and including target.
func chainToTarget(g *graph.ChangeGraph, order []string, target string) []string {
	out := make([]string, 0, len(order))
	for _, name := range order {
		out = append(out, name)
		if name == target {
			break
		}
	}
	return out
}

func filterOrdered(names []string, set map[string]bool) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if set[n] {
			out = append(out, n)
		}
	}
	return out
}

func indexOf(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return len(order)
}
