// Package graph builds the immutable snapshot of the bookmark DAG
// reachable from trunk()..@ that the rest of ryu plans and executes
// against. It is rebuilt fresh on every command invocation.
package graph

import (
	"fmt"

	"github.com/mikkurogue/jj-ryu/internal/rerr"
)

// Bookmark is a named local reference to a specific change. Name is
// unique within a workspace; ChangeID is stable across renames and
// amendments.
type Bookmark struct {
	Name           string
	ChangeID       string
	CommitID       string
	RemoteCommitID string // empty when unknown
	IsWorkingCopy  bool
	// RootDescription is the first line of the oldest commit's
	// description within this bookmark's exclusive segment back to
	// its parent bookmark (or trunk). Empty when that commit has no
	// description, or before Build has resolved the bookmark's
	// parent. Used to derive a new PR's title; the planner falls back
	// to the bookmark name when it is empty.
	RootDescription string
}

// node is the graph's internal bookkeeping for a bookmark's place in
// the chain.
type node struct {
	bookmark Bookmark
	parent   string // bookmark name, or "" meaning trunk
}

// ChangeGraph is an immutable snapshot of the linear bookmark chain
// between trunk (exclusive) and the working copy (inclusive). Only
// non-merge ancestries are represented; callers never observe a
// branch point.
type ChangeGraph struct {
	trunk    string
	order    []string // bookmark names, nearest-to-trunk first
	nodes    map[string]node
	excluded []ExcludedBookmark // merge-bearing bookmarks filtered out
}

// ExcludedBookmark records a bookmark dropped from the graph because
// its ancestry contains a merge commit, along with the reason shown
// to the user as a warning.
type ExcludedBookmark struct {
	Name   string
	Reason string
}

// Builder is the minimal VCS capability surface the graph builder
// needs: list candidate bookmarks, resolve their identities, detect
// merges in their ancestry, and name trunk. Concrete VCS adapters
// (internal/jjvcs) implement this.
type Builder interface {
	// TrunkName returns the name of the repository's trunk bookmark.
	TrunkName() (string, error)
	// WorkingCopyChangeID returns the change id of the working-copy
	// commit (@).
	WorkingCopyChangeID() (string, error)
	// CandidateBookmarks lists bookmarks reachable via trunk()..@, in
	// no particular order.
	CandidateBookmarks() ([]Bookmark, error)
	// HasMergeAncestry reports whether the bookmark's ancestor chain
	// back to trunk contains a merge commit.
	HasMergeAncestry(bookmark Bookmark) (bool, error)
	// AncestorBookmarks returns, for a bookmark, the set of candidate
	// bookmark names that are its strict ancestors (i.e. reachable by
	// walking parents toward trunk), used to resolve nearest-parent.
	AncestorBookmarks(bookmark Bookmark, candidates []Bookmark) ([]string, error)
	// SegmentRootDescription returns the first line of the oldest
	// commit's description in revset parentOrTrunk..bookmark.Name
	// (exclusive of parentOrTrunk, inclusive of the bookmark), used to
	// generate a PR title. Returns "" when the commit has no
	// description.
	SegmentRootDescription(bookmark Bookmark, parentOrTrunk string) (string, error)
}

// Build enumerates candidates via Builder, excludes merge-bearing
// ancestries, orders the remainder nearest-to-trunk first, and wires
// each bookmark to its nearest ancestor bookmark (or trunk).
func Build(b Builder) (*ChangeGraph, error) {
	trunk, err := b.TrunkName()
	if err != nil {
		return nil, rerr.New(rerr.Vcs, fmt.Errorf("resolve trunk: %w", err))
	}
	if _, err := b.WorkingCopyChangeID(); err != nil {
		return nil, rerr.New(rerr.Vcs, fmt.Errorf("resolve working copy: %w", err))
	}

	all, err := b.CandidateBookmarks()
	if err != nil {
		return nil, rerr.New(rerr.Vcs, fmt.Errorf("list candidate bookmarks: %w", err))
	}

	seenChange := make(map[string]struct{}, len(all))
	kept := make([]Bookmark, 0, len(all))
	excluded := make([]ExcludedBookmark, 0)
	for _, bk := range all {
		if _, dup := seenChange[bk.ChangeID]; dup {
			return nil, rerr.New(rerr.UserInput, fmt.Errorf("bookmark %q points at a change already tracked by another bookmark", bk.Name))
		}
		merged, err := b.HasMergeAncestry(bk)
		if err != nil {
			return nil, rerr.New(rerr.Vcs, fmt.Errorf("walk ancestry of %q: %w", bk.Name, err))
		}
		if merged {
			excluded = append(excluded, ExcludedBookmark{Name: bk.Name, Reason: "ancestry contains a merge commit"})
			continue
		}
		seenChange[bk.ChangeID] = struct{}{}
		kept = append(kept, bk)
	}

	if len(kept) == 0 {
		return nil, rerr.New(rerr.Vcs, fmt.Errorf("no linear bookmarks found between trunk and the working copy"))
	}

	nodes := make(map[string]node, len(kept))
	ancestorCounts := make(map[string]int, len(kept))
	for _, bk := range kept {
		ancestors, err := b.AncestorBookmarks(bk, kept)
		if err != nil {
			return nil, rerr.New(rerr.Vcs, fmt.Errorf("resolve ancestors of %q: %w", bk.Name, err))
		}
		ancestorCounts[bk.Name] = len(ancestors)
		parent := nearestAncestor(bk, ancestors, kept, b)
		parentRevset := parent
		if parentRevset == "" {
			parentRevset = trunk
		}
		desc, err := b.SegmentRootDescription(bk, parentRevset)
		if err != nil {
			return nil, rerr.New(rerr.Vcs, fmt.Errorf("resolve root description of %q: %w", bk.Name, err))
		}
		bk.RootDescription = desc
		nodes[bk.Name] = node{bookmark: bk, parent: parent}
	}

	order := make([]string, 0, len(kept))
	for _, bk := range kept {
		order = append(order, bk.Name)
	}
	sortByAncestorDepth(order, ancestorCounts)

	return &ChangeGraph{trunk: trunk, order: order, nodes: nodes, excluded: excluded}, nil
}

// nearestAncestor picks, among a bookmark's ancestor bookmark names,
// the one with the most ancestors of its own (i.e. the deepest, hence
// nearest to the bookmark). Falls back to trunk ("") when there are none.
func nearestAncestor(_ Bookmark, ancestorNames []string, all []Bookmark, b Builder) string {
	if len(ancestorNames) == 0 {
		return ""
	}
	depth := make(map[string]int, len(ancestorNames))
	byName := make(map[string]Bookmark, len(all))
	for _, bk := range all {
		byName[bk.Name] = bk
	}
	for _, name := range ancestorNames {
		bk, ok := byName[name]
		if !ok {
			continue
		}
		own, err := b.AncestorBookmarks(bk, all)
		if err != nil {
			continue
		}
		depth[name] = len(own)
	}
	nearest := ancestorNames[0]
	best := depth[nearest]
	for _, name := range ancestorNames[1:] {
		if depth[name] > best {
			nearest = name
			best = depth[name]
		}
	}
	return nearest
}

// sortByAncestorDepth orders bookmark names nearest-to-trunk first, by
// ascending ancestor count, breaking ties by name for determinism.
func sortByAncestorDepth(names []string, depth map[string]int) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0; j-- {
			a, b := names[j-1], names[j]
			if depth[a] < depth[b] || (depth[a] == depth[b] && a <= b) {
				break
			}
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
}

// TrunkName returns the repository's trunk bookmark name.
func (g *ChangeGraph) TrunkName() string { return g.trunk }

// BookmarksInOrder returns bookmark names topologically ordered from
// nearest-to-trunk to nearest-to-@.
func (g *ChangeGraph) BookmarksInOrder() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Bookmark looks up a bookmark by name.
func (g *ChangeGraph) Bookmark(name string) (Bookmark, bool) {
	n, ok := g.nodes[name]
	return n.bookmark, ok
}

// ParentBookmark returns the nearest ancestor bookmark name for b, or
// "" meaning trunk.
func (g *ChangeGraph) ParentBookmark(name string) (string, bool) {
	n, ok := g.nodes[name]
	if !ok {
		return "", false
	}
	return n.parent, true
}

// ParentBranch returns the branch name a bookmark's PR should target:
// its parent bookmark's name, or trunk if it has none.
func (g *ChangeGraph) ParentBranch(name string) (string, bool) {
	parent, ok := g.ParentBookmark(name)
	if !ok {
		return "", false
	}
	if parent == "" {
		return g.trunk, true
	}
	return parent, true
}

// Descendants returns the bookmark names that have name as an
// ancestor, in stack order (nearest first).
func (g *ChangeGraph) Descendants(name string) []string {
	out := make([]string, 0)
	for _, candidate := range g.order {
		if g.isDescendant(candidate, name) {
			out = append(out, candidate)
		}
	}
	return out
}

func (g *ChangeGraph) isDescendant(candidate, ancestor string) bool {
	cur := candidate
	for {
		n, ok := g.nodes[cur]
		if !ok || n.parent == "" {
			return false
		}
		if n.parent == ancestor {
			return true
		}
		cur = n.parent
	}
}

// Excluded returns the bookmarks dropped for merge-bearing ancestry.
func (g *ChangeGraph) Excluded() []ExcludedBookmark {
	out := make([]ExcludedBookmark, len(g.excluded))
	copy(out, g.excluded)
	return out
}
