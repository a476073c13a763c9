package plan

import (
	"context"
	"fmt"
	"sort"

	"github.com/mikkurogue/jj-ryu/internal/analyzer"
	"github.com/mikkurogue/jj-ryu/internal/rerr"
)

// Options carries the submission flags that influence plan shape.
type Options struct {
	Draft      bool
	Publish    bool
	UpdateOnly bool
}

// node is one unresolved step plus the bookkeeping the resolver and
// the Kahn's-algorithm sort need: a stable id, in-degree, and the
// adjacency list of nodes it unblocks.
type node struct {
	step     Step
	id       string
	indegree int
	succs    []string
}

// Planner turns an ordered segment list plus discovered remote state
// (already attached to each Segment by the caller) into a
// SubmissionPlan. It holds no state across Plan calls.
type Planner struct{}

// Plan runs the planning substeps in order: build unresolved step
// nodes, emit constraints, resolve and topologically sort. Remote state
// is not discovered here: it is read from each Segment's ExistingPR and
// PushRequired, which the caller fills in beforehand. segments must
// already be ordered nearest-to-trunk first.
func (p *Planner) Plan(ctx context.Context, segments []analyzer.Segment, opts Options) (*SubmissionPlan, []string, error) {
	warnings := make([]string, 0)

	nodes := make(map[string]*node)
	pushNode := make(map[string]string)   // bookmark -> node id
	createNode := make(map[string]string) // bookmark -> node id
	updateNode := make(map[string]string) // bookmark (PR's own bookmark) -> node id
	prNumberByBookmark := make(map[string]int)
	baseByBookmark := make(map[string]string) // required new base for bookmark's PR

	for i, seg := range segments {
		bookmark := seg.Bookmark.Name
		baseByBookmark[bookmark] = seg.ParentBookmarkOrTrunk

		if seg.PushRequired {
			id := "push:" + bookmark
			nodes[id] = &node{id: id, step: Step{
				Kind: KindPush, StackPos: i, Bookmark: bookmark,
				Push: &PushStep{Bookmark: bookmark, CommitID: seg.Bookmark.CommitID},
			}}
			pushNode[bookmark] = id
		}

		if seg.ExistingPR == nil {
			if opts.UpdateOnly {
				warnings = append(warnings, fmt.Sprintf("skipping create for %q: --update-only is set", bookmark))
			} else {
				id := "create:" + bookmark
				nodes[id] = &node{id: id, step: Step{
					Kind: KindCreatePr, StackPos: i, Bookmark: bookmark,
					CreatePr: &CreatePrStep{
						Bookmark: bookmark,
						Base:     seg.ParentBookmarkOrTrunk,
						Title:    prTitle(seg),
						Draft:    opts.Draft,
					},
				}}
				createNode[bookmark] = id
			}
			continue
		}

		prNumberByBookmark[bookmark] = seg.ExistingPR.Number

		if seg.ExistingPR.BaseBranch != seg.ParentBookmarkOrTrunk {
			id := "update:" + bookmark
			nodes[id] = &node{id: id, step: Step{
				Kind: KindUpdateBase, StackPos: i, Bookmark: bookmark,
				UpdateBase: &UpdateBaseStep{PRNumber: seg.ExistingPR.Number, NewBase: seg.ParentBookmarkOrTrunk},
			}}
			updateNode[bookmark] = id
		}

		if seg.ExistingPR.IsDraft && opts.Publish {
			id := "publish:" + bookmark
			nodes[id] = &node{id: id, step: Step{
				Kind: KindPublishPr, StackPos: i, Bookmark: bookmark,
				PublishPr: &PublishPrStep{PRNumber: seg.ExistingPR.Number},
			}}
		}
	}

	constraints := p.emitConstraints(segments, pushNode, createNode, updateNode)

	addEdge := func(from, to string) {
		if from == "" || to == "" || from == to {
			return
		}
		fromNode, ok := nodes[from]
		if !ok {
			return
		}
		if _, ok := nodes[to]; !ok {
			return
		}
		fromNode.succs = append(fromNode.succs, to)
		nodes[to].indegree++
	}

	for _, c := range constraints {
		switch {
		case c.PushOrder != nil:
			addEdge(pushNode[c.PushOrder.Parent.bookmark], pushNode[c.PushOrder.Child.bookmark])
		case c.PushBeforeRetarget != nil:
			addEdge(pushNode[c.PushBeforeRetarget.Base.bookmark], updateNode[c.PushBeforeRetarget.PR.bookmark])
		case c.RetargetBeforePush != nil:
			addEdge(updateNode[c.RetargetBeforePush.PR.bookmark], pushNode[c.RetargetBeforePush.OldBase.bookmark])
		case c.PushBeforeCreate != nil:
			addEdge(pushNode[c.PushBeforeCreate.Push.bookmark], createNode[c.PushBeforeCreate.Create.bookmark])
		case c.CreateOrder != nil:
			addEdge(createNode[c.CreateOrder.Parent.bookmark], createNode[c.CreateOrder.Child.bookmark])
		}
	}

	steps, err := topoSort(nodes)
	if err != nil {
		return nil, warnings, err
	}

	return &SubmissionPlan{Steps: steps, Constraints: constraints}, warnings, nil
}

// prTitle derives a new PR's title from the segment's root commit
// description, falling back to the bookmark name when the commit has
// no description. Mirrors the original tool's generate_pr_title: the
// oldest commit in a bookmark's segment typically states the primary
// intent of the change, better than the bookmark name itself.
func prTitle(seg analyzer.Segment) string {
	if seg.Bookmark.RootDescription != "" {
		return seg.Bookmark.RootDescription
	}
	return seg.Bookmark.Name
}

// emitConstraints implements the per-adjacent-pair and per-existing-PR
// constraint emission, including swap detection.
func (p *Planner) emitConstraints(segments []analyzer.Segment, pushNode, createNode, updateNode map[string]string) []Constraint {
	constraints := make([]Constraint, 0)

	posOf := make(map[string]int, len(segments))
	for i, seg := range segments {
		posOf[seg.Bookmark.Name] = i
	}

	for i := 1; i < len(segments); i++ {
		parent := segments[i-1].Bookmark.Name
		child := segments[i].Bookmark.Name

		if _, ok := pushNode[parent]; ok {
			if _, ok := pushNode[child]; ok {
				constraints = append(constraints, Constraint{PushOrder: &PushOrderConstraint{
					Parent: NewPushRef(parent), Child: NewPushRef(child),
				}})
			}
		}
		if _, ok := pushNode[parent]; ok {
			if _, ok := createNode[child]; ok {
				constraints = append(constraints, Constraint{PushBeforeCreate: &PushBeforeCreateConstraint{
					Push: NewPushRef(parent), Create: NewCreateRef(child),
				}})
			}
		}
		if _, ok := createNode[parent]; ok {
			if _, ok := createNode[child]; ok {
				constraints = append(constraints, Constraint{CreateOrder: &CreateOrderConstraint{
					Parent: NewCreateRef(parent), Child: NewCreateRef(child),
				}})
			}
		}
	}

	for i, seg := range segments {
		if seg.ExistingPR == nil {
			continue
		}
		bookmark := seg.Bookmark.Name
		if _, updating := updateNode[bookmark]; !updating {
			continue
		}
		requiredNewBase := seg.ParentBookmarkOrTrunk
		currentBase := seg.ExistingPR.BaseBranch

		if _, ok := pushNode[requiredNewBase]; ok {
			constraints = append(constraints, Constraint{PushBeforeRetarget: &PushBeforeRetargetConstraint{
				Base: NewPushRef(requiredNewBase), PR: NewUpdateRef(bookmark),
			}})
		}

		if newPos, ok := posOf[currentBase]; ok && newPos > i {
			if _, ok := pushNode[currentBase]; ok {
				constraints = append(constraints, Constraint{RetargetBeforePush: &RetargetBeforePushConstraint{
					PR: NewUpdateRef(bookmark), OldBase: NewPushRef(currentBase),
				}})
			}
		}
	}

	return constraints
}

// topoSort runs Kahn's algorithm over nodes, breaking ties among
// simultaneously-ready nodes by (kind priority, stack position,
// bookmark name) so identical inputs always yield identical plans.
func topoSort(nodes map[string]*node) ([]Step, error) {
	ready := make([]*node, 0)
	for _, n := range nodes {
		if n.indegree == 0 {
			ready = append(ready, n)
		}
	}

	less := func(a, b *node) bool {
		if a.step.Kind.priority() != b.step.Kind.priority() {
			return a.step.Kind.priority() < b.step.Kind.priority()
		}
		if a.step.StackPos != b.step.StackPos {
			return a.step.StackPos < b.step.StackPos
		}
		return a.step.Bookmark < b.step.Bookmark
	}

	out := make([]Step, 0, len(nodes))
	remaining := make(map[string]*node, len(nodes))
	for k, v := range nodes {
		remaining[k] = v
	}

	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		n := ready[0]
		ready = ready[1:]
		out = append(out, n.step)
		delete(remaining, n.id)

		for _, succID := range n.succs {
			succ, ok := remaining[succID]
			if !ok {
				continue
			}
			succ.indegree--
			if succ.indegree == 0 {
				ready = append(ready, succ)
			}
		}
	}

	if len(remaining) > 0 {
		names := make([]string, 0, len(remaining))
		for _, n := range remaining {
			names = append(names, fmt.Sprintf("%s(%s)", n.step.Kind, n.step.Bookmark))
		}
		sort.Strings(names)
		return nil, rerr.Newf(rerr.Planning, "cycle detected among unresolved steps: %v", names)
	}

	return out, nil
}
