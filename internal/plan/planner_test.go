package plan

import (
	"context"
	"reflect"
	"testing"

	"github.com/mikkurogue/jj-ryu/internal/analyzer"
	"github.com/mikkurogue/jj-ryu/internal/forge"
	"github.com/mikkurogue/jj-ryu/internal/graph"
)

func seg(name, parent string, pushRequired bool, pr *forge.PullRequest) analyzer.Segment {
	return analyzer.Segment{
		Bookmark:              graph.Bookmark{Name: name, ChangeID: name + "-c", CommitID: name + "-sha"},
		ParentBookmarkOrTrunk: parent,
		PushRequired:          pushRequired,
		ExistingPR:            pr,
	}
}

func stepNames(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Kind.String() + ":" + s.Bookmark
	}
	return out
}

func indexOfStep(steps []Step, kind StepKind, bookmark string) int {
	for i, s := range steps {
		if s.Kind == kind && s.Bookmark == bookmark {
			return i
		}
	}
	return -1
}

func TestPlan_FreshStack(t *testing.T) {
	segments := []analyzer.Segment{
		seg("a", "main", true, nil),
		seg("b", "a", true, nil),
		seg("c", "b", true, nil),
	}
	p := &Planner{}
	plan, warnings, err := p.Plan(context.Background(), segments, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	for _, pair := range [][2]string{{"a", "b"}, {"b", "c"}} {
		pushIdx := indexOfStep(plan.Steps, KindPush, pair[0])
		createIdx := indexOfStep(plan.Steps, KindCreatePr, pair[1])
		if pushIdx == -1 || createIdx == -1 || pushIdx > createIdx {
			t.Fatalf("expected Push(%s) before CreatePr(%s), got order %v", pair[0], pair[1], stepNames(plan.Steps))
		}
	}
	for _, name := range []string{"a", "b", "c"} {
		if indexOfStep(plan.Steps, KindCreatePr, name) == -1 {
			t.Fatalf("expected CreatePr(%s) in plan %v", name, stepNames(plan.Steps))
		}
	}
}

func TestPlan_NoOpWhenSynced(t *testing.T) {
	segments := []analyzer.Segment{
		seg("a", "main", false, &forge.PullRequest{Number: 1, BaseBranch: "main", State: forge.StateOpen}),
		seg("b", "a", false, &forge.PullRequest{Number: 2, BaseBranch: "a", State: forge.StateOpen}),
	}
	p := &Planner{}
	plan, _, err := p.Plan(context.Background(), segments, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Steps) != 0 {
		t.Fatalf("expected empty plan for a fully synced stack, got %v", stepNames(plan.Steps))
	}
}

func TestPlan_InsertInMiddle(t *testing.T) {
	// Previously a -> c with PR#1(a->main), PR#2(c->a). User inserts b
	// between: a -> b -> c.
	segments := []analyzer.Segment{
		seg("a", "main", false, &forge.PullRequest{Number: 1, BaseBranch: "main", State: forge.StateOpen}),
		seg("b", "a", true, nil),
		seg("c", "b", false, &forge.PullRequest{Number: 2, BaseBranch: "a", State: forge.StateOpen}),
	}
	p := &Planner{}
	plan, _, err := p.Plan(context.Background(), segments, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if indexOfStep(plan.Steps, KindPush, "b") == -1 {
		t.Fatalf("expected Push(b) in plan %v", stepNames(plan.Steps))
	}
	if indexOfStep(plan.Steps, KindCreatePr, "b") == -1 {
		t.Fatalf("expected CreatePr(b) in plan %v", stepNames(plan.Steps))
	}
	updateIdx := indexOfStep(plan.Steps, KindUpdateBase, "c")
	if updateIdx == -1 {
		t.Fatalf("expected UpdateBase(c) in plan %v", stepNames(plan.Steps))
	}
	pushBIdx := indexOfStep(plan.Steps, KindPush, "b")
	if pushBIdx > updateIdx {
		t.Fatalf("expected Push(b) before UpdateBase(c): %v", stepNames(plan.Steps))
	}
}

func TestPlan_Swap(t *testing.T) {
	// Previously a -> b with PR#1(a->main), PR#2(b->a). Stack is
	// reordered to b -> a: the swap constraint must force each PR's
	// retarget before the corresponding push that rewrites its old base.
	segments := []analyzer.Segment{
		seg("b", "main", true, &forge.PullRequest{Number: 2, BaseBranch: "a", State: forge.StateOpen}),
		seg("a", "b", true, &forge.PullRequest{Number: 1, BaseBranch: "main", State: forge.StateOpen}),
	}
	p := &Planner{}
	plan, _, err := p.Plan(context.Background(), segments, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updateBIdx := indexOfStep(plan.Steps, KindUpdateBase, "b")
	pushAIdx := indexOfStep(plan.Steps, KindPush, "a")
	if updateBIdx == -1 || pushAIdx == -1 {
		t.Fatalf("expected UpdateBase(b) and Push(a) in plan %v", stepNames(plan.Steps))
	}
	if updateBIdx > pushAIdx {
		t.Fatalf("expected UpdateBase(b) [retarget off old base a] before Push(a) [rewrites a's history]: %v", stepNames(plan.Steps))
	}
}

func TestPlan_PublishDrafts(t *testing.T) {
	segments := []analyzer.Segment{
		seg("a", "main", false, &forge.PullRequest{Number: 1, BaseBranch: "main", IsDraft: true, State: forge.StateOpen}),
		seg("b", "a", false, &forge.PullRequest{Number: 2, BaseBranch: "a", IsDraft: true, State: forge.StateOpen}),
	}
	p := &Planner{}
	plan, _, err := p.Plan(context.Background(), segments, Options{Publish: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("expected two PublishPr steps, got %v", stepNames(plan.Steps))
	}
	for _, s := range plan.Steps {
		if s.Kind != KindPublishPr {
			t.Fatalf("expected only PublishPr steps, got %v", stepNames(plan.Steps))
		}
	}
}

func TestPlan_UpdateOnlyDropsCreate(t *testing.T) {
	segments := []analyzer.Segment{
		seg("a", "main", false, &forge.PullRequest{Number: 1, BaseBranch: "main", State: forge.StateOpen}),
		seg("d", "a", true, nil),
	}
	p := &Planner{}
	plan, warnings, err := p.Plan(context.Background(), segments, Options{UpdateOnly: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if indexOfStep(plan.Steps, KindCreatePr, "d") != -1 {
		t.Fatalf("expected no CreatePr(d) under --update-only, got %v", stepNames(plan.Steps))
	}
	if len(warnings) == 0 {
		t.Fatalf("expected a warning about the dropped create")
	}
}

// Property: for any two invocations with identical inputs, the plan
// is identical (determinism).
func TestPlan_Deterministic(t *testing.T) {
	segments := []analyzer.Segment{
		seg("a", "main", true, nil),
		seg("b", "a", true, nil),
		seg("c", "b", true, nil),
	}
	p := &Planner{}
	first, _, err := p.Plan(context.Background(), segments, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, _, err := p.Plan(context.Background(), segments, Options{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(stepNames(first.Steps), stepNames(again.Steps)) {
			t.Fatalf("plan not deterministic: %v vs %v", stepNames(first.Steps), stepNames(again.Steps))
		}
	}
}

// Property: a CreatePr step never precedes the Push of its own head.
func TestPlan_CreateNeverPrecedesOwnPush(t *testing.T) {
	segments := []analyzer.Segment{
		seg("a", "main", true, nil),
		seg("b", "a", true, nil),
	}
	p := &Planner{}
	plan, _, err := p.Plan(context.Background(), segments, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{"a", "b"} {
		pushIdx := indexOfStep(plan.Steps, KindPush, name)
		createIdx := indexOfStep(plan.Steps, KindCreatePr, name)
		if pushIdx == -1 || createIdx == -1 {
			continue
		}
		if createIdx < pushIdx {
			t.Fatalf("CreatePr(%s) at %d precedes its own Push at %d: %v", name, createIdx, pushIdx, stepNames(plan.Steps))
		}
	}
}

func TestPlan_CreatePrTitleUsesRootDescriptionWhenPresent(t *testing.T) {
	segments := []analyzer.Segment{
		{
			Bookmark:              graph.Bookmark{Name: "a", ChangeID: "a-c", CommitID: "a-sha", RootDescription: "Add retry to the push path"},
			ParentBookmarkOrTrunk: "main",
			PushRequired:          true,
		},
	}
	p := &Planner{}
	plan, _, err := p.Plan(context.Background(), segments, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	idx := indexOfStep(plan.Steps, KindCreatePr, "a")
	if idx == -1 {
		t.Fatalf("expected a CreatePr step for a: %v", stepNames(plan.Steps))
	}
	if got := plan.Steps[idx].CreatePr.Title; got != "Add retry to the push path" {
		t.Fatalf("Title = %q, want the root commit description", got)
	}
}

func TestPlan_CreatePrTitleFallsBackToBookmarkNameWhenDescriptionEmpty(t *testing.T) {
	segments := []analyzer.Segment{seg("a", "main", true, nil)}
	p := &Planner{}
	plan, _, err := p.Plan(context.Background(), segments, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	idx := indexOfStep(plan.Steps, KindCreatePr, "a")
	if idx == -1 {
		t.Fatalf("expected a CreatePr step for a: %v", stepNames(plan.Steps))
	}
	if got := plan.Steps[idx].CreatePr.Title; got != "a" {
		t.Fatalf("Title = %q, want fallback to bookmark name %q", got, "a")
	}
}

func TestTieBreak_KindPriorityThenStackPosThenName(t *testing.T) {
	// Five independent nodes (two UpdateBase, one each of Push/CreatePr/
	// PublishPr) with no edges between them: the ready set on round one contains all of
	// them, and the deterministic ordering must reflect kind priority
	// first, then stack position, then bookmark name.
	nodes := map[string]*node{
		"publish:z": {id: "publish:z", step: Step{Kind: KindPublishPr, StackPos: 5, Bookmark: "z"}},
		"create:y":  {id: "create:y", step: Step{Kind: KindCreatePr, StackPos: 4, Bookmark: "y"}},
		"push:x":    {id: "push:x", step: Step{Kind: KindPush, StackPos: 3, Bookmark: "x"}},
		"update:a":  {id: "update:a", step: Step{Kind: KindUpdateBase, StackPos: 0, Bookmark: "a"}},
		"update:b":  {id: "update:b", step: Step{Kind: KindUpdateBase, StackPos: 1, Bookmark: "b"}},
	}
	steps, err := topoSort(nodes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := stepNames(steps)
	want := []string{"UpdateBase:a", "UpdateBase:b", "Push:x", "CreatePr:y", "PublishPr:z"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTopoSort_CycleIsReported(t *testing.T) {
	a := &node{id: "push:a", step: Step{Kind: KindPush, Bookmark: "a"}, indegree: 1}
	b := &node{id: "push:b", step: Step{Kind: KindPush, Bookmark: "b"}, indegree: 1}
	a.succs = []string{"push:b"}
	b.succs = []string{"push:a"}
	nodes := map[string]*node{"push:a": a, "push:b": b}

	_, err := topoSort(nodes)
	if err == nil {
		t.Fatalf("expected a cycle error")
	}
}
