// Package plan implements the planner: the typed, dependency-aware
// scheduler that turns a SubmissionScope plus discovered remote state
// into an ordered SubmissionPlan. See planner.go for the four-substep
// algorithm; this file holds the typed step/ref/constraint model that
// makes mixing a push endpoint with an update endpoint a compile-time
// error rather than a scheduler bug.
package plan

import "fmt"

// StepKind tags which of the four execution-step variants a node is.
// Priority ordering among simultaneously-ready nodes during the
// topological sort is UpdateBase < Push < CreatePr < PublishPr.
type StepKind int

const (
	KindUpdateBase StepKind = iota
	KindPush
	KindCreatePr
	KindPublishPr
)

func (k StepKind) String() string {
	switch k {
	case KindUpdateBase:
		return "UpdateBase"
	case KindPush:
		return "Push"
	case KindCreatePr:
		return "CreatePr"
	case KindPublishPr:
		return "PublishPr"
	default:
		return "Unknown"
	}
}

// priority returns the tie-break priority: lower sorts first.
func (k StepKind) priority() int { return int(k) }

// Step is one planned mutation. Exactly one of the typed payloads
// below is populated, matching Kind.
type Step struct {
	Kind StepKind

	// StackPos is the segment's position in the stack (nearest-to-trunk
	// = 0), used only for the deterministic tie-break.
	StackPos int
	// Bookmark is the bookmark name this step concerns, used both for
	// tie-breaking and for the executor's progress/error context.
	Bookmark string

	Push       *PushStep
	UpdateBase *UpdateBaseStep
	CreatePr   *CreatePrStep
	PublishPr  *PublishPrStep
}

// PushStep pushes head_branch = bookmark.name to the remote at
// bookmark.commit_id.
type PushStep struct {
	Bookmark string
	CommitID string
}

// UpdateBaseStep retargets an existing PR's base branch.
type UpdateBaseStep struct {
	PRNumber int
	NewBase  string
}

// CreatePrStep opens a new PR.
type CreatePrStep struct {
	Bookmark string
	Base     string
	Title    string
	Body     string
	Draft    bool
}

// PublishPrStep clears an existing PR's draft state.
type PublishPrStep struct {
	PRNumber int
}

// Typed references. They exist solely so a constraint's endpoints
// cannot be mixed across step kinds — a PushOrder edge may only
// connect two PushRefs, never a PushRef and an UpdateRef. Each ref
// wraps only the bookmark name it was built from; Planner.Plan maps it
// to a concrete step node when it turns constraints into edges.
type PushRef struct{ bookmark string }
type UpdateRef struct{ bookmark string }
type CreateRef struct{ bookmark string }

func NewPushRef(bookmark string) PushRef     { return PushRef{bookmark: bookmark} }
func NewUpdateRef(bookmark string) UpdateRef { return UpdateRef{bookmark: bookmark} }
func NewCreateRef(bookmark string) CreateRef { return CreateRef{bookmark: bookmark} }

// Constraint is the tagged-variant sum type describing ordering
// requirements between two steps. Exactly one field is non-nil.
type Constraint struct {
	PushOrder           *PushOrderConstraint
	PushBeforeRetarget  *PushBeforeRetargetConstraint
	RetargetBeforePush  *RetargetBeforePushConstraint
	PushBeforeCreate    *PushBeforeCreateConstraint
	CreateOrder         *CreateOrderConstraint
}

type PushOrderConstraint struct{ Parent, Child PushRef }
type PushBeforeRetargetConstraint struct {
	Base PushRef
	PR   UpdateRef
}
type RetargetBeforePushConstraint struct {
	PR      UpdateRef
	OldBase PushRef
}
type PushBeforeCreateConstraint struct {
	Push   PushRef
	Create CreateRef
}
type CreateOrderConstraint struct{ Parent, Child CreateRef }

func (c Constraint) String() string {
	switch {
	case c.PushOrder != nil:
		return fmt.Sprintf("PushOrder{%s -> %s}", c.PushOrder.Parent.bookmark, c.PushOrder.Child.bookmark)
	case c.PushBeforeRetarget != nil:
		return fmt.Sprintf("PushBeforeRetarget{%s -> update(%s)}", c.PushBeforeRetarget.Base.bookmark, c.PushBeforeRetarget.PR.bookmark)
	case c.RetargetBeforePush != nil:
		return fmt.Sprintf("RetargetBeforePush{update(%s) -> %s}", c.RetargetBeforePush.PR.bookmark, c.RetargetBeforePush.OldBase.bookmark)
	case c.PushBeforeCreate != nil:
		return fmt.Sprintf("PushBeforeCreate{%s -> create(%s)}", c.PushBeforeCreate.Push.bookmark, c.PushBeforeCreate.Create.bookmark)
	case c.CreateOrder != nil:
		return fmt.Sprintf("CreateOrder{%s -> %s}", c.CreateOrder.Parent.bookmark, c.CreateOrder.Child.bookmark)
	default:
		return "Constraint{}"
	}
}

// SubmissionPlan is the planner's output: the final ordered step
// sequence plus the constraint set that produced it, retained for
// diagnosis if a caller wants to understand why the order came out
// the way it did.
type SubmissionPlan struct {
	Steps       []Step
	Constraints []Constraint
}
