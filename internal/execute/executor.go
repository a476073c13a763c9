// Package execute runs a resolved SubmissionPlan: one step at a time,
// against a ForgeService and a VCS handle, reporting lifecycle events
// and maintaining the bookmark->PR association the stack comments are
// built from.
package execute

import (
	"context"
	"fmt"
	"sort"

	"github.com/mikkurogue/jj-ryu/internal/forge"
	"github.com/mikkurogue/jj-ryu/internal/plan"
	"github.com/mikkurogue/jj-ryu/internal/progress"
	"github.com/mikkurogue/jj-ryu/internal/rerr"
)

// Pusher is the narrow VCS capability the executor needs: pushing one
// bookmark to the remote. jjvcs.Handle implements it by shelling out
// to `jj git push`.
type Pusher interface {
	PushBookmark(ctx context.Context, remote, bookmark string) error
}

// Executor runs steps against a forge and a VCS handle.
type Executor struct {
	Forge  forge.Service
	VCS    Pusher
	Sink   progress.Sink
	Remote string
	DryRun bool
}

// PRInfo is the executor's running record of a bookmark's PR, updated
// as CreatePr/UpdateBase steps complete. StackPos carries the
// bookmark's position in the stack (nearest-to-trunk = 0) so the
// stack comment can be rendered in stack order regardless of the
// random iteration order of the BookmarkToPR map.
type PRInfo struct {
	Number   int
	URL      string
	Title    string
	Base     string
	StackPos int
}

// Report is returned after Execute finishes, whether it ran to
// completion or aborted on a step failure.
type Report struct {
	BookmarkToPR map[string]PRInfo
	Pushed       []string
	Created      []string
	Updated      []string
	Published    []string
	Warnings     []string
	Aborted      bool
	FailedStep   string
}

// Execute runs steps in order. A step failure aborts the remaining
// plan; steps already executed are not rolled back. cancel is polled
// between steps only, never mid-step.
func (e *Executor) Execute(ctx context.Context, p *plan.SubmissionPlan, cancel <-chan struct{}, prByBookmark map[string]PRInfo) (*Report, error) {
	report := &Report{BookmarkToPR: copyPRMap(prByBookmark)}

	for _, step := range p.Steps {
		select {
		case <-cancel:
			report.Aborted = true
			return report, nil
		default:
		}

		e.notify(progress.PhaseStarted, step, "")

		var err error
		switch step.Kind {
		case plan.KindPush:
			err = e.runPush(ctx, step, report)
		case plan.KindCreatePr:
			err = e.runCreatePr(ctx, step, report)
		case plan.KindUpdateBase:
			err = e.runUpdateBase(ctx, step, report)
		case plan.KindPublishPr:
			err = e.runPublish(ctx, step, report)
		default:
			err = rerr.Newf(rerr.Internal, "unknown step kind %v", step.Kind)
		}

		if err != nil {
			e.notify(progress.PhaseFailed, step, err.Error())
			report.Aborted = true
			report.FailedStep = fmt.Sprintf("%s(%s)", step.Kind, step.Bookmark)
			return report, rerr.WithStep(categoryFor(err), step.Bookmark, step.Kind.String(), err)
		}
		e.notify(progress.PhaseCompleted, step, "")
	}

	if err := e.upsertStackComments(ctx, report); err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("stack comment update failed: %v", err))
	}

	return report, nil
}

func (e *Executor) runPush(ctx context.Context, step plan.Step, report *Report) error {
	if e.DryRun {
		report.Pushed = append(report.Pushed, step.Push.Bookmark)
		return nil
	}
	if err := e.VCS.PushBookmark(ctx, e.Remote, step.Push.Bookmark); err != nil {
		return err
	}
	report.Pushed = append(report.Pushed, step.Push.Bookmark)
	return nil
}

func (e *Executor) runCreatePr(ctx context.Context, step plan.Step, report *Report) error {
	cp := step.CreatePr
	if e.DryRun {
		report.Created = append(report.Created, cp.Bookmark)
		return nil
	}
	pr, err := e.Forge.CreatePR(ctx, forge.CreateParams{
		Head:  cp.Bookmark,
		Base:  cp.Base,
		Title: cp.Title,
		Body:  cp.Body,
		Draft: cp.Draft,
	})
	if err != nil {
		return err
	}
	report.BookmarkToPR[cp.Bookmark] = PRInfo{Number: pr.Number, URL: pr.URL, Title: pr.Title, Base: pr.BaseBranch, StackPos: step.StackPos}
	report.Created = append(report.Created, cp.Bookmark)
	return nil
}

func (e *Executor) runUpdateBase(ctx context.Context, step plan.Step, report *Report) error {
	ub := step.UpdateBase
	if e.DryRun {
		report.Updated = append(report.Updated, step.Bookmark)
		return nil
	}
	if err := e.Forge.UpdatePRBase(ctx, ub.PRNumber, ub.NewBase); err != nil {
		return err
	}
	if info, ok := report.BookmarkToPR[step.Bookmark]; ok {
		info.Base = ub.NewBase
		report.BookmarkToPR[step.Bookmark] = info
	}
	report.Updated = append(report.Updated, step.Bookmark)
	return nil
}

func (e *Executor) runPublish(ctx context.Context, step plan.Step, report *Report) error {
	pp := step.PublishPr
	if e.DryRun {
		report.Published = append(report.Published, step.Bookmark)
		return nil
	}
	if err := e.Forge.PublishPR(ctx, pp.PRNumber); err != nil {
		return err
	}
	report.Published = append(report.Published, step.Bookmark)
	return nil
}

// upsertStackComments issues at most one comment upsert per PR in the
// scope, omitting the comment entirely for a single-PR stack. Since
// ForgeService exposes no delete primitive, a stale single-PR comment
// from a prior multi-PR stack is left in place; see DESIGN.md.
func (e *Executor) upsertStackComments(ctx context.Context, report *Report) error {
	if e.DryRun || len(report.BookmarkToPR) < 2 {
		return nil
	}

	entries := make([]stackEntry, 0, len(report.BookmarkToPR))
	for bookmark, info := range report.BookmarkToPR {
		entries = append(entries, stackEntry{Bookmark: bookmark, Number: info.Number, URL: info.URL, Title: info.Title, StackPos: info.StackPos})
	}
	// report.BookmarkToPR is a map; iteration order above is random.
	// buildStackComment renders newest-at-top assuming entries arrive
	// nearest-to-trunk first, so sort before handing it off.
	sort.Slice(entries, func(i, j int) bool { return entries[i].StackPos < entries[j].StackPos })

	var firstErr error
	for bookmark, info := range report.BookmarkToPR {
		body := buildStackComment(entries, bookmark)
		if err := e.Forge.UpsertStackComment(ctx, info.Number, body, marker()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *Executor) notify(phase progress.Phase, step plan.Step, detail string) {
	if e.Sink == nil {
		return
	}
	e.Sink.Notify(progress.Event{Phase: phase, Kind: step.Kind, Bookmark: step.Bookmark, Detail: detail})
}

func copyPRMap(m map[string]PRInfo) map[string]PRInfo {
	out := make(map[string]PRInfo, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func categoryFor(err error) rerr.Category {
	if _, ok := err.(*forge.Error); ok {
		return rerr.Forge
	}
	return rerr.Internal
}
