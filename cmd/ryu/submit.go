package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikkurogue/jj-ryu/internal/analyzer"
	"github.com/mikkurogue/jj-ryu/internal/execute"
	"github.com/mikkurogue/jj-ryu/internal/forge"
	"github.com/mikkurogue/jj-ryu/internal/plan"
	"github.com/mikkurogue/jj-ryu/internal/progress"
	"github.com/mikkurogue/jj-ryu/internal/tracking"
)

type submitFlags struct {
	stack      bool
	upto       string
	only       bool
	updateOnly bool
	selectFlag bool
	all        bool
	draft      bool
	publish    bool
	remote     string
	dryRun     bool
	forgeName  string
}

func newSubmitCommand() *cobra.Command {
	var f submitFlags

	cmd := &cobra.Command{
		Use:   "submit [target]",
		Short: "Submit the local bookmark stack as a chain of pull requests",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			return runSubmit(cmd, target, f)
		},
	}

	cmd.Flags().BoolVar(&f.stack, "stack", false, "select the target's full stack, including descendants")
	cmd.Flags().StringVar(&f.upto, "upto", "", "select the chain from trunk up to and including this bookmark")
	cmd.Flags().BoolVar(&f.only, "only", false, "select exactly the target bookmark")
	cmd.Flags().BoolVar(&f.updateOnly, "update-only", false, "skip segments with no existing PR")
	cmd.Flags().BoolVar(&f.selectFlag, "select", false, "interactively pick which bookmarks to submit")
	cmd.Flags().BoolVar(&f.all, "all", false, "include untracked bookmarks")
	cmd.Flags().BoolVar(&f.all, "include-untracked", false, "same as --all")
	cmd.Flags().BoolVar(&f.draft, "draft", false, "open new PRs as drafts")
	cmd.Flags().BoolVar(&f.publish, "publish", false, "clear draft state on existing draft PRs in scope")
	cmd.Flags().StringVar(&f.remote, "remote", "", "remote to push to (overrides config default)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "compute and print the plan without mutating anything")
	cmd.Flags().StringVar(&f.forgeName, "forge", "", "github|gitlab (auto-detected from the origin remote when omitted)")
	return cmd
}

func runSubmit(cmd *cobra.Command, target string, f submitFlags) error {
	ws, err := bootstrap(bootstrapOpts{forgeOverride: f.forgeName, remote: f.remote})
	if err != nil {
		return err
	}

	ctx := context.Background()
	existingPRs, pushRequired, discWarnings := discoverRemoteState(ctx, ws)
	ws.warnings = append(ws.warnings, discWarnings...)

	scope := analyzer.Scope{
		Target:     target,
		Stack:      f.stack,
		Upto:       f.upto,
		Only:       f.only,
		UpdateOnly: f.updateOnly,
		Select:     f.selectFlag,
		All:        f.all,
	}
	trackedSet := tracking.TrackedSet(ws.tracked)

	segments, warnings, err := analyzer.Analyze(ws.graph, scope, trackedSet, existingPRs, pushRequired, selectPrompt(f.selectFlag))
	if err != nil {
		return err
	}
	ws.warnings = append(ws.warnings, warnings...)

	planner := &plan.Planner{}
	submissionPlan, planWarnings, err := planner.Plan(ctx, segments, plan.Options{Draft: f.draft, Publish: f.publish, UpdateOnly: f.updateOnly})
	if err != nil {
		return err
	}
	ws.warnings = append(ws.warnings, planWarnings...)

	if len(submissionPlan.Steps) == 0 {
		printWarnings(ws.warnings)
		fmt.Fprintln(os.Stdout, "up to date: nothing to submit")
		return nil
	}

	if f.dryRun {
		printWarnings(ws.warnings)
		printPlan(submissionPlan)
		return nil
	}

	exec := &execute.Executor{
		Forge:  ws.forge,
		VCS:    ws.vcs,
		Sink:   progress.NewTerm(),
		Remote: remoteOrDefault(f.remote, ws.cfg.DefaultRemote),
		DryRun: false,
	}
	report, err := exec.Execute(ctx, submissionPlan, nil, priorPRMap(segments))
	printWarnings(append(ws.warnings, report.Warnings...))
	if err != nil {
		return err
	}

	if saveErr := persistPRCache(ws, report); saveErr != nil {
		fmt.Fprintln(os.Stderr, "warning: failed to persist PR cache:", saveErr)
	}
	return nil
}

func remoteOrDefault(flag, cfgDefault string) string {
	if flag != "" {
		return flag
	}
	if cfgDefault != "" {
		return cfgDefault
	}
	return "origin"
}

func priorPRMap(segments []analyzer.Segment) map[string]execute.PRInfo {
	out := make(map[string]execute.PRInfo, len(segments))
	for i, seg := range segments {
		if seg.ExistingPR == nil {
			continue
		}
		out[seg.Bookmark.Name] = execute.PRInfo{
			Number:   seg.ExistingPR.Number,
			URL:      seg.ExistingPR.URL,
			Title:    seg.ExistingPR.Title,
			Base:     seg.ExistingPR.BaseBranch,
			StackPos: i,
		}
	}
	return out
}

// discoverRemoteState implements the planner's first substep: for
// every candidate bookmark, look up its PR by head branch (retried
// once on a transport error) and compare its local commit against
// what the remote last saw.
func discoverRemoteState(ctx context.Context, ws *workspace) (map[string]*forge.PullRequest, map[string]bool, []string) {
	existingPRs := make(map[string]*forge.PullRequest)
	pushRequired := make(map[string]bool)
	warnings := make([]string, 0)

	for _, name := range ws.graph.BookmarksInOrder() {
		bk, ok := ws.graph.Bookmark(name)
		if !ok {
			continue
		}

		pr, err := forge.WithOneRetry(func() (*forge.PullRequest, error) {
			return ws.forge.FindPRByHead(ctx, name)
		})
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("could not look up PR for %q: %v", name, err))
		} else {
			existingPRs[name] = pr
		}

		remoteCommit, err := ws.vcs.RemoteCommitID(name, remoteOrDefault(ws.remote, ws.cfg.DefaultRemote))
		if err != nil || remoteCommit == "" || remoteCommit != bk.CommitID {
			pushRequired[name] = true
		}
	}
	return existingPRs, pushRequired, warnings
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
}

func printPlan(p *plan.SubmissionPlan) {
	for _, step := range p.Steps {
		fmt.Fprintf(os.Stdout, "%s %s\n", step.Kind, step.Bookmark)
	}
}

func persistPRCache(ws *workspace, report *execute.Report) error {
	cache := tracking.OpenPRCache(ws.vcs.Root())
	entries := make([]tracking.CachedPR, 0, len(report.BookmarkToPR))
	now := currentTimeForCache()
	for bookmark, info := range report.BookmarkToPR {
		entries = append(entries, tracking.CachedPR{
			Bookmark:  bookmark,
			Number:    info.Number,
			URL:       info.URL,
			Remote:    remoteOrDefault(ws.remote, ws.cfg.DefaultRemote),
			UpdatedAt: now,
		})
	}
	return cache.Save(entries)
}

func currentTimeForCache() time.Time {
	return time.Now().UTC()
}
