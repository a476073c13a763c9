package main

import (
	"github.com/spf13/cobra"
)

// newSyncCommand is submit without requiring an explicit target: it
// re-plans and re-executes against whichever bookmarks are already
// tracked (or the full trunk()..@ chain if nothing is tracked yet),
// bringing the remote back in agreement with the local stack. Passing
// a bookmark name restricts it to that bookmark's stack.
func newSyncCommand() *cobra.Command {
	var f submitFlags

	cmd := &cobra.Command{
		Use:   "sync [stack]",
		Short: "Re-sync the remote PR graph with the current local stack",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
				f.stack = true
			}
			return runSubmit(cmd, target, f)
		},
	}

	cmd.Flags().BoolVar(&f.draft, "draft", false, "open new PRs as drafts")
	cmd.Flags().BoolVar(&f.publish, "publish", false, "clear draft state on existing draft PRs in scope")
	cmd.Flags().StringVar(&f.remote, "remote", "", "remote to push to (overrides config default)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "compute and print the plan without mutating anything")
	cmd.Flags().StringVar(&f.forgeName, "forge", "", "github|gitlab (auto-detected from the origin remote when omitted)")
	return cmd
}
