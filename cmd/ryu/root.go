package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "ryu",
		Short:         "Submit a jj bookmark stack as a chain of pull requests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newSubmitCommand(),
		newSyncCommand(),
		newStatusCommand(),
		newTrackCommand(),
		newUntrackCommand(),
	)
	return root
}

func usageError(cmd *cobra.Command, message string) error {
	return fmt.Errorf("%s\n\n%s", message, strings.TrimSpace(cmd.UsageString()))
}
