package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mikkurogue/jj-ryu/internal/analyzer"
	"github.com/mikkurogue/jj-ryu/internal/tracking"
)

var (
	statusTrunkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusCurrentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	statusPRStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusNoPRStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

func newStatusCommand() *cobra.Command {
	var forgeName string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the local bookmark stack and its known PR state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(forgeName)
		},
	}
	cmd.Flags().StringVar(&forgeName, "forge", "", "github|gitlab (auto-detected from the origin remote when omitted)")
	return cmd
}

func runStatus(forgeName string) error {
	ws, err := bootstrap(bootstrapOpts{forgeOverride: forgeName})
	if err != nil {
		return err
	}

	ctx := context.Background()
	existingPRs, pushRequired, discWarnings := discoverRemoteState(ctx, ws)
	ws.warnings = append(ws.warnings, discWarnings...)

	trackedSet := tracking.TrackedSet(ws.tracked)
	segments, warnings, err := analyzer.Analyze(ws.graph, analyzer.Scope{All: true}, trackedSet, existingPRs, pushRequired, nil)
	if err != nil {
		return err
	}
	ws.warnings = append(ws.warnings, warnings...)

	printWarnings(ws.warnings)
	renderStackTree(ws, segments, trackedSet)
	return nil
}

func renderStackTree(ws *workspace, segments []analyzer.Segment, tracked map[string]bool) {
	fmt.Fprintln(os.Stdout, statusTrunkStyle.Render(ws.graph.TrunkName()))
	for i, seg := range segments {
		indent := ""
		for j := 0; j < i+1; j++ {
			indent += "  "
		}
		name := seg.Bookmark.Name
		label := name
		if seg.Bookmark.IsWorkingCopy {
			label = statusCurrentStyle.Render(name + " @")
		}
		trackedMark := " "
		if tracked[name] {
			trackedMark = "*"
		}
		prLabel := statusNoPRStyle.Render("no PR")
		if seg.ExistingPR != nil {
			draft := ""
			if seg.ExistingPR.IsDraft {
				draft = " (draft)"
			}
			prLabel = statusPRStyle.Render(fmt.Sprintf("#%d %s%s", seg.ExistingPR.Number, seg.ExistingPR.State, draft))
		}
		pushMark := ""
		if seg.PushRequired {
			pushMark = " [push required]"
		}
		fmt.Fprintf(os.Stdout, "%s%s%s -> %s  %s%s\n", indent, trackedMark, label, prLabel, seg.ParentBookmarkOrTrunk, pushMark)
	}
}
