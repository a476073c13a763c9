package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikkurogue/jj-ryu/internal/rerr"
	"github.com/mikkurogue/jj-ryu/internal/tracking"
)

func newTrackCommand() *cobra.Command {
	var useSelect bool
	var remote string
	cmd := &cobra.Command{
		Use:   "track [bookmarks...]",
		Short: "Mark bookmarks as tracked for submission",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrack(cmd, args, useSelect, true, remote)
		},
	}
	cmd.Flags().BoolVar(&useSelect, "select", false, "interactively pick which bookmarks to track")
	cmd.Flags().StringVar(&remote, "remote", "", "associate tracked bookmarks with a specific remote")
	return cmd
}

func newUntrackCommand() *cobra.Command {
	var useSelect bool
	cmd := &cobra.Command{
		Use:   "untrack [bookmarks...]",
		Short: "Stop tracking bookmarks for submission",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrack(cmd, args, useSelect, false, "")
		},
	}
	cmd.Flags().BoolVar(&useSelect, "select", false, "interactively pick which bookmarks to untrack")
	return cmd
}

// runTrack adds or removes tracking records. remote is ignored when
// track is false: untrack deletes a bookmark's record outright, so it
// has no remote association to carry.
func runTrack(cmd *cobra.Command, names []string, useSelect bool, track bool, remote string) error {
	ws, err := bootstrap(bootstrapOpts{})
	if err != nil {
		return err
	}

	if useSelect {
		order := ws.graph.BookmarksInOrder()
		preMarked := tracking.TrackedSet(ws.tracked)
		picked, err := selectPrompt(true)(order, preMarked)
		if err != nil {
			return err
		}
		names = picked
	}

	if len(names) == 0 {
		return usageError(cmd, "no bookmarks named; pass names or --select")
	}

	for _, name := range names {
		if _, ok := ws.graph.Bookmark(name); !ok {
			return rerr.Newf(rerr.UserInput, "unknown bookmark %q", name)
		}
	}

	byName := make(map[string]tracking.Record, len(ws.tracked))
	for _, r := range ws.tracked {
		byName[r.Name] = r
	}

	if track {
		for _, name := range names {
			bk, _ := ws.graph.Bookmark(name)
			byName[name] = tracking.Record{Name: name, ChangeID: bk.ChangeID, Remote: remote, TrackedAt: time.Now().UTC()}
		}
	} else {
		for _, name := range names {
			delete(byName, name)
		}
	}

	records := make([]tracking.Record, 0, len(byName))
	for _, r := range byName {
		records = append(records, r)
	}

	store := tracking.Open(ws.vcs.Root())
	if err := store.Save(records); err != nil {
		return err
	}

	verb := "tracking"
	if !track {
		verb = "untracked"
	}
	fmt.Fprintf(os.Stdout, "%s: %v\n", verb, names)
	return nil
}
