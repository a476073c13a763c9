package main

import (
	"fmt"
	"os"

	"github.com/mikkurogue/jj-ryu/internal/config"
	"github.com/mikkurogue/jj-ryu/internal/forge"
	"github.com/mikkurogue/jj-ryu/internal/graph"
	"github.com/mikkurogue/jj-ryu/internal/jjvcs"
	"github.com/mikkurogue/jj-ryu/internal/tracking"
)

// workspace bundles the state every subcommand needs after opening
// the jj workspace: the VCS handle, the built graph, the resolved
// forge adapter, tracking state, and warnings collected along the way.
type workspace struct {
	vcs      *jjvcs.Handle
	graph    *graph.ChangeGraph
	forge    forge.Service
	cfg      config.Config
	remote   string
	tracked  []tracking.Record
	prCache  []tracking.CachedPR
	warnings []string
}

type bootstrapOpts struct {
	forgeOverride string
	remote        string
}

func bootstrap(opts bootstrapOpts) (*workspace, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}

	handle, err := jjvcs.Open(dir)
	if err != nil {
		return nil, err
	}

	g, err := graph.Build(handle)
	if err != nil {
		return nil, err
	}

	ws := &workspace{vcs: handle, graph: g}
	for _, ex := range g.Excluded() {
		ws.warnings = append(ws.warnings, fmt.Sprintf("excluding %q: %s", ex.Name, ex.Reason))
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	ws.cfg = cfg

	trackStore := tracking.Open(handle.Root())
	records, err := trackStore.Load()
	if err != nil {
		return nil, err
	}
	records, warnings := tracking.Reconcile(g, records)
	ws.warnings = append(ws.warnings, warnings...)
	if err := trackStore.Save(records); err != nil {
		return nil, fmt.Errorf("saving reconciled tracking file: %w", err)
	}
	ws.tracked = records

	cache := tracking.OpenPRCache(handle.Root())
	cachedPRs, err := cache.Load()
	if err != nil {
		return nil, err
	}
	ws.prCache = cachedPRs

	remote := opts.remote
	if remote == "" {
		remote = cfg.DefaultRemote
	}
	svc, detectedName, detectedFromHost, err := detectForge(handle.Root(), opts.forgeOverride, cfg.PreferredForge)
	if err != nil {
		return nil, err
	}
	ws.forge = svc
	ws.remote = remote

	if detectedFromHost {
		cacheDetectedForge(cfg, detectedName)
	}

	return ws, nil
}

// cacheDetectedForge persists a host-auto-detected forge choice to
// config.json on first run, so later invocations skip the `git remote
// get-url`/host-matching probe entirely. Never overwrites a config
// file a user already has (ConfigExists), and never fires when the
// forge came from --forge or an existing PreferredForge, since those
// already took priority over detection in detectForge.
func cacheDetectedForge(cfg config.Config, name string) {
	exists, err := config.ConfigExists()
	if err != nil || exists {
		return
	}
	cfg.PreferredForge = name
	if err := config.SaveConfig(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "warning: failed to cache detected forge:", err)
	}
}
