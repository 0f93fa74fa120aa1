package main

import (
	"context"
	"flag"
)

// syncDependenciesCommand installs exactly the manifest's `dependencies`,
// without touching build- or test-only rocks.
type syncDependenciesCommand struct{}

func (c *syncDependenciesCommand) Name() string { return "sync-dependencies" }
func (c *syncDependenciesCommand) ShortHelp() string {
	return "Resolve and install only the runtime dependencies"
}
func (c *syncDependenciesCommand) Register(fs *flag.FlagSet) {}

func (c *syncDependenciesCommand) Run(ctx context.Context, cfg *cliConfig, args []string) error {
	syncer, err := loadSyncer(cfg)
	if err != nil {
		return err
	}
	result, err := syncer.SyncDependencies(ctx)
	if err != nil {
		return err
	}
	reportSyncResult(cfg, result)
	return failureFrom(result)
}
