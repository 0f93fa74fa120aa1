package main

import (
	"context"
	"flag"
)

// syncBuildDependenciesCommand installs exactly the manifest's
// `build_dependencies`.
type syncBuildDependenciesCommand struct{}

func (c *syncBuildDependenciesCommand) Name() string { return "sync-build-dependencies" }
func (c *syncBuildDependenciesCommand) ShortHelp() string {
	return "Resolve and install only the build-time dependencies"
}
func (c *syncBuildDependenciesCommand) Register(fs *flag.FlagSet) {}

func (c *syncBuildDependenciesCommand) Run(ctx context.Context, cfg *cliConfig, args []string) error {
	syncer, err := loadSyncer(cfg)
	if err != nil {
		return err
	}
	result, err := syncer.SyncBuildDependencies(ctx)
	if err != nil {
		return err
	}
	reportSyncResult(cfg, result)
	return failureFrom(result)
}
