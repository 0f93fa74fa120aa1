package main

import (
	"context"
	"flag"
)

// syncTestDependenciesCommand installs exactly the manifest's
// `test_dependencies`.
type syncTestDependenciesCommand struct{}

func (c *syncTestDependenciesCommand) Name() string { return "sync-test-dependencies" }
func (c *syncTestDependenciesCommand) ShortHelp() string {
	return "Resolve and install only the test dependencies"
}
func (c *syncTestDependenciesCommand) Register(fs *flag.FlagSet) {}

func (c *syncTestDependenciesCommand) Run(ctx context.Context, cfg *cliConfig, args []string) error {
	syncer, err := loadSyncer(cfg)
	if err != nil {
		return err
	}
	result, err := syncer.SyncTestDependencies(ctx)
	if err != nil {
		return err
	}
	reportSyncResult(cfg, result)
	return failureFrom(result)
}
