package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/lux-pm/lux"
	"github.com/lux-pm/lux/internal/installer"
)

// syncCommand reconciles every dependency kind in one pass, pruning
// anything no longer referenced.
type syncCommand struct{}

func (c *syncCommand) Name() string      { return "sync" }
func (c *syncCommand) ShortHelp() string { return "Resolve and install every dependency kind, pruning the rest" }
func (c *syncCommand) Register(fs *flag.FlagSet) {}

func (c *syncCommand) Run(ctx context.Context, cfg *cliConfig, args []string) error {
	syncer, err := loadSyncer(cfg)
	if err != nil {
		return err
	}
	result, err := syncer.Sync(ctx)
	if err != nil {
		return err
	}
	reportSyncResult(cfg, result)
	return failureFrom(result)
}

// reportSyncResult prints a one-line summary of what a sync pass did; the
// per-package detail is already logged through Ctx.Logger as
// SyncResult.Diff's feedback lines. Per-node installer results are not
// logged individually.
func reportSyncResult(cfg *cliConfig, result *lux.SyncResult) {
	if cfg.logger == nil {
		return
	}
	installed := 0
	failed := 0
	for _, r := range result.Results {
		switch r.State {
		case installer.StateRecorded:
			installed++
		case installer.StateFailed:
			failed++
		}
	}
	fmt.Fprintf(cfg.logger.Writer(), "synced: %d installed, %d failed, %d removed\n", installed, failed, len(result.Removed))
}

// failureFrom returns a *lux.PartialFailureError if any node in result
// ended in installer.StateFailed, so main's dispatch exits non-zero on a
// partially-failed sync instead of treating it as success.
func failureFrom(result *lux.SyncResult) error {
	if failed := lux.FailedResults(result.Results); len(failed) > 0 {
		return &lux.PartialFailureError{Failed: failed}
	}
	return nil
}
