package main

import (
	"context"
	"flag"
)

// runCommand executes the project's configured `run` command.
type runCommand struct{}

func (c *runCommand) Name() string      { return "run" }
func (c *runCommand) ShortHelp() string { return "Run the project's configured `run` command" }
func (c *runCommand) Register(fs *flag.FlagSet) {}

func (c *runCommand) Run(ctx context.Context, cfg *cliConfig, args []string) error {
	luxCtx, project, err := loadContext(cfg)
	if err != nil {
		return err
	}
	return luxCtx.Run(ctx, project, args...)
}
