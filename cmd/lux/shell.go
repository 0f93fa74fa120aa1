package main

import (
	"context"
	"flag"
)

// shellCommand spawns an interactive shell with the project's environment.
type shellCommand struct{}

func (c *shellCommand) Name() string      { return "shell" }
func (c *shellCommand) ShortHelp() string { return "Spawn an interactive shell with the project's environment" }
func (c *shellCommand) Register(fs *flag.FlagSet) {}

func (c *shellCommand) Run(ctx context.Context, cfg *cliConfig, args []string) error {
	luxCtx, project, err := loadContext(cfg)
	if err != nil {
		return err
	}
	return luxCtx.Shell(ctx, project)
}
