package main

import (
	"context"
	"errors"
	"flag"
)

// execCommand runs an arbitrary command against the project's installed
// environment.
type execCommand struct{}

func (c *execCommand) Name() string      { return "exec" }
func (c *execCommand) ShortHelp() string { return "Run a command against the project's installed environment" }
func (c *execCommand) Register(fs *flag.FlagSet) {}

func (c *execCommand) Run(ctx context.Context, cfg *cliConfig, args []string) error {
	if len(args) == 0 {
		return errors.New("exec: no command given")
	}
	luxCtx, project, err := loadContext(cfg)
	if err != nil {
		return err
	}
	return luxCtx.Exec(ctx, project, args[0], args[1:]...)
}
