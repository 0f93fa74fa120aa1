package main

import (
	"context"
	"flag"
)

// purgeCommand removes the entire tree root for the configured
// interpreter version.
type purgeCommand struct{}

func (c *purgeCommand) Name() string      { return "purge" }
func (c *purgeCommand) ShortHelp() string { return "Remove the entire install tree for the configured interpreter version" }
func (c *purgeCommand) Register(fs *flag.FlagSet) {}

func (c *purgeCommand) Run(ctx context.Context, cfg *cliConfig, args []string) error {
	luxCtx, err := loadCtx(cfg)
	if err != nil {
		return err
	}
	return luxCtx.Purge()
}
