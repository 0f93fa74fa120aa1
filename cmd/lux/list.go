package main

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"
)

// listCommand prints every package the project's lockfile records.
type listCommand struct{}

func (c *listCommand) Name() string      { return "list" }
func (c *listCommand) ShortHelp() string { return "List installed rocks and where they live on disk" }
func (c *listCommand) Register(fs *flag.FlagSet) {}

func (c *listCommand) Run(ctx context.Context, cfg *cliConfig, args []string) error {
	luxCtx, project, err := loadContext(cfg)
	if err != nil {
		return err
	}

	rocks := luxCtx.List(project)
	w := tabwriter.NewWriter(cfg.logger.Writer(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "NAME\tVERSION\tENTRYPOINT\tSRC\n")
	for _, r := range rocks {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", r.Name, r.Version, r.Entrypoint, r.Layout.Src)
	}
	return w.Flush()
}
