package lux

import (
	"context"

	"github.com/pkg/errors"

	"github.com/lux-pm/lux/internal/config"
)

// ErrNoRunSpec is returned by Run when the project's manifest has no
// `run` table for the current platform.
var ErrNoRunSpec = errors.New("no run command configured in lux.toml")

// Run executes the project's configured `run` command, appending args to
// whatever the manifest's `run` table specifies. A manifest whose `run`
// table names no command at all (command-less, args-only) runs the Lua
// interpreter instead, so a pure-script project can still be "run"
// without a shell wrapper to name.
func (c *Ctx) Run(ctx context.Context, project *Project, args ...string) error {
	resolved := project.Manifest.Resolve([]string{config.HostPlatform()})
	if resolved.Run == nil {
		return ErrNoRunSpec
	}
	if len(resolved.Run.Command) == 0 {
		return c.RunLua(ctx, project, "", args...)
	}

	name := resolved.Run.Command[0]
	cmdArgs := append(append([]string{}, resolved.Run.Command[1:]...), args...)
	return c.Exec(ctx, project, name, cmdArgs...)
}
