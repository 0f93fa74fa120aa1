package lux

import (
	"context"
	"os"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/lux-pm/lux/internal/tree"
)

// ErrAlreadyInShell is returned by Shell when it detects it is already
// running inside a shell Shell itself spawned.
var ErrAlreadyInShell = errors.New("already inside a lux shell")

// environmentFor composes the Environment a project's installed tree
// provides. A project with no lockfile yet gets an environment whose
// paths simply don't resolve to anything; Exec/RunLua/Shell still run,
// they just won't find any of the project's own dependencies.
func (c *Ctx) environmentFor(project *Project) Environment {
	tr := tree.New(c.Config.TreeRoot, c.ABIVersion())
	lock := project.Lock
	if lock == nil {
		lock = NewLockfile("")
	}
	return BuildEnvironment(lock, tr)
}

// Exec runs name with args against project's installed environment: the
// tree's bin/ prepended to PATH and LUA_PATH/LUA_CPATH set to the
// project's installed packages. Stdio is connected straight through to
// the calling process's own.
func (c *Ctx) Exec(ctx context.Context, project *Project, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.Env = c.environmentFor(project).Environ()
	return errors.Wrapf(cmd.Run(), "running %s", name)
}

// RunLua runs interpreter (defaulting to "lua") with args, against the
// same environment Exec would use. It exists as a separate entry point
// from Exec so a caller always running Lua itself doesn't need to name
// the interpreter at every call site.
func (c *Ctx) RunLua(ctx context.Context, project *Project, interpreter string, args ...string) error {
	if interpreter == "" {
		interpreter = "lua"
	}
	return c.Exec(ctx, project, interpreter, args...)
}

// Shell spawns an interactive shell ($SHELL, or /bin/sh if unset) with
// project's environment, the way a virtualenv activation drops a user
// into a shell that can already see everything it installed. It refuses
// to nest: a shell spawned this way exports LUX_SHELL=1, and Shell
// checks for it before spawning another.
func (c *Ctx) Shell(ctx context.Context, project *Project) error {
	if os.Getenv("LUX_SHELL") == "1" {
		return ErrAlreadyInShell
	}

	shellPath := os.Getenv("SHELL")
	if shellPath == "" {
		shellPath = "/bin/sh"
	}

	cmd := exec.CommandContext(ctx, shellPath)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.Env = append(c.environmentFor(project).Environ(), "LUX_SHELL=1")
	return errors.Wrap(cmd.Run(), "running interactive shell")
}
