package lux

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lux-pm/lux/internal/config"
	"github.com/lux-pm/lux/internal/registry"
	"github.com/lux-pm/lux/internal/resolver"
)

func newExecTestCtx(t *testing.T) (*Ctx, *Project) {
	t.Helper()

	treeRoot := t.TempDir()
	cfg, err := config.NewBuilder().
		TreeRoot(treeRoot).
		CacheDir(t.TempDir()).
		InterpreterVersion("5.4").
		AddRegistry(registry.Server{Name: "primary"}).
		Build()
	if err != nil {
		t.Fatalf("building config: %v", err)
	}
	ctx := NewContext(cfg, nil)

	lock := NewLockfile(filepath.Join(t.TempDir(), "lux-lock.json"))
	version, err := resolver.ParsePackageVersion("1.0.0-1")
	if err != nil {
		t.Fatalf("ParsePackageVersion: %v", err)
	}
	lock.Packages["foo@1.0.0-1"] = LocalPackage{
		ID:      "foo@1.0.0-1",
		Name:    "foo",
		Version: version,
	}

	project := &Project{AbsRoot: t.TempDir(), Manifest: NewRockspec("demo", version), Lock: lock}
	return ctx, project
}

func TestEnvironmentForIncludesInstalledPackagePaths(t *testing.T) {
	ctx, project := newExecTestCtx(t)
	env := ctx.environmentFor(project)

	if !strings.Contains(env.LuaPath, filepath.Join("foo", "?.lua")) {
		t.Fatalf("expected LUA_PATH to reference foo's module dir, got %q", env.LuaPath)
	}
	if !strings.Contains(env.LuaCPath, filepath.Join("foo", "?.so")) {
		t.Fatalf("expected LUA_CPATH to reference foo's lib dir, got %q", env.LuaCPath)
	}
	if !strings.HasPrefix(env.Path, ctx.Config.TreeRoot) {
		t.Fatalf("expected PATH to be prefixed by the tree root, got %q", env.Path)
	}
}

func TestExecRunsCommandWithComposedEnvironment(t *testing.T) {
	ctx, project := newExecTestCtx(t)

	out := filepath.Join(t.TempDir(), "lua_path.txt")
	err := ctx.Exec(context.Background(), project, "sh", "-c", `printf '%s' "$LUA_PATH" > "`+out+`"`)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading captured LUA_PATH: %v", err)
	}
	if !strings.Contains(string(data), "foo") {
		t.Fatalf("expected child's LUA_PATH to mention foo, got %q", string(data))
	}
}

func TestShellRefusesToNest(t *testing.T) {
	ctx, project := newExecTestCtx(t)
	t.Setenv("LUX_SHELL", "1")

	err := ctx.Shell(context.Background(), project)
	if err != ErrAlreadyInShell {
		t.Fatalf("expected ErrAlreadyInShell, got %v", err)
	}
}
