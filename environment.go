package lux

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lux-pm/lux/internal/tree"
)

// Environment is the PATH/LUA_PATH/LUA_CPATH a child process needs in
// order to see a tree's shared bin/ and every installed package's Lua
// and C module directories: the same composition internal/build's
// writeBinWrappers does for a single id's LUA_PATH/LUA_CPATH, but across
// the whole tree instead of one package.
type Environment struct {
	Path     string
	LuaPath  string
	LuaCPath string
}

// BuildEnvironment composes the environment every package lock currently
// records within tr, in lockfile iteration order made deterministic by
// sorting the resulting path entries.
func BuildEnvironment(lock *Lockfile, tr tree.Tree) Environment {
	var luaPath, luaCPath []string
	for _, pkg := range lock.Packages {
		layout := tr.Layout(pkg.Name)
		luaPath = append(luaPath,
			filepath.Join(layout.Src, "?.lua"),
			filepath.Join(layout.Src, "?", "init.lua"),
		)
		luaCPath = append(luaCPath, filepath.Join(layout.Lib, "?.so"))
	}
	sort.Strings(luaPath)
	sort.Strings(luaCPath)

	return Environment{
		Path:     tr.BinDir() + string(os.PathListSeparator) + os.Getenv("PATH"),
		LuaPath:  strings.Join(luaPath, ";") + ";;",
		LuaCPath: strings.Join(luaCPath, ";") + ";;",
	}
}

// Prepend layers other's paths ahead of e's own, for stacking a second
// environment (e.g. a build-only tree) in front of the base one.
func (e Environment) Prepend(other Environment) Environment {
	return Environment{
		Path:     other.Path + string(os.PathListSeparator) + e.Path,
		LuaPath:  other.LuaPath + e.LuaPath,
		LuaCPath: other.LuaCPath + e.LuaCPath,
	}
}

// Environ returns os.Environ() with PATH, LUA_PATH, and LUA_CPATH
// replaced by e's composed values, suitable for exec.Cmd.Env.
func (e Environment) Environ() []string {
	overrides := map[string]string{"PATH": e.Path, "LUA_PATH": e.LuaPath, "LUA_CPATH": e.LuaCPath}

	out := make([]string, 0, len(os.Environ())+len(overrides))
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if _, overridden := overrides[key]; overridden {
			continue
		}
		out = append(out, kv)
	}
	for _, key := range []string{"PATH", "LUA_PATH", "LUA_CPATH"} {
		out = append(out, key+"="+overrides[key])
	}
	return out
}
