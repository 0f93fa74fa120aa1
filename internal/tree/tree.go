package tree

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/lux-pm/lux/internal/resolver"
)

// Tree is the root of one interpreter version's install tree: the same
// (treeRoot, abiVersion) pair NewRockLayout derives every id's paths
// from, plus the whole-tree operations that don't belong to any single
// id (listing what's installed, purging everything at once).
type Tree struct {
	Root       string
	ABIVersion string
}

// New returns the Tree rooted at treeRoot for the given abi version.
func New(treeRoot, abiVersion string) Tree {
	return Tree{Root: treeRoot, ABIVersion: abiVersion}
}

// RootDir is the absolute <tree_root>/<abi_version> directory this tree
// owns, matching RockLayout.Root for any id within it.
func (t Tree) RootDir() string {
	return filepath.Join(t.Root, t.ABIVersion)
}

// BinDir is the tree's shared bin/ directory, where every id's wrapper
// scripts land regardless of package name.
func (t Tree) BinDir() string {
	return filepath.Join(t.RootDir(), "bin")
}

// Layout derives name's RockLayout within this tree.
func (t Tree) Layout(name resolver.PackageName) RockLayout {
	return NewRockLayout(t.Root, t.ABIVersion, name)
}

// Installed enumerates the package-qualified subdirectories this tree's
// share/lua and lib/lua directories contain. A package installed with
// neither Lua modules nor C modules (a pure data or font rock, say)
// won't appear here; callers that need the authoritative installed set
// should prefer a lockfile's Packages instead and use Installed only when
// no lockfile is available (e.g. after a manual tree inspection).
func (t Tree) Installed() ([]resolver.PackageName, error) {
	seen := make(map[string]bool)
	var names []resolver.PackageName
	for _, dir := range []string{
		filepath.Join(t.RootDir(), "share", "lua", t.ABIVersion),
		filepath.Join(t.RootDir(), "lib", "lua", t.ABIVersion),
	} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "reading %s", dir)
		}
		for _, e := range entries {
			if !e.IsDir() || seen[e.Name()] {
				continue
			}
			seen[e.Name()] = true
			names = append(names, resolver.PackageName(e.Name()))
		}
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names, nil
}

// Purge removes this tree's entire root directory, recorded or not. It
// is not lockfile-scoped: everything on disk under RootDir goes.
func (t Tree) Purge() error {
	root := t.RootDir()
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(os.RemoveAll(root), "removing %s", root)
}
