// Package tree implements the on-disk install tree: the RockLayout
// for one installed id, matching a PackageReq against what's already
// placed, and the content-digest used to verify a placed tree hasn't
// drifted from what the lockfile recorded.
package tree

import (
	"path/filepath"

	"github.com/lux-pm/lux/internal/resolver"
)

// RockLayout captures the absolute, per-id paths a build backend installs
// into and the installer later verifies, rooted at
// <tree_root>/<interpreter-version>/.
type RockLayout struct {
	Root string // <tree_root>/<interpreter-version>

	Src  string // share/lua/<abiver>/<pkg>/...
	Lib  string // lib/lua/<abiver>/<pkg>/...
	Bin  string // bin/
	Conf string // conf/
	Doc  string // doc/<pkg>/
	Etc  string // etc/ (e.g. queries/ for treesitter-parser grammars)
}

// NewRockLayout derives the absolute paths for one id within a tree
// rooted at treeRoot, for the given abi version (e.g. "5.1", "5.4", "jit").
func NewRockLayout(treeRoot, abiVersion string, name resolver.PackageName) RockLayout {
	root := filepath.Join(treeRoot, abiVersion)
	pkg := string(name.Normalize())
	return RockLayout{
		Root: root,
		Src:  filepath.Join(root, "share", "lua", abiVersion, pkg),
		Lib:  filepath.Join(root, "lib", "lua", abiVersion, pkg),
		Bin:  filepath.Join(root, "bin"),
		Conf: filepath.Join(root, "conf"),
		Doc:  filepath.Join(root, "doc", pkg),
		Etc:  filepath.Join(root, "etc"),
	}
}

// Dirs returns every directory the layout owns, in creation order (parents
// before the package-specific subdirectories beneath them).
func (l RockLayout) Dirs() []string {
	return []string{l.Root, l.Bin, l.Conf, l.Etc, l.Src, l.Lib, l.Doc}
}
