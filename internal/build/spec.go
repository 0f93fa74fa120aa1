// Package build implements the build dispatcher: turning one
// staged source directory into populated RockLayout outputs, via
// whichever backend the rockspec declares.
package build

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/lux-pm/lux/internal/tree"
)

// Backend enumerates the build strategies a rockspec may declare.
type Backend int

const (
	BackendBuiltin Backend = iota
	BackendMake
	BackendCMake
	BackendCommand
	BackendTreesitterParser
	BackendRustMlua
	BackendLegacyShim
)

// Spec is the fully-resolved build description for one package: which
// backend to use and the backend-specific fields it needs. Only the
// fields relevant to Backend are populated.
type Spec struct {
	Backend Backend

	// BackendBuiltin
	Modules map[string][]string // lua module name -> C source files
	Copy    map[string]string   // source path (relative) -> destination relative to layout.Src

	// BackendMake, BackendCMake
	Variables map[string]string // extra variables layered on top of LUA/LUALIB/LUA_INCDIR/LUA_LIBDIR
	Target    string            // make target to invoke; defaults to "install"

	// BackendCommand
	Command []string // argv, never shell-interpreted

	// BackendTreesitterParser
	GrammarJS   string
	QueryFiles  []string

	// BackendRustMlua
	CargoProfile string
	LuaFeature   string // e.g. "lua54", "luajit"

	// BackendLegacyShim
	RockspecPath string

	// WrapBinScripts controls whether post-build wrapper generation
	// runs. A manifest's deploy.wrap_bin_scripts is kept in its
	// DeploySpec and is not copied into this field.
	WrapBinScripts bool
	BinScripts     []string // names (relative to Src) to wrap into layout.Bin
}

// Hash returns a hex-encoded sha256 digest over s's JSON encoding, stable
// across map-valued fields (encoding/json sorts map keys). Two rockspecs
// that declare the same backend and fields hash identically regardless of
// field insertion order; a changed backend, command, or source file list
// produces a different digest, which is what drives a rebuild when a
// package's name and version are unchanged but its build declaration
// is not.
func (s Spec) Hash() string {
	data, err := json.Marshal(s)
	if err != nil {
		// Spec holds only marshalable field types; a failure here means a
		// field was added that encoding/json can't handle.
		panic(err)
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Interpreter describes the target Lua installation the backend builds
// against.
type Interpreter struct {
	Executable string
	IncludeDir string
	LibDir     string
	ABIVersion string
	LuaLib     string // library name to link, e.g. "lua5.4"
}

// Env composes the inputs a backend needs beyond the Spec itself: the
// staged source directory, the output layout, the interpreter
// installation, and resolved external dependency lookups (pkg-config-like
// name -> {cflags, libs}).
type Env struct {
	SourceDir   string
	Layout      tree.RockLayout
	Interpreter Interpreter
	ExternalDeps map[string]ExternalDep
}

// ExternalDep is a resolved external (non-rock) dependency lookup, a
// pkg-config-like descriptor passed to compilers and linkers.
type ExternalDep struct {
	CFlags []string
	Libs   []string
}
