// Package config builds the immutable configuration value that every
// other component reads from: tree locations, registry servers, and the
// knobs that change solver/fetcher/installer behavior.
package config

import (
	"runtime"
	"time"

	"github.com/lux-pm/lux/internal/registry"
)

// LayoutPreset selects between the default standalone tree layout and the
// flatter layout used when lux is driven from inside an editor/IDE
// integration that expects a conventional project structure.
type LayoutPreset int

const (
	LayoutDefault LayoutPreset = iota
	LayoutEditorIntegration
)

// Config is the immutable, fully-resolved configuration for one lux
// invocation. It is built via Builder and never mutated afterward: construct
// once in NewContext, pass the value down.
type Config struct {
	InterpreterVersion string // empty means DefaultInterpreterVersion; nothing is detected from the environment
	TreeRoot           string
	UserTreeRoot       string
	CacheDir           string
	DataDir            string

	Registries  []registry.Server
	OnlySources []string // if non-empty, restricts resolution to these registry names
	Namespace   string

	Verbosity int
	Timeout   time.Duration
	Layout    LayoutPreset

	FetchConcurrency int
}

// Builder accumulates Config fields before Build validates and freezes them.
type Builder struct {
	cfg Config
	err error
}

// NewBuilder returns a Builder seeded with conservative defaults: no
// registries, default tree layout, a conservative fetch concurrency, and a
// generous default timeout.
func NewBuilder() *Builder {
	return &Builder{
		cfg: Config{
			Verbosity:        0,
			Timeout:          5 * time.Minute,
			Layout:           LayoutDefault,
			FetchConcurrency: 4,
		},
	}
}

func (b *Builder) InterpreterVersion(v string) *Builder { b.cfg.InterpreterVersion = v; return b }
func (b *Builder) TreeRoot(p string) *Builder            { b.cfg.TreeRoot = p; return b }
func (b *Builder) UserTreeRoot(p string) *Builder        { b.cfg.UserTreeRoot = p; return b }
func (b *Builder) CacheDir(p string) *Builder            { b.cfg.CacheDir = p; return b }
func (b *Builder) DataDir(p string) *Builder             { b.cfg.DataDir = p; return b }
func (b *Builder) Namespace(ns string) *Builder          { b.cfg.Namespace = ns; return b }
func (b *Builder) Verbosity(v int) *Builder              { b.cfg.Verbosity = v; return b }
func (b *Builder) Timeout(d time.Duration) *Builder      { b.cfg.Timeout = d; return b }
func (b *Builder) Layout(l LayoutPreset) *Builder        { b.cfg.Layout = l; return b }

// FetchConcurrency overrides the default bounded-parallelism limit the
// fetcher's semaphore is constructed with.
func (b *Builder) FetchConcurrency(n int) *Builder {
	if n <= 0 {
		b.err = &ConfigError{Reason: "fetch concurrency must be positive"}
		return b
	}
	b.cfg.FetchConcurrency = n
	return b
}

// AddRegistry appends one registry server, in the priority order servers
// are added (primary should be added first).
func (b *Builder) AddRegistry(s registry.Server) *Builder {
	b.cfg.Registries = append(b.cfg.Registries, s)
	return b
}

// OnlySources restricts resolution to the named registries, mirroring the
// manifest's only_sources filter.
func (b *Builder) OnlySources(names ...string) *Builder {
	b.cfg.OnlySources = names
	return b
}

// Build validates the accumulated fields and returns the frozen Config.
func (b *Builder) Build() (Config, error) {
	if b.err != nil {
		return Config{}, b.err
	}
	if b.cfg.TreeRoot == "" {
		return Config{}, &ConfigError{Reason: "tree root is required"}
	}
	if len(b.cfg.Registries) == 0 {
		return Config{}, &ConfigError{Reason: "at least one registry is required"}
	}
	return b.cfg, nil
}

// DefaultInterpreterVersion reports the interpreter version to assume when
// none was configured: always "5.4". No local interpreter on PATH is
// probed.
func DefaultInterpreterVersion() string {
	return "5.4"
}

// DefaultFetchConcurrency mirrors the builder default, exposed for callers
// that need it without constructing a full Config (e.g. CLI flag help text).
func DefaultFetchConcurrency() int {
	return 4
}

// HostPlatform reports the GOOS-derived platform tag used to select
// PerPlatform overrides in rockspecs, deriving platform tags from
// runtime.GOOS rather than re-detecting them some other way.
func HostPlatform() string {
	switch runtime.GOOS {
	case "darwin":
		return "macosx"
	case "windows":
		return "win32"
	default:
		return runtime.GOOS
	}
}
