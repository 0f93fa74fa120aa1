package lux

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/lux-pm/lux/internal/config"
	"github.com/lux-pm/lux/internal/registry"
)

// ManifestName is the filename LoadProject searches for when walking up
// from a starting directory.
const ManifestName = "lux.toml"

// LockName is the filename a Lockfile is read from and written to
// alongside the manifest.
const LockName = "lux-lock.json"

// Ctx is the supporting context threaded through every operation: the
// frozen Config plus the logger feedback is rendered through. Constructed
// once and passed down, carrying a resolved Config instead of a bare
// GOPATH-style string, since this tool has no workspace-relative root to
// rediscover.
type Ctx struct {
	Config config.Config
	Logger *log.Logger
}

// NewContext wraps cfg with a logger, defaulting to a stderr logger at no
// prefix when logger is nil.
func NewContext(cfg config.Config, logger *log.Logger) *Ctx {
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	return &Ctx{Config: cfg, Logger: logger}
}

// ABIVersion reports the interpreter version this Ctx's operations
// install against and run with: the configured InterpreterVersion, or
// config.DefaultInterpreterVersion if the config left it blank.
func (c *Ctx) ABIVersion() string {
	if c.Config.InterpreterVersion != "" {
		return c.Config.InterpreterVersion
	}
	return config.DefaultInterpreterVersion()
}

// DefaultContext builds a Ctx from environment-derived defaults: a tree
// root under the user cache directory, config.DefaultInterpreterVersion
// as the interpreter version (no interpreter is detected), and registry
// points at registries. Suitable for a CLI's
// zero-configuration path; library callers building their own Config
// should use NewContext directly.
func DefaultContext(registries ...registry.Server) (*Ctx, error) {
	cacheRoot, err := os.UserCacheDir()
	if err != nil {
		return nil, errors.Wrap(err, "determining user cache directory")
	}
	base := filepath.Join(cacheRoot, "lux")

	b := config.NewBuilder().
		TreeRoot(filepath.Join(base, "tree")).
		UserTreeRoot(filepath.Join(base, "tree")).
		CacheDir(filepath.Join(base, "cache")).
		DataDir(filepath.Join(base, "data")).
		InterpreterVersion(config.DefaultInterpreterVersion())
	for _, r := range registries {
		b = b.AddRegistry(r)
	}

	cfg, err := b.Build()
	if err != nil {
		return nil, err
	}
	return NewContext(cfg, nil), nil
}

// findProjectRoot walks up from start looking for ManifestName.
func findProjectRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", errors.Wrapf(err, "resolving absolute path for %s", start)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return dir, nil
		} else if !os.IsNotExist(err) {
			return "", errors.Wrapf(err, "checking for %s", candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found in %s or any parent directory", ManifestName, start)
		}
		dir = parent
	}
}

// findProjectRootFromWD is findProjectRoot starting from the process's
// current working directory.
func findProjectRootFromWD() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "getting working directory")
	}
	return findProjectRoot(wd)
}
