package lux

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Project is a loaded lux.toml (and, if present, lux-lock.json) rooted at
// AbsRoot.
type Project struct {
	AbsRoot  string
	Manifest Rockspec
	Lock     *Lockfile // empty (from NewLockfile) if no lockfile exists yet
}

// LoadProject searches upward from path for ManifestName (an empty path
// searches from the current working directory), then parses the manifest
// and, if present, the adjacent lockfile.
func (c *Ctx) LoadProject(path string) (*Project, error) {
	var root string
	var err error
	if path == "" {
		root, err = findProjectRootFromWD()
	} else {
		root, err = findProjectRoot(path)
	}
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(root, ManifestName))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", ManifestName)
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", ManifestName)
	}

	p := &Project{AbsRoot: root, Manifest: manifest}

	lockPath := filepath.Join(root, LockName)
	lock, err := LoadLockfile(lockPath)
	switch {
	case err == nil:
		p.Lock = lock
	case os.IsNotExist(err):
		p.Lock = NewLockfile(lockPath)
	default:
		return nil, errors.Wrapf(err, "reading %s", LockName)
	}

	return p, nil
}
