package lux

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/theckman/go-flock"

	"github.com/lux-pm/lux/internal/resolver"
)

// LocalPackage is one lockfile entry: everything the installer recorded
// about a resolved, installed id.
type LocalPackage struct {
	ID            resolver.LocalPackageId
	Name          resolver.PackageName
	Version       resolver.PackageVersion
	Pinned        bool
	Optional      bool
	Entrypoint    bool
	Source        string // canonical source spec string (archive URL, git+ref, or path)
	SourceHash    string
	BuildSpecHash string
	DependencyIDs []resolver.LocalPackageId
}

// Lockfile is the persistent integrity record: the resolved package
// set, which ids are direct entrypoints, and a per-id integrity digest of
// the installed payload. Mutation goes through a write_guard advisory
// file lock so only one process writes at a time.
type Lockfile struct {
	Packages    map[resolver.LocalPackageId]LocalPackage `json:"packages"`
	Entrypoints map[resolver.LocalPackageId]bool          `json:"entrypoints"`
	Integrity   map[resolver.LocalPackageId]string        `json:"integrity"`

	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewLockfile returns an empty Lockfile backed by path, with its
// write_guard not yet acquired.
func NewLockfile(path string) *Lockfile {
	return &Lockfile{
		Packages:    make(map[resolver.LocalPackageId]LocalPackage),
		Entrypoints: make(map[resolver.LocalPackageId]bool),
		Integrity:   make(map[resolver.LocalPackageId]string),
		path:        path,
		lock:        flock.NewFlock(path + ".lock"),
	}
}

// LoadLockfile reads and parses an existing lockfile at path. A missing
// file yields os.ReadFile's error unchanged, so callers that want "no
// lockfile yet" semantics check os.IsNotExist on the returned error.
func LoadLockfile(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lf := NewLockfile(path)
	if err := json.Unmarshal(data, lf); err != nil {
		return nil, errors.Wrapf(err, "parsing lockfile %s", path)
	}
	return lf, nil
}

// WithWriteGuard acquires the lockfile's advisory write_guard for the
// duration of fn, then re-reads the on-disk state (in case another
// process wrote since this value was loaded), runs fn, and persists the
// result, guaranteeing only one writer process touches the file at a time.
//
// fn runs with the write_guard held but the in-process mutex free, since
// fn is typically an installer batch whose concurrent node goroutines
// call back into Record/Placed, which take mu themselves per call; mu
// only brackets the reload and the final save so those snapshots are
// internally consistent.
func (lf *Lockfile) WithWriteGuard(fn func(*Lockfile) error) error {
	if err := lf.lock.Lock(); err != nil {
		return errors.Wrapf(err, "acquiring write_guard for %s", lf.path)
	}
	defer lf.lock.Unlock()

	lf.mu.Lock()
	if fresh, err := LoadLockfile(lf.path); err == nil {
		lf.Packages = fresh.Packages
		lf.Entrypoints = fresh.Entrypoints
		lf.Integrity = fresh.Integrity
	} else if !os.IsNotExist(err) {
		lf.mu.Unlock()
		return err
	}
	lf.mu.Unlock()

	if err := fn(lf); err != nil {
		return err
	}

	lf.mu.Lock()
	defer lf.mu.Unlock()
	return lf.save()
}

func (lf *Lockfile) save() error {
	if err := lf.Validate(); err != nil {
		return errors.Wrap(err, "refusing to write invalid lockfile")
	}

	data, err := json.MarshalIndent(lf, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding lockfile")
	}

	tmp := lf.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(lf.path), 0755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(lf.path))
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", tmp)
	}
	return errors.Wrap(os.Rename(tmp, lf.path), "renaming lockfile into place")
}

// Validate checks the lockfile invariants that don't require touching
// disk: every dependency id exists, and every entrypoint is a known
// package.
func (lf *Lockfile) Validate() error {
	for id, pkg := range lf.Packages {
		for _, dep := range pkg.DependencyIDs {
			if _, ok := lf.Packages[dep]; !ok {
				return &LockfileError{Path: lf.path, Reason: fmt.Sprintf("package %s depends on unknown id %s", id, dep)}
			}
		}
	}
	for id := range lf.Entrypoints {
		if _, ok := lf.Packages[id]; !ok {
			return &LockfileError{Path: lf.path, Reason: fmt.Sprintf("entrypoint %s is not a known package", id)}
		}
	}
	return nil
}

// Pinned implements resolver.LockView: returns the pinned entry for name,
// if any package recorded as Pinned matches it.
func (lf *Lockfile) Pinned(name resolver.PackageName) (string, resolver.PackageVersion, bool) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	for _, pkg := range lf.Packages {
		if pkg.Pinned && pkg.Name.Normalize() == name.Normalize() {
			return pkg.Source, pkg.Version, true
		}
	}
	return "", resolver.PackageVersion{}, false
}

// Placed implements installer.Ledger: whether id has a recorded integrity
// digest already.
func (lf *Lockfile) Placed(id resolver.LocalPackageId) (string, bool) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	d, ok := lf.Integrity[id]
	return d, ok
}

// Record implements installer.Ledger: stores node's package entry,
// integrity digest, and the fetch/build provenance that drives a future
// sync's rebuild decision. resolvedRef, when non-empty, is a git source's
// resolved commit SHA and is recorded as Source in place of node.Source's
// raw (possibly branch-named) ref, so the lockfile never pins a moving
// target. Callers are expected to call this from within WithWriteGuard so
// the result is actually persisted.
func (lf *Lockfile) Record(id resolver.LocalPackageId, node resolver.Node, digest, sourceHash, resolvedRef, buildSpecHash string, dependencyIDs []resolver.LocalPackageId) error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	source := node.Source
	if resolvedRef != "" {
		source = resolvedRef
	}

	existing, had := lf.Packages[id]
	pkg := LocalPackage{
		ID:            id,
		Name:          node.Name,
		Version:       node.Version,
		Optional:      node.Optional,
		Entrypoint:    node.Entry,
		Source:        source,
		SourceHash:    sourceHash,
		BuildSpecHash: buildSpecHash,
		DependencyIDs: dependencyIDs,
	}
	if had {
		pkg.Pinned = existing.Pinned
	}
	lf.Packages[id] = pkg
	lf.Integrity[id] = digest
	if node.Entry {
		lf.Entrypoints[id] = true
	}
	return nil
}
