package lux

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/lux-pm/lux/internal/build"
	"github.com/lux-pm/lux/internal/fetch"
	"github.com/lux-pm/lux/internal/registry"
	"github.com/lux-pm/lux/internal/resolver"
)

// RemoteSource adapts a registry.DB into resolver.DependencyProvider and
// installer.NodeInputs: the narrow views those packages need without
// either one importing this package or the registry directly. Each
// package's rockspec is fetched and parsed at most once per process,
// since the solver and the installer both ask about the same chosen
// (name, version) repeatedly.
type RemoteSource struct {
	db          *registry.DB
	interpreter build.Interpreter

	mu    sync.Mutex
	specs map[string]ResolvedRockspec
}

// NewRemoteSource builds a RemoteSource over db. interp is handed back
// unchanged from BuildSpecOf, since the registry has no opinion on which
// local interpreter installation a build should target.
func NewRemoteSource(db *registry.DB, interp build.Interpreter) *RemoteSource {
	return &RemoteSource{db: db, interpreter: interp, specs: make(map[string]ResolvedRockspec)}
}

func rockspecCacheKey(name resolver.PackageName, version resolver.PackageVersion) string {
	return string(name.Normalize()) + "\x00" + version.String()
}

func (r *RemoteSource) resolvedRockspecFor(name resolver.PackageName, version resolver.PackageVersion) (ResolvedRockspec, error) {
	key := rockspecCacheKey(name, version)

	r.mu.Lock()
	if cached, ok := r.specs[key]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	raw, err := r.db.FetchRockspec(name, version)
	if err != nil {
		return ResolvedRockspec{}, errors.Wrapf(err, "fetching rockspec for %s %s", name, version)
	}
	resolved, err := ParseRockspecFile(raw)
	if err != nil {
		return ResolvedRockspec{}, errors.Wrapf(err, "parsing rockspec for %s %s", name, version)
	}

	r.mu.Lock()
	r.specs[key] = resolved
	r.mu.Unlock()
	return resolved, nil
}

// Best implements resolver.RemotePackageDB by forwarding to the
// registry's own priority-ordered lookup, so a single RemoteSource can
// serve as a solve's DB, Deps, and an installer's NodeInputs all at once.
func (r *RemoteSource) Best(name resolver.PackageName, constraint resolver.VersionConstraint) (string, resolver.PackageVersion, bool, error) {
	return r.db.ResolveBest(name, constraint)
}

// DependenciesOf implements resolver.DependencyProvider, filtering out
// the reserved "lua" pseudo-dependency per spec step 4 of the resolution
// algorithm (the interpreter itself is never a fetched package).
func (r *RemoteSource) DependenciesOf(name resolver.PackageName, version resolver.PackageVersion, source string) ([]resolver.PackageReq, error) {
	spec, err := r.resolvedRockspecFor(name, version)
	if err != nil {
		return nil, err
	}
	out := make([]resolver.PackageReq, 0, len(spec.Dependencies))
	for _, dep := range spec.Dependencies {
		if dep.Name.IsInterpreter() {
			continue
		}
		out = append(out, dep)
	}
	return out, nil
}

// SourceOf implements installer.NodeInputs.
func (r *RemoteSource) SourceOf(node resolver.Node) (fetch.Source, error) {
	spec, err := r.resolvedRockspecFor(node.Name, node.Version)
	if err != nil {
		return fetch.Source{}, err
	}
	return spec.Source, nil
}

// BuildSpecOf implements installer.NodeInputs.
func (r *RemoteSource) BuildSpecOf(node resolver.Node) (build.Spec, build.Interpreter, error) {
	spec, err := r.resolvedRockspecFor(node.Name, node.Version)
	if err != nil {
		return build.Spec{}, build.Interpreter{}, err
	}
	return spec.Build, r.interpreter, nil
}
