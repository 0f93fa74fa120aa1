package lux

import (
	"github.com/lux-pm/lux/internal/build"
	"github.com/lux-pm/lux/internal/fetch"
	"github.com/lux-pm/lux/internal/resolver"
)

// DeploySpec controls post-build placement behavior.
type DeploySpec struct {
	WrapBinScripts bool
	BinScripts     []string
}

// RunSpec declares how `run`/`exec` should invoke this package, for the
// rockspecs that ship an executable entry point rather than only a
// library. Populated from original_source's run/run_lua/exec operations,
// which the distilled manifest model otherwise omits.
type RunSpec struct {
	Command []string
}

// Rockspec is a parsed manifest, every list- or record-valued field
// wrapped in a PerPlatform container so per-platform overrides merge
// uniformly.
type Rockspec struct {
	Package string
	Version resolver.PackageVersion

	Dependencies      PerPlatform[[]resolver.PackageReq]
	BuildDependencies PerPlatform[[]resolver.PackageReq]
	TestDependencies  PerPlatform[[]resolver.PackageReq]

	Source PerPlatform[fetch.Source]
	Build  PerPlatform[build.Spec]
	Deploy PerPlatform[DeploySpec]
	Run    PerPlatform[*RunSpec]

	CopyDirectories PerPlatform[[]string]
}

// ResolvedRockspec is a Rockspec flattened to one platform's effective
// values, ready to feed the resolver and installer.
type ResolvedRockspec struct {
	Package string
	Version resolver.PackageVersion

	Dependencies      []resolver.PackageReq
	BuildDependencies []resolver.PackageReq
	TestDependencies  []resolver.PackageReq

	Source fetch.Source
	Build  build.Spec
	Deploy DeploySpec
	Run    *RunSpec

	CopyDirectories []string
}

// Resolve flattens r to its current_platform() view, applying every
// field's PerPlatform overrides along tags.
func (r Rockspec) Resolve(tags []string) ResolvedRockspec {
	return ResolvedRockspec{
		Package:           r.Package,
		Version:           r.Version,
		Dependencies:      r.Dependencies.Resolve(tags),
		BuildDependencies: r.BuildDependencies.Resolve(tags),
		TestDependencies:  r.TestDependencies.Resolve(tags),
		Source:            r.Source.Resolve(tags),
		Build:             r.Build.Resolve(tags),
		Deploy:            r.Deploy.Resolve(tags),
		Run:               r.Run.Resolve(tags),
		CopyDirectories:   r.CopyDirectories.Resolve(tags),
	}
}

// reqKey is the identity key PackageReq lists dedup by when merging
// platform overrides: same name, same constraint text.
func reqKey(r resolver.PackageReq) string {
	return string(r.Name.Normalize()) + "\x00" + r.Constraint.String()
}

// NewRockspec returns an empty Rockspec with every field's MergeFunc
// wired to the merge semantics its kind gets (lists concatenate-dedup,
// records/scalars replace).
func NewRockspec(pkg string, version resolver.PackageVersion) Rockspec {
	return Rockspec{
		Package:           pkg,
		Version:           version,
		Dependencies:      NewPerPlatform[[]resolver.PackageReq](nil, MergeList(reqKey)),
		BuildDependencies: NewPerPlatform[[]resolver.PackageReq](nil, MergeList(reqKey)),
		TestDependencies:  NewPerPlatform[[]resolver.PackageReq](nil, MergeList(reqKey)),
		Source:            NewPerPlatform(fetch.Source{}, MergeScalar[fetch.Source]),
		Build:             NewPerPlatform(build.Spec{}, MergeScalar[build.Spec]),
		Deploy:            NewPerPlatform(DeploySpec{}, MergeScalar[DeploySpec]),
		Run:               NewPerPlatform[*RunSpec](nil, MergeScalar[*RunSpec]),
		CopyDirectories:   NewPerPlatform[[]string](nil, MergeList(func(s string) string { return s })),
	}
}
