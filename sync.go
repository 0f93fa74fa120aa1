package lux

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/lux-pm/lux/internal/build"
	"github.com/lux-pm/lux/internal/config"
	"github.com/lux-pm/lux/internal/feedback"
	"github.com/lux-pm/lux/internal/fetch"
	"github.com/lux-pm/lux/internal/installer"
	"github.com/lux-pm/lux/internal/resolver"
	"github.com/lux-pm/lux/internal/tree"
)

// SyncResult reports what one sync pass did: the resolved graph it
// installed from, each node's final installer state, and a diff of the
// lockfile's packages before and after (nil if nothing changed).
type SyncResult struct {
	Graph   *resolver.Graph
	Results []installer.NodeResult
	Diff    *feedback.LockDiff
	Removed []resolver.LocalPackageId
}

// Syncer reconciles a project's manifest, lockfile, and
// on-disk tree by resolving the requested dependency set, installing
// whatever the resolution requires, and pruning whatever it no longer
// does.
type Syncer struct {
	Ctx     *Ctx
	Project *Project
	Source  *RemoteSource

	Fetcher    *fetch.Fetcher
	Dispatcher *build.Dispatcher

	// ValidateIntegrity, when true, has a pruned id's on-disk tree
	// re-hashed against its recorded digest before removal. The outcome
	// of that check is not reported and does not change what happens:
	// the id is removed either way. When false (the default), the extra
	// directory walk is skipped.
	ValidateIntegrity bool
}

// NewSyncer builds a Syncer wired to ctx's configuration: a Fetcher
// rooted at the cache directory and a fresh Dispatcher, matching how
// the installer itself is constructed.
func NewSyncer(ctx *Ctx, project *Project, source *RemoteSource) *Syncer {
	return &Syncer{
		Ctx:        ctx,
		Project:    project,
		Source:     source,
		Fetcher:    fetch.New(ctx.Config.CacheDir, ctx.Config.FetchConcurrency, ctx.Config.Timeout),
		Dispatcher: build.NewDispatcher(),
	}
}

func (s *Syncer) abiVersion() string {
	return s.Ctx.ABIVersion()
}

func (s *Syncer) resolvedManifest() ResolvedRockspec {
	return s.Project.Manifest.Resolve([]string{config.HostPlatform()})
}

// SyncDependencies implements sync_dependencies: resolves and installs
// exactly the manifest's `dependencies` (plus their transitive closure),
// without pruning ids that belong to other dependency kinds.
func (s *Syncer) SyncDependencies(ctx context.Context) (*SyncResult, error) {
	return s.syncRoots(ctx, s.resolvedManifest().Dependencies, false)
}

// SyncBuildDependencies implements sync_build_dependencies.
func (s *Syncer) SyncBuildDependencies(ctx context.Context) (*SyncResult, error) {
	return s.syncRoots(ctx, s.resolvedManifest().BuildDependencies, false)
}

// SyncTestDependencies implements sync_test_dependencies.
func (s *Syncer) SyncTestDependencies(ctx context.Context) (*SyncResult, error) {
	return s.syncRoots(ctx, s.resolvedManifest().TestDependencies, false)
}

// Sync reconciles every dependency kind together in a single resolution
// pass (so a package shared between, say, dependencies and
// test_dependencies is bound once, consistently) and prunes any
// lockfile id no longer reachable from any of the three root sets,
// pinned ids included.
func (s *Syncer) Sync(ctx context.Context) (*SyncResult, error) {
	m := s.resolvedManifest()
	roots := make([]resolver.PackageReq, 0, len(m.Dependencies)+len(m.BuildDependencies)+len(m.TestDependencies))
	roots = append(roots, m.Dependencies...)
	roots = append(roots, m.BuildDependencies...)
	roots = append(roots, m.TestDependencies...)
	return s.syncRoots(ctx, roots, true)
}

func (s *Syncer) syncRoots(ctx context.Context, roots []resolver.PackageReq, prune bool) (*SyncResult, error) {
	entryRoots := make([]resolver.PackageReq, len(roots))
	for i, r := range roots {
		r.Entry = true
		entryRoots[i] = r
	}

	abiVersion := s.abiVersion()
	inst := installer.New(s.Fetcher, s.Dispatcher, s.Source, s.Project.Lock, s.Ctx.Config.TreeRoot, abiVersion, s.Ctx.Config.FetchConcurrency)

	var (
		graph   *resolver.Graph
		results []installer.NodeResult
		removed []resolver.LocalPackageId
		before  map[resolver.PackageName]resolver.Node
	)

	err := s.Project.Lock.WithWriteGuard(func(lf *Lockfile) error {
		before = nodesByName(lf)

		g, err := resolver.Solve(resolver.Params{
			Roots: entryRoots,
			DB:    s.Source,
			Deps:  s.Source,
			Lock:  lf,
		})
		if err != nil {
			return errors.Wrap(err, "resolving dependencies")
		}
		graph = g

		results = inst.Install(ctx, g, s.forceMap(g, lf))

		if prune {
			removed = pruneUnreferenced(lf, g, s.Ctx.Config.TreeRoot, abiVersion, s.ValidateIntegrity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	after := nodesByName(s.Project.Lock)
	diff := feedback.DiffLocks(before, after)
	if diff != nil && s.Ctx.Logger != nil {
		diff.LogFeedback(s.Ctx.Logger)
	}

	return &SyncResult{Graph: graph, Results: results, Diff: diff, Removed: removed}, nil
}

// forceMap computes which ids must rebuild despite already being placed.
// Two independent checks feed it:
//
//   - Entry-type promotion: an id that is a root (Entry) in g but was
//     previously recorded as DependencyOnly gets promoted to Force, since
//     bin wrappers and other entrypoint-only outputs are missing from its
//     existing layout.
//   - Hash drift: an id present in both g and lf whose freshly-resolved
//     build spec hash no longer matches what was last recorded, or whose
//     source is a git ref that was never pinned down to a resolved commit,
//     is forced to rebuild rather than trusted as still current.
func (s *Syncer) forceMap(g *resolver.Graph, lf *Lockfile) map[resolver.LocalPackageId]installer.BuildBehaviour {
	force := make(map[resolver.LocalPackageId]installer.BuildBehaviour)
	for id, node := range g.Nodes {
		existing, had := lf.Packages[id]
		if !had {
			continue
		}
		if node.Entry && !existing.Entrypoint {
			force[id] = installer.Force
			continue
		}
		if s.needsRebuild(node, existing) {
			force[id] = installer.Force
		}
	}
	return force
}

// needsRebuild reports whether node's currently-declared build spec or
// source no longer matches what existing last recorded: a changed build
// declaration (build_spec_hash drift; source_hash is not compared), or a git source still
// pinned to a branch or tag rather than the commit it was last resolved
// to, since those are never stable once recorded.
func (s *Syncer) needsRebuild(node resolver.Node, existing LocalPackage) bool {
	if spec, _, err := s.Source.BuildSpecOf(node); err == nil && existing.BuildSpecHash != "" {
		if spec.Hash() != existing.BuildSpecHash {
			return true
		}
	}

	src, err := s.Source.SourceOf(node)
	if err != nil {
		return false
	}
	return src.Kind == fetch.KindGit && !isResolvedCommit(src.Ref)
}

// isResolvedCommit reports whether ref looks like a full git commit SHA
// rather than a branch or tag name.
func isResolvedCommit(ref string) bool {
	if len(ref) != 40 {
		return false
	}
	for _, r := range ref {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			return false
		}
	}
	return true
}

// pruneUnreferenced removes every lockfile package no longer reachable
// from g, deleting its package-qualified tree directories (src/lib/doc;
// the shared bin/conf/etc directories are left for a future gc pass,
// since nothing currently records which files within them belong to
// which id).
func pruneUnreferenced(lf *Lockfile, g *resolver.Graph, treeRoot, abiVersion string, validateIntegrity bool) []resolver.LocalPackageId {
	var removed []resolver.LocalPackageId
	for id, pkg := range lf.Packages {
		if _, stillReferenced := g.Nodes[id]; stillReferenced {
			continue
		}

		layout := tree.NewRockLayout(treeRoot, abiVersion, pkg.Name)
		if validateIntegrity {
			_ = tree.VerifyDepTree(layout.Root, lf.Integrity[id])
		}
		_ = os.RemoveAll(layout.Src)
		_ = os.RemoveAll(layout.Lib)
		_ = os.RemoveAll(layout.Doc)

		delete(lf.Packages, id)
		delete(lf.Entrypoints, id)
		delete(lf.Integrity, id)
		removed = append(removed, id)
	}
	return removed
}

// nodesByName snapshots lf's current packages as resolver.Nodes keyed by
// name, the shape internal/feedback.DiffLocks compares before and after
// a sync pass.
func nodesByName(lf *Lockfile) map[resolver.PackageName]resolver.Node {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	out := make(map[resolver.PackageName]resolver.Node, len(lf.Packages))
	for id, pkg := range lf.Packages {
		out[pkg.Name] = resolver.Node{
			ID:       id,
			Name:     pkg.Name,
			Version:  pkg.Version,
			Source:   pkg.Source,
			Optional: pkg.Optional,
			Entry:    pkg.Entrypoint,
		}
	}
	return out
}
