package installer

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sdboyer/constext"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/lux-pm/lux/internal/build"
	"github.com/lux-pm/lux/internal/fetch"
	"github.com/lux-pm/lux/internal/resolver"
	"github.com/lux-pm/lux/internal/tree"
)

// NodeInputs supplies the per-node information the installer itself has
// no business knowing how to derive: where a node's source comes from and
// how it should be built. The root package's manifest/rockspec model
// implements this.
type NodeInputs interface {
	SourceOf(node resolver.Node) (fetch.Source, error)
	BuildSpecOf(node resolver.Node) (build.Spec, build.Interpreter, error)
}

// Ledger is the subset of the lockfile the installer reads and writes:
// whether an id is already placed (and with what integrity digest), and
// recording a newly-installed id. Implementations are expected to hold
// the lockfile's write_guard for the duration of Record.
type Ledger interface {
	Placed(id resolver.LocalPackageId) (digest string, placed bool)

	// Record stores id's final, fetched, and built state: digest is the
	// installed tree's content digest, sourceHash is the fetched source's
	// content digest, resolvedRef is the commit a git source resolved to
	// (empty for non-git sources), buildSpecHash is the build
	// declaration's digest, and dependencyIDs are id's direct dependencies
	// in the graph this install ran against.
	Record(id resolver.LocalPackageId, node resolver.Node, digest, sourceHash, resolvedRef, buildSpecHash string, dependencyIDs []resolver.LocalPackageId) error
}

// Installer takes a resolved Graph through fetching, building, and
// recording into installed, recorded packages.
type Installer struct {
	Fetcher    *fetch.Fetcher
	Dispatcher *build.Dispatcher
	Inputs     NodeInputs
	Ledger     Ledger

	TreeRoot    string
	ABIVersion  string
	Parallelism int
	NodeTimeout time.Duration

	group singleflight.Group
}

// New constructs an Installer. parallelism bounds how many independent
// (non-dependent) nodes may build concurrently; 0 means unbounded
// (errgroup.SetLimit is skipped).
func New(f *fetch.Fetcher, d *build.Dispatcher, inputs NodeInputs, ledger Ledger, treeRoot, abiVersion string, parallelism int) *Installer {
	return &Installer{
		Fetcher:     f,
		Dispatcher:  d,
		Inputs:      inputs,
		Ledger:      ledger,
		TreeRoot:    treeRoot,
		ABIVersion:  abiVersion,
		Parallelism: parallelism,
		NodeTimeout: 15 * time.Minute,
	}
}

// Install walks g in dependency order (leaves first) and installs every
// node, respecting force. A node whose dependency Failed is marked
// Skipped rather than attempted. Install blocks until every reachable
// node has reached a terminal state.
func (in *Installer) Install(ctx context.Context, g *resolver.Graph, force map[resolver.LocalPackageId]BuildBehaviour) []NodeResult {
	order := topoOrder(g)

	results := make(map[resolver.LocalPackageId]*NodeResult, len(order))
	var mu sync.Mutex
	setResult := func(r NodeResult) {
		mu.Lock()
		results[r.ID] = &r
		mu.Unlock()
	}

	done := make(map[resolver.LocalPackageId]chan struct{}, len(order))
	for _, id := range order {
		done[id] = make(chan struct{})
	}

	eg, egCtx := errgroup.WithContext(ctx)
	if in.Parallelism > 0 {
		eg.SetLimit(in.Parallelism)
	}

	for _, id := range order {
		id := id
		node := g.Nodes[id]
		deps := g.DependenciesOf(id)

		eg.Go(func() error {
			defer close(done[id])

			for _, dep := range deps {
				select {
				case <-done[dep]:
				case <-egCtx.Done():
					setResult(NodeResult{ID: id, State: StateSkipped, Err: egCtx.Err()})
					return nil
				}
				mu.Lock()
				depResult := results[dep]
				mu.Unlock()
				if depResult != nil && (depResult.State == StateFailed || depResult.State == StateSkipped) {
					setResult(NodeResult{ID: id, State: StateSkipped, Err: errors.Errorf("upstream %s %s", dep, depResult.State)})
					return nil
				}
			}

			behaviour := force[id]
			if _, err := in.installOne(egCtx, node, behaviour, deps); err != nil {
				setResult(NodeResult{ID: id, State: StateFailed, Err: err})
				return nil
			}
			setResult(NodeResult{ID: id, State: StateRecorded})
			return nil
		})
	}

	_ = eg.Wait()

	out := make([]NodeResult, 0, len(order))
	for _, id := range order {
		if r := results[id]; r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// installOne runs the Fetching -> Built -> Placed -> Recorded sequence
// for a single node, rendezvousing with any other concurrent caller
// installing the same id via this Installer's own singleflight group;
// calls made through separate Installer values are not coalesced.
func (in *Installer) installOne(ctx context.Context, node resolver.Node, behaviour BuildBehaviour, deps []resolver.LocalPackageId) (string, error) {
	layout := tree.NewRockLayout(in.TreeRoot, in.ABIVersion, node.Name)

	if behaviour != Force {
		if digest, placed := in.Ledger.Placed(node.ID); placed {
			if err := tree.VerifyDepTree(layout.Root, digest); err == nil {
				return digest, nil
			}
			// Integrity mismatch auto-upgrades this id to a forced
			// rebuild rather than silently trusting a drifted tree.
			behaviour = Force
		}
	}

	result, err, _ := in.group.Do(string(node.ID), func() (interface{}, error) {
		return in.buildAndPlace(ctx, node, layout, deps)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (in *Installer) buildAndPlace(ctx context.Context, node resolver.Node, layout tree.RockLayout, deps []resolver.LocalPackageId) (string, error) {
	// Cons ties the caller's cancellation context to a fresh per-node
	// timeout without making either the "real" parent: a node that
	// overruns its own budget cancels only itself, and the overall
	// install's cancellation still reaches every in-flight node.
	timeoutCtx, cancelTimeout := context.WithTimeout(context.Background(), in.NodeTimeout)
	defer cancelTimeout()
	opCtx, cancel := constext.Cons(ctx, timeoutCtx)
	defer cancel()

	src, err := in.Inputs.SourceOf(node)
	if err != nil {
		return "", errors.Wrapf(err, "resolving source for %s", node.Name)
	}

	fetched, err := in.Fetcher.Fetch(opCtx, node.ID, src)
	if err != nil {
		return "", errors.Wrapf(err, "fetching %s", node.Name)
	}

	spec, interp, err := in.Inputs.BuildSpecOf(node)
	if err != nil {
		return "", errors.Wrapf(err, "resolving build spec for %s", node.Name)
	}

	env := build.Env{SourceDir: fetched.Dir, Layout: layout, Interpreter: interp}
	if err := in.Dispatcher.Build(opCtx, spec, env); err != nil {
		return "", errors.Wrapf(err, "building %s", node.Name)
	}

	digest, err := tree.DigestFromDirectory(layout.Root)
	if err != nil {
		return "", errors.Wrapf(err, "digesting installed tree for %s", node.Name)
	}

	if err := in.Ledger.Record(node.ID, node, digest, fetched.SourceHash, fetched.ResolvedRef, spec.Hash(), deps); err != nil {
		return "", errors.Wrapf(err, "recording %s", node.Name)
	}

	return digest, nil
}

// topoOrder returns g's node ids in an order where every id appears after
// all of its dependencies (a reverse postorder DFS). Cycle-freedom is
// guaranteed by the resolver, which rejects graphs containing one.
func topoOrder(g *resolver.Graph) []resolver.LocalPackageId {
	visited := make(map[resolver.LocalPackageId]bool, len(g.Nodes))
	var order []resolver.LocalPackageId

	ids := make([]resolver.LocalPackageId, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}

	var visit func(id resolver.LocalPackageId)
	visit = func(id resolver.LocalPackageId) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, dep := range g.DependenciesOf(id) {
			visit(dep)
		}
		order = append(order, id)
	}
	for _, id := range ids {
		visit(id)
	}
	return order
}
