package resolver

import (
	"sort"

	"github.com/pkg/errors"
)

// RemotePackageDB is the subset of the remote package view the solver
// needs: given a name and constraint, the highest-priority version that
// satisfies it. Implementations are expected to already apply
// registry-priority and revision tiebreaks.
type RemotePackageDB interface {
	Best(name PackageName, constraint VersionConstraint) (source string, version PackageVersion, ok bool, err error)
}

// DependencyProvider resolves the direct dependency requirements of one
// already-chosen (name, version, source) triple, i.e. the current-platform
// view of that rockspec's `dependencies` field (per-platform overrides are
// already applied by the caller before these PackageReqs are returned).
type DependencyProvider interface {
	DependenciesOf(name PackageName, version PackageVersion, source string) ([]PackageReq, error)
}

// LockView exposes the pinned entries of an existing lockfile, so the
// solver can honor PinnedState without needing to know anything else
// about lockfile structure.
type LockView interface {
	Pinned(name PackageName) (source string, version PackageVersion, ok bool)
}

// Params bundles a solve's inputs.
type Params struct {
	Roots []PackageReq
	DB    RemotePackageDB
	Deps  DependencyProvider
	Lock  LockView // nil if no lockfile exists yet
}

type boundEntry struct {
	id         LocalPackageId
	version    PackageVersion
	source     string
	constraint VersionConstraint
	requesters []PackageName
	pinned     bool
	optional   bool
	entry      bool
}

// Solve runs a BFS resolution over Params and returns the resulting
// Graph. Solve is pure with respect to its Params: given the same
// registry snapshot, manifest, and lockfile, two calls return equal
// Graphs.
func Solve(p Params) (*Graph, error) {
	s := &solveState{
		params: p,
		bound:  make(map[PackageName]*boundEntry),
		graph:  NewGraph(),
	}

	type queued struct {
		req PackageReq
	}
	var queue []queued
	for _, r := range p.Roots {
		queue = append(queue, queued{req: r})
	}

	for i := 0; i < len(queue); i++ {
		req := queue[i].req
		if req.Name.IsInterpreter() {
			continue
		}

		id, isNew, err := s.bind(req)
		if err != nil {
			return nil, err
		}

		if req.Entry {
			s.graph.AddRoot(id)
		}
		if req.Requester != "" {
			fromID := s.idOf(req.Requester)
			if fromID != "" {
				s.graph.AddEdge(fromID, id, req.Constraint.String())
			}
		}

		if !isNew {
			continue
		}

		be := s.bound[req.Name.Normalize()]
		deps, err := p.Deps.DependenciesOf(req.Name, be.version, be.source)
		if err != nil {
			return nil, errors.Wrapf(err, "reading dependencies of %s %s", req.Name, be.version)
		}
		for _, d := range deps {
			if d.Name.IsInterpreter() {
				continue
			}
			d.Requester = req.Name.Normalize()
			queue = append(queue, queued{req: d})
		}
	}

	if err := detectCycles(s.graph); err != nil {
		return nil, err
	}

	return s.graph, nil
}

type solveState struct {
	params Params
	bound  map[PackageName]*boundEntry
	graph  *Graph
}

func (s *solveState) idOf(name PackageName) LocalPackageId {
	if be, ok := s.bound[name.Normalize()]; ok {
		return be.id
	}
	return ""
}

// bind resolves req against any existing binding for its name, the
// lockfile's pins, or the registry, in that priority order, recording the
// result (and a node in the graph) the first time a name is bound.
// It returns the bound id and whether this call performed a new binding
// (as opposed to reusing/validating an existing one).
func (s *solveState) bind(req PackageReq) (LocalPackageId, bool, error) {
	key := req.Name.Normalize()

	if be, ok := s.bound[key]; ok {
		if !req.Constraint.Matches(be.version) {
			return "", false, &ConstraintConflictError{
				Name:        req.Name,
				RequesterA:  firstOrEmpty(be.requesters),
				ConstraintA: be.constraint,
				RequesterB:  req.Requester,
				ConstraintB: req.Constraint,
			}
		}
		be.requesters = append(be.requesters, req.Requester)
		be.constraint = mergeConstraint(be.constraint, req.Constraint)
		be.optional = be.optional && req.Optional
		be.entry = be.entry || req.Entry
		s.graph.Nodes[be.id] = Node{
			ID: be.id, Name: req.Name, Version: be.version, Source: be.source,
			Optional: be.optional, Entry: be.entry,
		}
		return be.id, false, nil
	}

	var version PackageVersion
	var source string

	if s.params.Lock != nil {
		if src, v, ok := s.params.Lock.Pinned(req.Name); ok && req.Constraint.Matches(v) {
			version, source = v, src
		}
	}

	if source == "" {
		src, v, ok, err := s.params.DB.Best(req.Name, req.Constraint)
		if err != nil {
			return "", false, errors.Wrapf(err, "looking up %s", req.Name)
		}
		if !ok {
			return "", false, &UnsatisfiableError{Name: req.Name, Constraint: req.Constraint, Requester: req.Requester}
		}
		version, source = v, src
	}

	id := NewLocalPackageId(req.Name, version, source, "", req.Pin)
	be := &boundEntry{
		id: id, version: version, source: source, constraint: req.Constraint,
		requesters: []PackageName{req.Requester}, pinned: req.Pin, optional: req.Optional, entry: req.Entry,
	}
	s.bound[key] = be
	s.graph.AddNode(Node{ID: id, Name: req.Name, Version: version, Source: source, Optional: req.Optional, Entry: req.Entry})

	return id, true, nil
}

func firstOrEmpty(names []PackageName) PackageName {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// mergeConstraint conjoins two constraints' clauses; it does not attempt
// to simplify or detect redundancy, matching the solver's conservative,
// non-backtracking approach.
func mergeConstraint(a, b VersionConstraint) VersionConstraint {
	return VersionConstraint{Clauses: append(append([]ConstraintClause{}, a.Clauses...), b.Clauses...)}
}

type visitState int

const (
	unvisited visitState = iota
	onStack
	done
)

// detectCycles walks the graph depth-first, failing only when a back-edge
// points to a node on the current stack that is not Optional on both
// ends.
func detectCycles(g *Graph) error {
	state := make(map[LocalPackageId]visitState, len(g.Nodes))

	ids := make([]LocalPackageId, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var stack []LocalPackageId
	var visit func(id LocalPackageId) error
	visit = func(id LocalPackageId) error {
		state[id] = onStack
		stack = append(stack, id)

		for _, dep := range g.DependenciesOf(id) {
			switch state[dep] {
			case unvisited:
				if err := visit(dep); err != nil {
					return err
				}
			case onStack:
				if !(g.Nodes[id].Optional && g.Nodes[dep].Optional) {
					cyclePath := append(append([]LocalPackageId{}, stack...), dep)
					names := make([]PackageName, len(cyclePath))
					for i, cid := range cyclePath {
						names[i] = g.Nodes[cid].Name
					}
					return &CycleError{Path: names}
				}
			case done:
				// already fully explored via another path; fine.
			}
		}

		state[id] = done
		stack = stack[:len(stack)-1]
		return nil
	}

	for _, id := range ids {
		if state[id] == unvisited {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}
