package resolver

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// LocalPackageId is a content-addressed identifier for one resolved and
// (eventually) installed rock: it is derived from the package's name,
// version, resolved source hash, whether it is pinned, and a hash of its
// build spec. Two installs with identical inputs collide to the same id,
// which is what lets the installer de-duplicate concurrent builds and the
// lockfile use ids as a stable arena key (see internal/installer).
type LocalPackageId string

// NewLocalPackageId computes the content-addressed id for a resolved
// package from whatever strings are passed as sourceHash and
// buildSpecHash. Solve computes ids before anything is fetched: it passes
// the registry's source string in the sourceHash position and an empty
// buildSpecHash, so no fetched-source digest or build spec hash enters
// the ids it produces.
func NewLocalPackageId(name PackageName, version PackageVersion, sourceHash, buildSpecHash string, pinned bool) LocalPackageId {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%t", name.Normalize(), version.String(), sourceHash, buildSpecHash, pinned)
	return LocalPackageId(hex.EncodeToString(h.Sum(nil))[:24])
}

// Node is one resolved package in a dependency Graph.
type Node struct {
	ID       LocalPackageId
	Name     PackageName
	Version  PackageVersion
	Source   string
	Optional bool
	Entry    bool // true if directly requested by the manifest (an entrypoint)
}

// Edge records that From depends on To, through the requirement string
// that produced the resolution (useful for conflict/cycle diagnostics).
type Edge struct {
	From        LocalPackageId
	To          LocalPackageId
	Requirement string
}

// Graph is the DAG produced by a resolution: one Node per fetched
// (name, version, source), plus the dependency Edges between them. A
// root (set via AddRoot) can still have incoming edges when another
// node depends on it, as in an allowed optional cycle.
type Graph struct {
	Nodes map[LocalPackageId]Node
	Edges []Edge
	Roots []LocalPackageId
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[LocalPackageId]Node)}
}

// AddNode inserts n into the graph, replacing any existing node sharing
// its id (ids are content-addressed, so this is a no-op in practice for
// well-formed callers).
func (g *Graph) AddNode(n Node) {
	g.Nodes[n.ID] = n
}

// AddRoot marks id as a root of the graph (a directly-requested
// entrypoint).
func (g *Graph) AddRoot(id LocalPackageId) {
	g.Roots = append(g.Roots, id)
}

// AddEdge records that from depends on to via the given requirement
// string.
func (g *Graph) AddEdge(from, to LocalPackageId, requirement string) {
	g.Edges = append(g.Edges, Edge{From: from, To: to, Requirement: requirement})
}

// DependenciesOf returns the ids that id directly depends on, in the
// order they were added.
func (g *Graph) DependenciesOf(id LocalPackageId) []LocalPackageId {
	var out []LocalPackageId
	for _, e := range g.Edges {
		if e.From == id {
			out = append(out, e.To)
		}
	}
	return out
}

// Equal reports whether g and other describe the same set of nodes and
// edges, ignoring insertion order — the basis of the resolver determinism
// invariant (two resolutions of the same inputs must produce equal
// graphs).
func (g *Graph) Equal(other *Graph) bool {
	if len(g.Nodes) != len(other.Nodes) || len(g.Edges) != len(other.Edges) {
		return false
	}
	for id, n := range g.Nodes {
		on, ok := other.Nodes[id]
		if !ok || on.Name != n.Name || on.Version.String() != n.Version.String() || on.Source != n.Source || on.Optional != n.Optional || on.Entry != n.Entry {
			return false
		}
	}
	edgeSet := make(map[Edge]int, len(g.Edges))
	for _, e := range g.Edges {
		edgeSet[e]++
	}
	for _, e := range other.Edges {
		if edgeSet[e] == 0 {
			return false
		}
		edgeSet[e]--
	}
	return true
}
