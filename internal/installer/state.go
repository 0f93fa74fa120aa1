// Package installer implements the installer: coordinating the
// resolver, fetcher, build dispatcher, tree layout, and lockfile into one
// per-id state machine, with rendezvous on concurrent requests for the
// same id made through one Installer.
package installer

import "github.com/lux-pm/lux/internal/resolver"

// State is one node's position in the Planned -> Fetching -> Built ->
// Placed -> Recorded pipeline. Transitions are monotonic: a failure at
// any point moves the node to Failed instead of backtracking, and any
// not-yet-Recorded dependent of a Failed node moves to Skipped.
type State int

const (
	StatePlanned State = iota
	StateFetching
	StateBuilt
	StatePlaced
	StateRecorded
	StateFailed
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StatePlanned:
		return "planned"
	case StateFetching:
		return "fetching"
	case StateBuilt:
		return "built"
	case StatePlaced:
		return "placed"
	case StateRecorded:
		return "recorded"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	}
	return "unknown"
}

// BuildBehaviour controls whether an already-placed, integrity-matching
// id is left alone or rebuilt.
type BuildBehaviour int

const (
	NoForce BuildBehaviour = iota
	Force
)

// NodeResult is one node's final outcome after Install returns.
type NodeResult struct {
	ID    resolver.LocalPackageId
	State State
	Err   error // set when State is Failed; names the upstream id when Skipped
}
