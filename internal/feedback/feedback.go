// Package feedback renders human-readable lines about what the resolver
// and syncer decided: which constraint satisfied a requirement, which
// version got locked, and what changed between an old lockfile and a new
// one. Feedback values are plain structs rendered through an injected
// *log.Logger, never a package-global logger, so callers control where
// (and whether) this output goes.
package feedback

import (
	"fmt"
	"log"
	"sort"

	"github.com/lux-pm/lux/internal/resolver"
)

const (
	// ConsTypeConstraint represents an explicit version constraint.
	ConsTypeConstraint = "constraint"

	// ConsTypePin represents a pinned lockfile entry used as a hint.
	ConsTypePin = "pin"

	// DepTypeDirect represents a direct dependency of the entrypoint manifest.
	DepTypeDirect = "direct dep"

	// DepTypeTransitive represents a dependency pulled in transitively.
	DepTypeTransitive = "transitive dep"

	// DepTypeTest represents a test-only dependency.
	DepTypeTest = "test dep"
)

// ConstraintFeedback holds feedback about one resolved requirement: the
// constraint that was asked for and the version the solver bound it to.
type ConstraintFeedback struct {
	Constraint, LockedVersion, ConstraintType, DependencyType, PackageName string
}

// NewConstraintFeedback builds a feedback entry for a requirement as the
// resolver is solving it.
func NewConstraintFeedback(req resolver.PackageReq, depType string) *ConstraintFeedback {
	return &ConstraintFeedback{
		Constraint:     req.Constraint.String(),
		PackageName:    string(req.Name),
		ConstraintType: ConsTypeConstraint,
		DependencyType: depType,
	}
}

// NewPinFeedback builds a feedback entry for a requirement that was bound
// to a lockfile pin rather than resolved fresh.
func NewPinFeedback(name resolver.PackageName, version resolver.PackageVersion, depType string) *ConstraintFeedback {
	return &ConstraintFeedback{
		PackageName:    string(name),
		LockedVersion:  version.String(),
		ConstraintType: ConsTypePin,
		DependencyType: depType,
	}
}

// LogFeedback logs cf's constraint and/or locked-version lines.
func (cf ConstraintFeedback) LogFeedback(logger *log.Logger) {
	if cf.Constraint != "" {
		logger.Printf("  %v", GetUsingFeedback(cf.Constraint, cf.ConstraintType, cf.DependencyType, cf.PackageName))
	}
	if cf.LockedVersion != "" {
		logger.Printf("  %v", GetLockingFeedback(cf.LockedVersion, cf.DependencyType, cf.PackageName))
	}
}

// GetUsingFeedback renders a "resolving" message, e.g.:
//
//	Using >=1.0.0 as constraint for direct dep penlight
func GetUsingFeedback(constraint, consType, depType, name string) string {
	return fmt.Sprintf("Using %s as %s for %s %s", constraint, consType, depType, name)
}

// GetLockingFeedback renders a "locked in" message, e.g.:
//
//	Locking in 1.13.1-1 for direct dep penlight
func GetLockingFeedback(version, depType, name string) string {
	return fmt.Sprintf("Locking in %s for %s %s", version, depType, name)
}

// StringDiff describes a change in a string-valued field between two
// lockfile revisions: empty Previous means the field was added, empty
// Current means it was removed, equal values mean no change.
type StringDiff struct {
	Previous, Current string
}

// String renders the diff as "+ x" (added), "- x" (removed), "x -> y"
// (modified), or plain "x" (unchanged).
func (d StringDiff) String() string {
	switch {
	case d.Previous == d.Current:
		return d.Current
	case d.Previous == "":
		return "+ " + d.Current
	case d.Current == "":
		return "- " + d.Previous
	default:
		return fmt.Sprintf("%s -> %s", d.Previous, d.Current)
	}
}

// PackageDiff describes how one package's resolution changed between two
// lockfile revisions, keyed by name.
type PackageDiff struct {
	Name    resolver.PackageName
	Source  StringDiff
	Version StringDiff
}

// DiffPackages compares an old and updated Node sharing a name, returning
// nil if nothing relevant changed.
func DiffPackages(old, updated resolver.Node) *PackageDiff {
	if old.Version.String() == updated.Version.String() && old.Source == updated.Source {
		return nil
	}
	return &PackageDiff{
		Name:    updated.Name,
		Source:  StringDiff{Previous: old.Source, Current: updated.Source},
		Version: StringDiff{Previous: old.Version.String(), Current: updated.Version.String()},
	}
}

// LockDiff partitions the difference between two lockfile package sets
// into additions, removals, and in-place modifications, keyed by name and
// sorted for deterministic output — what the syncer reports after a
// resolve so a user can see exactly what changed before it installs.
type LockDiff struct {
	Add    []PackageDiff
	Remove []PackageDiff
	Modify []PackageDiff
}

// DiffLocks compares old and updated package sets by name. Returns nil if
// the sets are identical.
func DiffLocks(old, updated map[resolver.PackageName]resolver.Node) *LockDiff {
	names := make(map[resolver.PackageName]bool, len(old)+len(updated))
	for name := range old {
		names[name] = true
	}
	for name := range updated {
		names[name] = true
	}
	sorted := make([]resolver.PackageName, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var diff LockDiff
	for _, name := range sorted {
		o, hadOld := old[name]
		n, hasNew := updated[name]
		switch {
		case !hadOld && hasNew:
			diff.Add = append(diff.Add, PackageDiff{
				Name:    n.Name,
				Source:  StringDiff{Current: n.Source},
				Version: StringDiff{Current: n.Version.String()},
			})
		case hadOld && !hasNew:
			diff.Remove = append(diff.Remove, PackageDiff{
				Name:    o.Name,
				Source:  StringDiff{Previous: o.Source},
				Version: StringDiff{Previous: o.Version.String()},
			})
		case hadOld && hasNew:
			if pd := DiffPackages(o, n); pd != nil {
				diff.Modify = append(diff.Modify, *pd)
			}
		}
	}

	if len(diff.Add) == 0 && len(diff.Remove) == 0 && len(diff.Modify) == 0 {
		return nil
	}
	return &diff
}

// LogFeedback logs one line per added, removed, and modified package.
func (d LockDiff) LogFeedback(logger *log.Logger) {
	for _, pd := range d.Add {
		logger.Printf("Adding %s %s (%s)", pd.Name, pd.Version.Current, pd.Source.Current)
	}
	for _, pd := range d.Remove {
		logger.Printf("Removing %s %s (%s)", pd.Name, pd.Version.Previous, pd.Source.Previous)
	}
	for _, pd := range d.Modify {
		logger.Printf("Updating %s: %v (%v)", pd.Name, pd.Version, pd.Source)
	}
}
