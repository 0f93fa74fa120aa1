package resolver

import "fmt"

// ConstraintConflictError is returned when two requesters ask for the same
// package name with constraints whose intersection is empty.
type ConstraintConflictError struct {
	Name        PackageName
	RequesterA  PackageName
	ConstraintA VersionConstraint
	RequesterB  PackageName
	ConstraintB VersionConstraint
}

func (e *ConstraintConflictError) Error() string {
	return fmt.Sprintf("conflicting constraints for %s: %s requires %s, %s requires %s",
		e.Name, e.RequesterA, e.ConstraintA, e.RequesterB, e.ConstraintB)
}

// UnsatisfiableError is returned when no version of a package in the
// registry view satisfies the requested constraint.
type UnsatisfiableError struct {
	Name       PackageName
	Constraint VersionConstraint
	Requester  PackageName
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf("no version of %s satisfies %s (requested by %s)", e.Name, e.Constraint, e.Requester)
}

// CycleError is returned when the dependency graph contains a back-edge
// to a non-optional node already on the current DFS stack.
type CycleError struct {
	Path []PackageName
}

func (e *CycleError) Error() string {
	s := "cyclic dependency: "
	for i, n := range e.Path {
		if i > 0 {
			s += " -> "
		}
		s += string(n)
	}
	return s
}
