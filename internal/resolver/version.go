// Package resolver implements the dependency resolution engine: the
// version/constraint model, the remote-package view it solves against, and
// the BFS solver that turns a set of root requirements into a DAG of
// LocalPackageIds.
package resolver

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// PackageName is an opaque, normalized package identifier. Equality is
// case-insensitive over ASCII. The name "lua" is reserved for the
// interpreter itself and is never treated as a fetchable dependency.
type PackageName string

// Normalize lowercases the ASCII portion of a name for comparison and
// storage purposes.
func (n PackageName) Normalize() PackageName {
	return PackageName(strings.ToLower(string(n)))
}

// IsInterpreter reports whether n names the interpreter rather than an
// installable rock.
func (n PackageName) IsInterpreter() bool {
	return n.Normalize() == "lua"
}

// PackageVersion is a semantic version with an optional integer revision
// suffix: MAJOR.MINOR.PATCH[-PRE][+BUILD]-REV. Ordering compares the
// semver core first, then the revision as a tiebreaker.
type PackageVersion struct {
	sv       *semver.Version
	revision int
	hasRev   bool
	raw      string
}

// ParsePackageVersion parses a version string, splitting off a trailing
// "-N" revision suffix (if present) before handing the remainder to the
// semver parser.
func ParsePackageVersion(s string) (PackageVersion, error) {
	raw := s
	body, rev, hasRev, err := splitRevision(s)
	if err != nil {
		return PackageVersion{}, errors.Wrapf(err, "parsing revision suffix of %q", s)
	}

	sv, err := semver.NewVersion(body)
	if err != nil {
		return PackageVersion{}, errors.Wrapf(err, "parsing version %q", s)
	}

	return PackageVersion{sv: sv, revision: rev, hasRev: hasRev, raw: raw}, nil
}

// splitRevision strips a trailing "-<digits>" revision marker that comes
// after any semver build metadata, since semver itself has no notion of a
// revision tiebreaker.
func splitRevision(s string) (body string, rev int, has bool, err error) {
	idx := strings.LastIndexByte(s, '-')
	if idx < 0 {
		return s, 0, false, nil
	}
	tail := s[idx+1:]
	n, convErr := strconv.Atoi(tail)
	if convErr != nil {
		// Not a trailing revision (e.g. this '-' belongs to a prerelease
		// tag); treat the whole string as the semver body.
		return s, 0, false, nil
	}
	return s[:idx], n, true, nil
}

// String renders the version back to its canonical textual form.
func (v PackageVersion) String() string {
	if !v.hasRev {
		return v.sv.String()
	}
	return fmt.Sprintf("%s-%d", v.sv.String(), v.revision)
}

// GobEncode implements gob.GobEncoder so a PackageVersion can be stored in
// the registry's on-disk cache despite its unexported fields.
func (v PackageVersion) GobEncode() ([]byte, error) {
	return []byte(v.String()), nil
}

// GobDecode implements gob.GobDecoder, the inverse of GobEncode.
func (v *PackageVersion) GobDecode(b []byte) error {
	parsed, err := ParsePackageVersion(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalJSON implements json.Marshaler so a PackageVersion round-trips
// through the lockfile as its canonical string form rather than its
// unexported fields.
func (v PackageVersion) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON implements json.Unmarshaler, the inverse of MarshalJSON.
func (v *PackageVersion) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParsePackageVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Compare returns -1, 0 or 1 as v is less than, equal to, or greater than
// other, comparing the semver core first and the revision as a tiebreaker.
func (v PackageVersion) Compare(other PackageVersion) int {
	if c := v.sv.Compare(other.sv); c != 0 {
		return c
	}
	if v.revision < other.revision {
		return -1
	}
	if v.revision > other.revision {
		return 1
	}
	return 0
}

// Less reports whether v sorts before other.
func (v PackageVersion) Less(other PackageVersion) bool { return v.Compare(other) < 0 }

// ConstraintOp enumerates the comparison operators a PackageReq clause may
// use.
type ConstraintOp int

const (
	OpEQ ConstraintOp = iota
	OpNE
	OpLT
	OpLE
	OpGT
	OpGE
	OpApprox // ~>, "pessimistic" / compatible-release operator
)

func (op ConstraintOp) String() string {
	switch op {
	case OpEQ:
		return "="
	case OpNE:
		return "!="
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpGT:
		return ">"
	case OpGE:
		return ">="
	case OpApprox:
		return "~>"
	}
	return "?"
}

// ConstraintClause is a single (operator, version) restriction.
type ConstraintClause struct {
	Op      ConstraintOp
	Version PackageVersion
}

// VersionConstraint is a conjunction of ConstraintClauses: a version
// satisfies the constraint only if it matches every clause.
type VersionConstraint struct {
	Clauses []ConstraintClause
}

// Any is the open constraint that matches every version.
func Any() VersionConstraint { return VersionConstraint{} }

// Matches reports whether v satisfies every clause in c.
func (c VersionConstraint) Matches(v PackageVersion) bool {
	for _, cl := range c.Clauses {
		if !clauseMatches(cl, v) {
			return false
		}
	}
	return true
}

func clauseMatches(cl ConstraintClause, v PackageVersion) bool {
	cmp := v.Compare(cl.Version)
	switch cl.Op {
	case OpEQ:
		return cmp == 0
	case OpNE:
		return cmp != 0
	case OpLT:
		return cmp < 0
	case OpLE:
		return cmp <= 0
	case OpGT:
		return cmp > 0
	case OpGE:
		return cmp >= 0
	case OpApprox:
		// ~> X.Y.Z admits any version >= X.Y.Z that shares its major
		// and minor components, i.e. < X.(Y+1).0, however many
		// components the constraint spelled out.
		return cmp >= 0 && v.sv.Major() == cl.Version.sv.Major() && v.sv.Minor() == cl.Version.sv.Minor()
	}
	return false
}

// String renders the constraint in its textual form, clauses joined by
// commas, e.g. ">=1.2.0,<2.0.0".
func (c VersionConstraint) String() string {
	if len(c.Clauses) == 0 {
		return "*"
	}
	parts := make([]string, len(c.Clauses))
	for i, cl := range c.Clauses {
		parts[i] = cl.Op.String() + cl.Version.String()
	}
	return strings.Join(parts, ",")
}

var opTokens = []struct {
	tok string
	op  ConstraintOp
}{
	{"~>", OpApprox},
	{">=", OpGE},
	{"<=", OpLE},
	{"==", OpEQ},
	{"!=", OpNE},
	{">", OpGT},
	{"<", OpLT},
	{"=", OpEQ},
}

// ParseVersionConstraint parses a comma-separated conjunction of clauses,
// e.g. ">=1.2.0,<2.0.0" or "~>1.4".
func ParseVersionConstraint(s string) (VersionConstraint, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return Any(), nil
	}

	var clauses []ConstraintClause
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		var op ConstraintOp
		var body string
		matched := false
		for _, ot := range opTokens {
			if strings.HasPrefix(part, ot.tok) {
				op = ot.op
				body = strings.TrimSpace(part[len(ot.tok):])
				matched = true
				break
			}
		}
		if !matched {
			op = OpEQ
			body = part
		}

		v, err := ParsePackageVersion(body)
		if err != nil {
			return VersionConstraint{}, errors.Wrapf(err, "parsing constraint clause %q", part)
		}
		clauses = append(clauses, ConstraintClause{Op: op, Version: v})
	}

	return VersionConstraint{Clauses: clauses}, nil
}

// PackageReq is a request for a package satisfying a version constraint,
// as it would appear in a manifest's dependency list or a transitive
// rockspec's dependencies.
type PackageReq struct {
	Name       PackageName
	Constraint VersionConstraint
	Pin        bool
	Optional   bool
	Entry      bool // true if this is a manifest-level entrypoint request
	Requester  PackageName
}
