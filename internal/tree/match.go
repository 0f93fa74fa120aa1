package tree

import "github.com/lux-pm/lux/internal/resolver"

// MatchKind enumerates how many installed ids satisfy a PackageReq within
// a tree.
type MatchKind int

const (
	// MatchNone means no installed id satisfies the request.
	MatchNone MatchKind = iota
	// MatchSingle means exactly one installed id satisfies it.
	MatchSingle
	// MatchMany means more than one installed id satisfies it (e.g. two
	// revisions of the same package coexisting under different ids).
	MatchMany
)

// Match is the result of matching a PackageReq against the set of
// installed ids the tree currently knows about.
type Match struct {
	Kind MatchKind
	IDs  []resolver.LocalPackageId
}

// Installed is the minimal view of a tree's current contents the matcher
// needs: the set of ids already recorded (by the lockfile, normally).
type Installed struct {
	Entries []InstalledEntry
}

// InstalledEntry is one installed id's identity, as matched against a
// PackageReq.
type InstalledEntry struct {
	ID      resolver.LocalPackageId
	Name    resolver.PackageName
	Version resolver.PackageVersion
}

// MatchReq reports which installed entries satisfy req.
func (inst Installed) MatchReq(req resolver.PackageReq) Match {
	var ids []resolver.LocalPackageId
	for _, e := range inst.Entries {
		if e.Name.Normalize() != req.Name.Normalize() {
			continue
		}
		if !req.Constraint.Matches(e.Version) {
			continue
		}
		ids = append(ids, e.ID)
	}
	switch len(ids) {
	case 0:
		return Match{Kind: MatchNone}
	case 1:
		return Match{Kind: MatchSingle, IDs: ids}
	default:
		return Match{Kind: MatchMany, IDs: ids}
	}
}

// MatchAnd further restricts a Match to the ids for which pred returns
// true, mirroring match_rocks_and's role of layering an extra predicate
// (e.g. "is a build dependency") on top of the name/version match.
func MatchAnd(m Match, pred func(resolver.LocalPackageId) bool) Match {
	var ids []resolver.LocalPackageId
	for _, id := range m.IDs {
		if pred(id) {
			ids = append(ids, id)
		}
	}
	switch len(ids) {
	case 0:
		return Match{Kind: MatchNone}
	case 1:
		return Match{Kind: MatchSingle, IDs: ids}
	default:
		return Match{Kind: MatchMany, IDs: ids}
	}
}
