package resolver

import "testing"

type fakeDB struct {
	versions map[PackageName][]PackageVersion
	source   map[PackageName]string
}

func (f *fakeDB) Best(name PackageName, constraint VersionConstraint) (string, PackageVersion, bool, error) {
	vs := f.versions[name.Normalize()]
	for i := len(vs) - 1; i >= 0; i-- {
		if constraint.Matches(vs[i]) {
			return f.source[name.Normalize()], vs[i], true, nil
		}
	}
	return "", PackageVersion{}, false, nil
}

type fakeDeps struct {
	deps map[PackageName][]PackageReq
}

func (f *fakeDeps) DependenciesOf(name PackageName, version PackageVersion, source string) ([]PackageReq, error) {
	return f.deps[name.Normalize()], nil
}

func mustV(t *testing.T, s string) PackageVersion {
	t.Helper()
	v, err := ParsePackageVersion(s)
	if err != nil {
		t.Fatalf("ParsePackageVersion(%q): %v", s, err)
	}
	return v
}

func mustC(t *testing.T, s string) VersionConstraint {
	t.Helper()
	c, err := ParseVersionConstraint(s)
	if err != nil {
		t.Fatalf("ParseVersionConstraint(%q): %v", s, err)
	}
	return c
}

func TestSolveBasic(t *testing.T) {
	db := &fakeDB{
		versions: map[PackageName][]PackageVersion{
			"luasocket": {mustV(t, "3.0.0"), mustV(t, "3.1.0")},
		},
		source: map[PackageName]string{"luasocket": "https://example.test/luasocket-3.1.0.src.rock"},
	}
	deps := &fakeDeps{deps: map[PackageName][]PackageReq{}}

	g, err := Solve(Params{
		Roots: []PackageReq{{Name: "luasocket", Constraint: Any(), Entry: true}},
		DB:    db,
		Deps:  deps,
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(g.Nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(g.Nodes))
	}
	for _, n := range g.Nodes {
		if n.Version.String() != "3.1.0" {
			t.Errorf("expected highest version 3.1.0, got %s", n.Version)
		}
	}
}

func TestSolveFiltersInterpreter(t *testing.T) {
	db := &fakeDB{versions: map[PackageName][]PackageVersion{}, source: map[PackageName]string{}}
	deps := &fakeDeps{deps: map[PackageName][]PackageReq{}}

	g, err := Solve(Params{
		Roots: []PackageReq{{Name: "lua", Constraint: Any(), Entry: true}},
		DB:    db,
		Deps:  deps,
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(g.Nodes) != 0 {
		t.Fatalf("expected interpreter to be filtered out, got %d nodes", len(g.Nodes))
	}
}

func TestSolveTransitiveExpansion(t *testing.T) {
	db := &fakeDB{
		versions: map[PackageName][]PackageVersion{
			"a": {mustV(t, "1.0.0")},
			"b": {mustV(t, "2.0.0")},
		},
		source: map[PackageName]string{"a": "src-a", "b": "src-b"},
	}
	deps := &fakeDeps{
		deps: map[PackageName][]PackageReq{
			"a": {{Name: "b", Constraint: Any()}},
		},
	}

	g, err := Solve(Params{
		Roots: []PackageReq{{Name: "a", Constraint: Any(), Entry: true}},
		DB:    db,
		Deps:  deps,
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(g.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(g.Nodes))
	}
	if len(g.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(g.Edges))
	}
}

func TestSolveUnsatisfiable(t *testing.T) {
	db := &fakeDB{
		versions: map[PackageName][]PackageVersion{"a": {mustV(t, "1.0.0")}},
		source:   map[PackageName]string{"a": "src-a"},
	}
	deps := &fakeDeps{deps: map[PackageName][]PackageReq{}}

	_, err := Solve(Params{
		Roots: []PackageReq{{Name: "a", Constraint: mustC(t, ">=2.0.0"), Entry: true}},
		DB:    db,
		Deps:  deps,
	})
	if _, ok := err.(*UnsatisfiableError); !ok {
		t.Fatalf("expected *UnsatisfiableError, got %T (%v)", err, err)
	}
}

func TestSolveConstraintConflict(t *testing.T) {
	db := &fakeDB{
		versions: map[PackageName][]PackageVersion{
			"shared": {mustV(t, "1.0.0"), mustV(t, "2.0.0")},
			"a":      {mustV(t, "1.0.0")},
			"b":      {mustV(t, "1.0.0")},
		},
		source: map[PackageName]string{"shared": "src-shared", "a": "src-a", "b": "src-b"},
	}
	deps := &fakeDeps{
		deps: map[PackageName][]PackageReq{
			"a": {{Name: "shared", Constraint: mustC(t, "<2.0.0")}},
			"b": {{Name: "shared", Constraint: mustC(t, ">=2.0.0")}},
		},
	}

	_, err := Solve(Params{
		Roots: []PackageReq{
			{Name: "a", Constraint: Any(), Entry: true},
			{Name: "b", Constraint: Any(), Entry: true},
		},
		DB:   db,
		Deps: deps,
	})
	if _, ok := err.(*ConstraintConflictError); !ok {
		t.Fatalf("expected *ConstraintConflictError, got %T (%v)", err, err)
	}
}

func TestSolveCycleBetweenRequiredNodesFails(t *testing.T) {
	db := &fakeDB{
		versions: map[PackageName][]PackageVersion{
			"a": {mustV(t, "1.0.0")},
			"b": {mustV(t, "1.0.0")},
		},
		source: map[PackageName]string{"a": "src-a", "b": "src-b"},
	}
	deps := &fakeDeps{
		deps: map[PackageName][]PackageReq{
			"a": {{Name: "b", Constraint: Any()}},
			"b": {{Name: "a", Constraint: Any()}},
		},
	}

	_, err := Solve(Params{
		Roots: []PackageReq{{Name: "a", Constraint: Any(), Entry: true}},
		DB:    db,
		Deps:  deps,
	})
	if _, ok := err.(*CycleError); !ok {
		t.Fatalf("expected *CycleError, got %T (%v)", err, err)
	}
}

func TestSolveOptionalCycleAllowed(t *testing.T) {
	db := &fakeDB{
		versions: map[PackageName][]PackageVersion{
			"a": {mustV(t, "1.0.0")},
			"b": {mustV(t, "1.0.0")},
		},
		source: map[PackageName]string{"a": "src-a", "b": "src-b"},
	}
	deps := &fakeDeps{
		deps: map[PackageName][]PackageReq{
			"a": {{Name: "b", Constraint: Any(), Optional: true}},
			"b": {{Name: "a", Constraint: Any(), Optional: true}},
		},
	}

	g, err := Solve(Params{
		Roots: []PackageReq{{Name: "a", Constraint: Any(), Entry: true, Optional: true}},
		DB:    db,
		Deps:  deps,
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(g.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(g.Nodes))
	}
}

func TestSolveDeterministic(t *testing.T) {
	db := &fakeDB{
		versions: map[PackageName][]PackageVersion{
			"a": {mustV(t, "1.0.0")},
			"b": {mustV(t, "2.0.0")},
		},
		source: map[PackageName]string{"a": "src-a", "b": "src-b"},
	}
	deps := &fakeDeps{
		deps: map[PackageName][]PackageReq{
			"a": {{Name: "b", Constraint: Any()}},
		},
	}
	params := Params{
		Roots: []PackageReq{{Name: "a", Constraint: Any(), Entry: true}},
		DB:    db,
		Deps:  deps,
	}

	g1, err := Solve(params)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	g2, err := Solve(params)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !g1.Equal(g2) {
		t.Fatalf("expected two resolutions of identical inputs to produce equal graphs")
	}
}
