package resolver

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// TestSolveIsDeterministic checks that for a fixed (manifest, lockfile,
// registry snapshot), two resolutions yield equal DAGs. Graph.Equal already
// checks this order-independently; cmp.Diff is used here instead so a
// failure prints exactly which node or edge differs rather than just "not
// equal".
func TestSolveIsDeterministic(t *testing.T) {
	db := &fakeDB{
		versions: map[PackageName][]PackageVersion{
			"a": {mustV(t, "1.0.0")},
			"b": {mustV(t, "2.0.0")},
			"c": {mustV(t, "1.5.0")},
		},
		source: map[PackageName]string{"a": "src-a", "b": "src-b", "c": "src-c"},
	}
	deps := &fakeDeps{
		deps: map[PackageName][]PackageReq{
			"a": {{Name: "b", Constraint: Any()}, {Name: "c", Constraint: Any()}},
			"b": {{Name: "c", Constraint: Any()}},
		},
	}
	params := Params{
		Roots: []PackageReq{{Name: "a", Constraint: Any(), Entry: true}},
		DB:    db,
		Deps:  deps,
	}

	g1, err := Solve(params)
	if err != nil {
		t.Fatalf("first Solve: %v", err)
	}
	g2, err := Solve(params)
	if err != nil {
		t.Fatalf("second Solve: %v", err)
	}

	versionsEqual := cmp.Comparer(func(a, b PackageVersion) bool {
		return a.String() == b.String()
	})

	if diff := cmp.Diff(g1.Nodes, g2.Nodes, versionsEqual); diff != "" {
		t.Errorf("node sets differ between identical resolutions (-first +second):\n%s", diff)
	}

	sortEdges := cmpopts.SortSlices(func(a, b Edge) bool {
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})
	if diff := cmp.Diff(g1.Edges, g2.Edges, sortEdges, versionsEqual); diff != "" {
		t.Errorf("edge sets differ between identical resolutions (-first +second):\n%s", diff)
	}
}
