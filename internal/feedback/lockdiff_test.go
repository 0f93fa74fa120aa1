package feedback

import (
	"testing"

	"github.com/lux-pm/lux/internal/resolver"
)

func node(t *testing.T, name, source, version string) resolver.Node {
	t.Helper()
	return resolver.Node{
		Name:    resolver.PackageName(name),
		Source:  source,
		Version: mustVersion(t, version),
	}
}

func TestStringDiff_NoChange(t *testing.T) {
	diff := StringDiff{Previous: "foo", Current: "foo"}
	if got := diff.String(); got != "foo" {
		t.Fatalf("expected 'foo', got '%s'", got)
	}
}

func TestStringDiff_Add(t *testing.T) {
	diff := StringDiff{Current: "foo"}
	if got := diff.String(); got != "+ foo" {
		t.Fatalf("expected '+ foo', got '%s'", got)
	}
}

func TestStringDiff_Remove(t *testing.T) {
	diff := StringDiff{Previous: "foo"}
	if got := diff.String(); got != "- foo" {
		t.Fatalf("expected '- foo', got '%s'", got)
	}
}

func TestStringDiff_Modify(t *testing.T) {
	diff := StringDiff{Previous: "foo", Current: "bar"}
	if got := diff.String(); got != "foo -> bar" {
		t.Fatalf("expected 'foo -> bar', got '%s'", got)
	}
}

func TestDiffPackages_NoChange(t *testing.T) {
	a := node(t, "penlight", "https://example.test/penlight.zip", "1.0.0")
	b := node(t, "penlight", "https://example.test/penlight.zip", "1.0.0")
	if diff := DiffPackages(a, b); diff != nil {
		t.Fatalf("expected nil diff, got %+v", diff)
	}
}

func TestDiffPackages_Modify(t *testing.T) {
	a := node(t, "penlight", "https://example.test/penlight-1.0.0.zip", "1.0.0")
	b := node(t, "penlight", "https://example.test/penlight-1.1.0.zip", "1.1.0")

	diff := DiffPackages(a, b)
	if diff == nil {
		t.Fatal("expected a populated diff")
	}
	if got := diff.Version.String(); got != "1.0.0 -> 1.1.0" {
		t.Fatalf("expected version diff '1.0.0 -> 1.1.0', got '%s'", got)
	}
	if got := diff.Source.String(); got != "https://example.test/penlight-1.0.0.zip -> https://example.test/penlight-1.1.0.zip" {
		t.Fatalf("unexpected source diff: %s", got)
	}
}

func TestDiffLocks_NoChange(t *testing.T) {
	old := map[resolver.PackageName]resolver.Node{
		"penlight": node(t, "penlight", "src", "1.0.0"),
	}
	updated := map[resolver.PackageName]resolver.Node{
		"penlight": node(t, "penlight", "src", "1.0.0"),
	}
	if diff := DiffLocks(old, updated); diff != nil {
		t.Fatalf("expected nil diff, got %+v", diff)
	}
}

func TestDiffLocks_Add(t *testing.T) {
	old := map[resolver.PackageName]resolver.Node{
		"penlight": node(t, "penlight", "src", "1.0.0"),
	}
	updated := map[resolver.PackageName]resolver.Node{
		"penlight": node(t, "penlight", "src", "1.0.0"),
		"luafilesystem": node(t, "luafilesystem", "src2", "1.8.0"),
	}

	diff := DiffLocks(old, updated)
	if diff == nil {
		t.Fatal("expected a populated diff")
	}
	if len(diff.Add) != 1 || diff.Add[0].Name != "luafilesystem" {
		t.Fatalf("expected one added package luafilesystem, got %+v", diff.Add)
	}
	if len(diff.Remove) != 0 || len(diff.Modify) != 0 {
		t.Fatalf("expected no removals/modifications, got %+v", diff)
	}
}

func TestDiffLocks_Remove(t *testing.T) {
	old := map[resolver.PackageName]resolver.Node{
		"penlight":      node(t, "penlight", "src", "1.0.0"),
		"luafilesystem": node(t, "luafilesystem", "src2", "1.8.0"),
	}
	updated := map[resolver.PackageName]resolver.Node{
		"penlight": node(t, "penlight", "src", "1.0.0"),
	}

	diff := DiffLocks(old, updated)
	if diff == nil {
		t.Fatal("expected a populated diff")
	}
	if len(diff.Remove) != 1 || diff.Remove[0].Name != "luafilesystem" {
		t.Fatalf("expected one removed package luafilesystem, got %+v", diff.Remove)
	}
}

func TestDiffLocks_Modify(t *testing.T) {
	old := map[resolver.PackageName]resolver.Node{
		"penlight": node(t, "penlight", "src-1.0.0", "1.0.0"),
	}
	updated := map[resolver.PackageName]resolver.Node{
		"penlight": node(t, "penlight", "src-1.1.0", "1.1.0"),
	}

	diff := DiffLocks(old, updated)
	if diff == nil {
		t.Fatal("expected a populated diff")
	}
	if len(diff.Modify) != 1 || diff.Modify[0].Name != "penlight" {
		t.Fatalf("expected one modified package penlight, got %+v", diff.Modify)
	}
}

func TestDiffLocks_EmptyBoth(t *testing.T) {
	if diff := DiffLocks(nil, nil); diff != nil {
		t.Fatalf("expected nil diff for two empty sets, got %+v", diff)
	}
}

func TestDiffLocks_EmptyInitial(t *testing.T) {
	updated := map[resolver.PackageName]resolver.Node{
		"penlight": node(t, "penlight", "src", "1.0.0"),
	}
	diff := DiffLocks(nil, updated)
	if diff == nil || len(diff.Add) != 1 {
		t.Fatalf("expected one addition from an empty initial lock, got %+v", diff)
	}
}

func TestDiffLocks_EmptyFinal(t *testing.T) {
	old := map[resolver.PackageName]resolver.Node{
		"penlight": node(t, "penlight", "src", "1.0.0"),
	}
	diff := DiffLocks(old, nil)
	if diff == nil || len(diff.Remove) != 1 {
		t.Fatalf("expected one removal for an empty final lock, got %+v", diff)
	}
}
