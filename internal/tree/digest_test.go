package tree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lux-pm/lux/internal/resolver"
)

func resolverParse(t *testing.T, s string) (resolver.PackageVersion, error) {
	t.Helper()
	v, err := resolver.ParsePackageVersion(s)
	if err != nil {
		t.Fatalf("ParsePackageVersion(%q): %v", s, err)
	}
	return v, nil
}

func reqFor(t *testing.T, name, constraint string) resolver.PackageReq {
	t.Helper()
	c, err := resolver.ParseVersionConstraint(constraint)
	if err != nil {
		t.Fatalf("ParseVersionConstraint(%q): %v", constraint, err)
	}
	return resolver.PackageReq{Name: resolver.PackageName(name), Constraint: c}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDigestFromDirectoryStable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "share", "lua", "5.4", "foo", "init.lua"), "return {}\n")
	writeFile(t, filepath.Join(dir, "lib", "lua", "5.4", "foo", "core.so"), "binary-ish")

	d1, err := DigestFromDirectory(dir)
	if err != nil {
		t.Fatalf("DigestFromDirectory: %v", err)
	}
	d2, err := DigestFromDirectory(dir)
	if err != nil {
		t.Fatalf("DigestFromDirectory: %v", err)
	}
	if d1 != d2 {
		t.Fatalf("expected digest to be stable across calls: %s != %s", d1, d2)
	}
}

func TestDigestFromDirectoryChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "share", "lua", "5.4", "foo", "init.lua")
	writeFile(t, p, "return {}\n")
	before, err := DigestFromDirectory(dir)
	if err != nil {
		t.Fatalf("DigestFromDirectory: %v", err)
	}

	writeFile(t, p, "return { changed = true }\n")
	after, err := DigestFromDirectory(dir)
	if err != nil {
		t.Fatalf("DigestFromDirectory: %v", err)
	}
	if before == after {
		t.Fatalf("expected digest to change when file content changes")
	}
}

func TestVerifyDepTreeMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "foo.lua"), "return 1\n")
	if err := VerifyDepTree(dir, "not-the-real-digest"); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestMatchReq(t *testing.T) {
	v1, _ := resolverParse(t, "1.0.0")
	v2, _ := resolverParse(t, "2.0.0")
	inst := Installed{Entries: []InstalledEntry{
		{ID: "a", Name: "luasocket", Version: v1},
		{ID: "b", Name: "luasocket", Version: v2},
	}}

	req := reqFor(t, "luasocket", ">=2.0.0")
	m := inst.MatchReq(req)
	if m.Kind != MatchSingle || len(m.IDs) != 1 || m.IDs[0] != "b" {
		t.Fatalf("expected single match on id b, got %+v", m)
	}

	reqAny := reqFor(t, "luasocket", "*")
	if inst.MatchReq(reqAny).Kind != MatchMany {
		t.Fatalf("expected many matches for open constraint")
	}

	reqMissing := reqFor(t, "nope", "*")
	if inst.MatchReq(reqMissing).Kind != MatchNone {
		t.Fatalf("expected no match for absent package")
	}
}
