package lux

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/lux-pm/lux/internal/build"
	"github.com/lux-pm/lux/internal/config"
	"github.com/lux-pm/lux/internal/installer"
	"github.com/lux-pm/lux/internal/registry"
	"github.com/lux-pm/lux/internal/resolver"
)

// newTestSyncer wires a Syncer against a temp tree, a temp cache, and a
// single fake registry serving fooRockspec for "foo" 1.0.0-1, the way a
// project with one dependency and no lockfile yet would look.
func newTestSyncer(t *testing.T, fooRockspec string) (*Syncer, *Project) {
	t.Helper()

	version, err := resolver.ParsePackageVersion("1.0.0-1")
	if err != nil {
		t.Fatalf("ParsePackageVersion: %v", err)
	}

	client := &fakeRegistryClient{
		versions: []registry.Entry{{Name: "foo", Version: version, Source: "local"}},
		rockspecs: map[string][]byte{
			rockspecCacheKey("foo", version): []byte(fooRockspec),
		},
	}
	db := registry.New([]registry.Server{{Name: "primary"}}, map[string]registry.Client{"primary": client}, nil)
	source := NewRemoteSource(db, build.Interpreter{ABIVersion: "5.4"})

	treeRoot := t.TempDir()
	cacheDir := t.TempDir()

	cfg, err := config.NewBuilder().
		TreeRoot(treeRoot).
		CacheDir(cacheDir).
		InterpreterVersion("5.4").
		AddRegistry(registry.Server{Name: "primary"}).
		Build()
	if err != nil {
		t.Fatalf("building config: %v", err)
	}
	ctx := NewContext(cfg, log.New(os.Stderr, "", 0))

	manifest := NewRockspec("demo", version)
	manifest.Dependencies.Base = []resolver.PackageReq{{Name: "foo", Constraint: mustConstraint(t, ">=1.0.0")}}

	project := &Project{
		AbsRoot:  t.TempDir(),
		Manifest: manifest,
		Lock:     NewLockfile(filepath.Join(t.TempDir(), "lux-lock.json")),
	}

	return NewSyncer(ctx, project, source), project
}

func mustV(t *testing.T, s string) resolver.PackageVersion {
	t.Helper()
	v, err := resolver.ParsePackageVersion(s)
	if err != nil {
		t.Fatalf("ParsePackageVersion(%q): %v", s, err)
	}
	return v
}

func mustConstraint(t *testing.T, s string) resolver.VersionConstraint {
	t.Helper()
	c, err := resolver.ParseVersionConstraint(s)
	if err != nil {
		t.Fatalf("ParseVersionConstraint(%q): %v", s, err)
	}
	return c
}

func TestSyncDependenciesInstallsAndRecords(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "init.lua"), []byte("return {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	rockspec := `
package = "foo"
version = "1.0.0-1"
source = { url = "file://` + srcDir + `" }
build = { type = "builtin" }
`
	syncer, project := newTestSyncer(t, rockspec)

	result, err := syncer.SyncDependencies(context.Background())
	if err != nil {
		t.Fatalf("SyncDependencies: %v", err)
	}
	if len(result.Results) != 1 {
		t.Fatalf("expected 1 install result, got %d", len(result.Results))
	}
	if result.Results[0].State != installer.StateRecorded {
		t.Fatalf("expected node to be recorded, got %v (err %v)", result.Results[0].State, result.Results[0].Err)
	}

	if len(project.Lock.Packages) != 1 {
		t.Fatalf("expected 1 lockfile package, got %d", len(project.Lock.Packages))
	}
	for _, pkg := range project.Lock.Packages {
		if pkg.Name != "foo" {
			t.Fatalf("expected recorded package foo, got %s", pkg.Name)
		}
		if pkg.Entrypoint {
			t.Fatalf("SyncDependencies should not mark foo as an entrypoint")
		}
	}
}

func TestSyncPromotesDependencyToEntrypointAndForcesRebuild(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "init.lua"), []byte("return {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	rockspec := `
package = "foo"
version = "1.0.0-1"
source = { url = "file://` + srcDir + `" }
build = { type = "builtin" }
`
	syncer, project := newTestSyncer(t, rockspec)

	if _, err := syncer.SyncDependencies(context.Background()); err != nil {
		t.Fatalf("SyncDependencies: %v", err)
	}

	result, err := syncer.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(result.Results) != 1 || result.Results[0].State != installer.StateRecorded {
		t.Fatalf("expected a forced rebuild to still record, got %+v", result.Results)
	}

	for _, pkg := range project.Lock.Packages {
		if !pkg.Entrypoint {
			t.Fatalf("expected foo to be promoted to an entrypoint after Sync")
		}
	}
}

func TestSyncPrunesUnreferencedPackage(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "init.lua"), []byte("return {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	rockspec := `
package = "foo"
version = "1.0.0-1"
source = { url = "file://` + srcDir + `" }
build = { type = "builtin" }
`
	syncer, project := newTestSyncer(t, rockspec)

	if _, err := syncer.Sync(context.Background()); err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	if len(project.Lock.Packages) != 1 {
		t.Fatalf("expected foo installed before dropping it from the manifest")
	}

	project.Manifest.Dependencies.Base = nil
	syncer.Project = project

	result, err := syncer.Sync(context.Background())
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if len(result.Removed) != 1 {
		t.Fatalf("expected 1 removed package, got %d (%+v)", len(result.Removed), result.Removed)
	}
	if len(project.Lock.Packages) != 0 {
		t.Fatalf("expected lockfile to be empty after pruning, got %d entries", len(project.Lock.Packages))
	}
}

func TestNeedsRebuildOnBuildSpecHashDrift(t *testing.T) {
	srcDir := t.TempDir()
	rockspec := `
package = "foo"
version = "1.0.0-1"
source = { url = "file://` + srcDir + `" }
build = { type = "builtin" }
`
	syncer, _ := newTestSyncer(t, rockspec)
	version := mustV(t, "1.0.0-1")
	node := resolver.Node{Name: "foo", Version: version}

	spec, _, err := syncer.Source.BuildSpecOf(node)
	if err != nil {
		t.Fatalf("BuildSpecOf: %v", err)
	}

	if syncer.needsRebuild(node, LocalPackage{BuildSpecHash: spec.Hash()}) {
		t.Fatalf("expected no rebuild when the recorded build spec hash still matches")
	}
	if !syncer.needsRebuild(node, LocalPackage{BuildSpecHash: "stale"}) {
		t.Fatalf("expected a rebuild when the recorded build spec hash has drifted")
	}
}

func TestNeedsRebuildOnUnresolvedGitRef(t *testing.T) {
	rockspec := `
package = "foo"
version = "1.0.0-1"
source = { url = "git://example.test/foo.git", branch = "main" }
build = { type = "builtin" }
`
	syncer, _ := newTestSyncer(t, rockspec)
	version := mustV(t, "1.0.0-1")
	node := resolver.Node{Name: "foo", Version: version}

	spec, _, err := syncer.Source.BuildSpecOf(node)
	if err != nil {
		t.Fatalf("BuildSpecOf: %v", err)
	}

	if !syncer.needsRebuild(node, LocalPackage{BuildSpecHash: spec.Hash()}) {
		t.Fatalf("expected a rebuild for a git source still pinned to a branch rather than a resolved commit")
	}
}

func TestSyncFallsBackToLegacyShimForUnknownBuildType(t *testing.T) {
	srcDir := t.TempDir()
	rockspec := `
package = "foo"
version = "1.0.0-1"
source = { url = "file://` + srcDir + `" }
build = { type = "cargo" }
`
	syncer, project := newTestSyncer(t, rockspec)

	result, err := syncer.SyncDependencies(context.Background())
	if err != nil {
		t.Fatalf("SyncDependencies: %v", err)
	}
	if len(result.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(result.Results))
	}
	if len(project.Lock.Packages) != 0 && result.Results[0].State == installer.StateRecorded {
		t.Fatalf("expected the legacy shim build to not silently record success")
	}
}
