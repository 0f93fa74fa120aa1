package installer

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lux-pm/lux/internal/build"
	"github.com/lux-pm/lux/internal/fetch"
	"github.com/lux-pm/lux/internal/resolver"
)

func TestTopoOrderRespectsDependencies(t *testing.T) {
	g := resolver.NewGraph()
	g.AddNode(resolver.Node{ID: "a"})
	g.AddNode(resolver.Node{ID: "b"})
	g.AddNode(resolver.Node{ID: "c"})
	g.AddEdge("a", "b", "")
	g.AddEdge("b", "c", "")

	order := topoOrder(g)
	pos := make(map[resolver.LocalPackageId]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos["c"] >= pos["b"] || pos["b"] >= pos["a"] {
		t.Fatalf("expected order c, b, a (leaves first); got %v", order)
	}
}

type fakeInputs struct {
	sourceDirs map[resolver.PackageName]string
}

func (f fakeInputs) SourceOf(node resolver.Node) (fetch.Source, error) {
	return fetch.Source{Kind: fetch.KindLocal, Path: f.sourceDirs[node.Name]}, nil
}

func (f fakeInputs) BuildSpecOf(node resolver.Node) (build.Spec, build.Interpreter, error) {
	return build.Spec{Backend: build.BackendCommand, Command: []string{"true"}},
		build.Interpreter{Executable: "lua5.4", ABIVersion: "5.4"}, nil
}

type fakeLedger struct {
	mu      sync.Mutex
	placed  map[resolver.LocalPackageId]string
	records []resolver.LocalPackageId
}

func (l *fakeLedger) Placed(id resolver.LocalPackageId) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.placed[id]
	return d, ok
}

func (l *fakeLedger) Record(id resolver.LocalPackageId, node resolver.Node, digest, sourceHash, resolvedRef, buildSpecHash string, dependencyIDs []resolver.LocalPackageId) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, id)
	return nil
}

func TestInstallSingleNode(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("no `true` binary on PATH")
	}

	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "init.lua"), []byte("return {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	g := resolver.NewGraph()
	g.AddNode(resolver.Node{ID: "pkg1", Name: "examplerock", Entry: true})
	g.AddRoot("pkg1")

	ledger := &fakeLedger{placed: map[resolver.LocalPackageId]string{}}
	inputs := fakeInputs{sourceDirs: map[resolver.PackageName]string{"examplerock": srcDir}}

	inst := New(
		fetch.New(t.TempDir(), 2, 5*time.Second),
		&build.Dispatcher{IdleTimeout: 5 * time.Second},
		inputs,
		ledger,
		t.TempDir(),
		"5.4",
		2,
	)

	results := inst.Install(context.Background(), g, nil)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].State != StateRecorded {
		t.Fatalf("expected StateRecorded, got %s (%v)", results[0].State, results[0].Err)
	}
	if len(ledger.records) != 1 {
		t.Fatalf("expected 1 recorded id, got %d", len(ledger.records))
	}
}
