package fetch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFetchLocalCopiesTree(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "sub", "init.lua"), []byte("return {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	f := New(t.TempDir(), 2, 5*time.Second)
	result, err := f.Fetch(context.Background(), "deadbeefdeadbeefdeadbeef", Source{Kind: KindLocal, Path: src})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.SourceHash == "" {
		t.Fatalf("expected a non-empty source hash")
	}

	copied := filepath.Join(result.Dir, "sub", "init.lua")
	if _, err := os.Stat(copied); err != nil {
		t.Fatalf("expected %s to exist after fetch: %v", copied, err)
	}
}

func TestFetchUnknownKind(t *testing.T) {
	f := New(t.TempDir(), 1, time.Second)
	_, err := f.Fetch(context.Background(), "id", Source{Kind: Kind(99)})
	if err == nil {
		t.Fatalf("expected error for unknown source kind")
	}
}

func TestRetryDelayIsExponential(t *testing.T) {
	base := 100 * time.Millisecond
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	for attempt, w := range want {
		if got := retryDelay(base, attempt+1); got != w {
			t.Fatalf("retryDelay(base, %d) = %v, want %v", attempt+1, got, w)
		}
	}
}
