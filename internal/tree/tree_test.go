package tree

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTreeInstalledListsPackageDirs(t *testing.T) {
	root := t.TempDir()
	tr := New(root, "5.4")

	layout := tr.Layout("foo")
	for _, dir := range []string{layout.Src, layout.Lib} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	cOnly := tr.Layout("bar")
	if err := os.MkdirAll(cOnly.Lib, 0755); err != nil {
		t.Fatal(err)
	}

	names, err := tr.Installed()
	if err != nil {
		t.Fatalf("Installed: %v", err)
	}
	if len(names) != 2 || names[0] != "bar" || names[1] != "foo" {
		t.Fatalf("expected [bar foo], got %v", names)
	}
}

func TestTreeInstalledOnEmptyTree(t *testing.T) {
	tr := New(t.TempDir(), "5.4")
	names, err := tr.Installed()
	if err != nil {
		t.Fatalf("Installed: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected no installed packages, got %v", names)
	}
}

func TestTreePurgeRemovesRoot(t *testing.T) {
	root := t.TempDir()
	tr := New(root, "5.4")
	if err := os.MkdirAll(tr.Layout("foo").Src, 0755); err != nil {
		t.Fatal(err)
	}

	if err := tr.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, err := os.Stat(tr.RootDir()); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be gone after purge, stat err = %v", tr.RootDir(), err)
	}
	// A second purge on an already-empty tree is not an error.
	if err := tr.Purge(); err != nil {
		t.Fatalf("second Purge: %v", err)
	}
}

func TestTreeLayoutAndBinDir(t *testing.T) {
	tr := New("/tmp/treeroot", "5.1")
	bin := tr.BinDir()
	if bin != filepath.Join("/tmp/treeroot", "5.1", "bin") {
		t.Fatalf("unexpected BinDir: %s", bin)
	}
}
