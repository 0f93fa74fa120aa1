package lux

import "testing"

func TestListReportsLockedPackagesSortedByName(t *testing.T) {
	ctx, project := newExecTestCtx(t)

	version := project.Manifest.Version
	project.Lock.Packages["bar@1.0.0-1"] = LocalPackage{
		ID:      "bar@1.0.0-1",
		Name:    "bar",
		Version: version,
	}

	rocks := ctx.List(project)
	if len(rocks) != 2 {
		t.Fatalf("expected 2 installed rocks, got %d", len(rocks))
	}
	if rocks[0].Name != "bar" || rocks[1].Name != "foo" {
		t.Fatalf("expected [bar foo], got [%s %s]", rocks[0].Name, rocks[1].Name)
	}
	if rocks[0].Layout.Src == "" {
		t.Fatalf("expected a non-empty resolved layout for bar")
	}
}
