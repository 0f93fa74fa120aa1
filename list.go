package lux

import (
	"sort"

	"github.com/lux-pm/lux/internal/resolver"
	"github.com/lux-pm/lux/internal/tree"
)

// InstalledRock is one lockfile entry reported back with its resolved
// on-disk layout, the way a `status`-style listing pairs project state
// with where it actually lives.
type InstalledRock struct {
	Name       resolver.PackageName
	Version    resolver.PackageVersion
	Entrypoint bool
	Layout     tree.RockLayout
}

// List reports every package project's lockfile currently records,
// sorted by name then version, alongside the RockLayout it was installed
// into. It reads only the lockfile already loaded on project — callers
// that want the raw on-disk view regardless of what the lockfile
// believes should use tree.Tree.Installed directly.
func (c *Ctx) List(project *Project) []InstalledRock {
	tr := tree.New(c.Config.TreeRoot, c.ABIVersion())

	var rocks []InstalledRock
	if project.Lock != nil {
		for _, pkg := range project.Lock.Packages {
			rocks = append(rocks, InstalledRock{
				Name:       pkg.Name,
				Version:    pkg.Version,
				Entrypoint: pkg.Entrypoint,
				Layout:     tr.Layout(pkg.Name),
			})
		}
	}

	sort.Slice(rocks, func(i, j int) bool {
		if rocks[i].Name != rocks[j].Name {
			return rocks[i].Name < rocks[j].Name
		}
		return rocks[i].Version.String() < rocks[j].Version.String()
	})
	return rocks
}
