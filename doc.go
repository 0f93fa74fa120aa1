// Package lux resolves a Lua project's declared dependencies against one
// or more rock registries, installs the resulting package set into a
// versioned tree, and keeps a lockfile in sync with both the manifest and
// whatever is actually on disk.
//
// The pieces are layered the way the rest of this module's internal
// packages are: internal/config builds the frozen per-invocation Config,
// internal/registry and internal/resolver turn a manifest's requirements
// into a Graph, internal/fetch and internal/build turn that Graph's nodes
// into populated internal/tree layouts, and the root package ties all of
// it to a Project's lux.toml/lux-lock.json pair through Syncer.
package lux
