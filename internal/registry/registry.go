// Package registry implements the remote package database: a merged,
// priority-ordered view over one or more registries, with a persistent
// on-disk cache of their version indices.
package registry

import (
	"sort"
	"sync"

	"github.com/armon/go-radix"
	"github.com/pkg/errors"

	"github.com/lux-pm/lux/internal/resolver"
)

// Priority orders registries when the same package name is available from
// more than one: primary beats extra, extra beats dev, unless a manifest's
// only_sources filter overrides the search entirely.
type Priority int

const (
	PriorityPrimary Priority = iota
	PriorityExtra
	PriorityDev
)

// Entry is one available (name, version) pair as reported by a single
// registry, along with enough information to fetch its rockspec.
type Entry struct {
	Name     resolver.PackageName
	Version  resolver.PackageVersion
	Source   string // archive URL, or "git+<url>"
	Registry string // registry identifier this entry came from
	Priority Priority
}

// Server describes one registry endpoint the database merges.
type Server struct {
	Name     string
	BaseURL  string
	Priority Priority
}

// Client is implemented by a single registry's transport. The built-in
// implementation speaks the HTTPS archive-index protocol; tests
// substitute an in-memory Client.
type Client interface {
	// ListVersions returns every version of name known to this registry.
	ListVersions(name resolver.PackageName) ([]Entry, error)
	// Search returns every package whose name matches a (possibly partial)
	// query string.
	Search(query string) ([]resolver.PackageName, error)
	// FetchRockspec returns the raw legacy *.rockspec document describing
	// name at version, the interoperable format every registry in this
	// ecosystem publishes regardless of what format the package's own
	// project uses locally. The registry layer has no opinion on its
	// syntax; callers parse it themselves.
	FetchRockspec(name resolver.PackageName, version resolver.PackageVersion) ([]byte, error)
}

// DB is the merged, priority-ordered view over a set of registries.
// It is safe for concurrent use.
type DB struct {
	servers     []Server
	clients     map[string]Client
	onlySources map[string]bool // nil/empty means no restriction

	mu    sync.RWMutex
	index *radix.Tree // PackageName (normalized) -> []Entry, merged across registries
	cache *Cache
}

// New builds a DB over the given servers and their clients, keyed by
// Server.Name. cache may be nil to disable on-disk index caching.
func New(servers []Server, clients map[string]Client, cache *Cache) *DB {
	return &DB{
		servers: servers,
		clients: clients,
		index:   radix.New(),
		cache:   cache,
	}
}

// WithOnlySources restricts db's resolution to entries from the named
// registries, overriding the normal priority search entirely: a package
// available only from a registry outside the set is treated as not
// found. An empty names list clears the restriction.
func (db *DB) WithOnlySources(names []string) *DB {
	if len(names) == 0 {
		db.onlySources = nil
		return db
	}
	only := make(map[string]bool, len(names))
	for _, n := range names {
		only[n] = true
	}
	db.onlySources = only
	return db
}

// ListVersions returns every known version of name across all registries,
// merged and sorted by (version desc, revision desc, registry priority
// asc). The result is cached in-memory for the lifetime of the DB and,
// if a Cache was provided, persisted across processes.
func (db *DB) ListVersions(name resolver.PackageName) ([]Entry, error) {
	key := string(name.Normalize())

	db.mu.RLock()
	if v, ok := db.index.Get(key); ok {
		db.mu.RUnlock()
		return v.([]Entry), nil
	}
	db.mu.RUnlock()

	if db.cache != nil {
		if entries, ok, err := db.cache.Get(key); err != nil {
			return nil, errors.Wrap(err, "reading registry cache")
		} else if ok {
			db.mu.Lock()
			db.index.Insert(key, entries)
			db.mu.Unlock()
			return entries, nil
		}
	}

	var merged []Entry
	for _, srv := range db.servers {
		if db.onlySources != nil && !db.onlySources[srv.Name] {
			continue
		}
		cl, ok := db.clients[srv.Name]
		if !ok {
			continue
		}
		entries, err := cl.ListVersions(name)
		if err != nil {
			return nil, errors.Wrapf(err, "listing versions of %s from registry %s", name, srv.Name)
		}
		for i := range entries {
			entries[i].Registry = srv.Name
			entries[i].Priority = srv.Priority
		}
		merged = append(merged, entries...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if c := merged[j].Version.Compare(merged[i].Version); c != 0 {
			return c < 0 // descending by version
		}
		return merged[i].Priority < merged[j].Priority
	})

	db.mu.Lock()
	db.index.Insert(key, merged)
	db.mu.Unlock()

	if db.cache != nil {
		if err := db.cache.Put(key, merged); err != nil {
			return nil, errors.Wrap(err, "writing registry cache")
		}
	}

	return merged, nil
}

// Best returns the highest-priority entry satisfying constraint, or false
// if none match. Ties are broken by version desc, then revision desc
// (folded into PackageVersion.Compare), then registry priority.
func (db *DB) Best(name resolver.PackageName, constraint resolver.VersionConstraint) (Entry, bool, error) {
	entries, err := db.ListVersions(name)
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if constraint.Matches(e.Version) {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// ResolveBest returns Best's result in the (source, version, ok, err)
// shape of resolver.RemotePackageDB's Best method. *DB itself does not
// satisfy that interface, since its own Best returns an Entry.
func (db *DB) ResolveBest(name resolver.PackageName, constraint resolver.VersionConstraint) (string, resolver.PackageVersion, bool, error) {
	e, ok, err := db.Best(name, constraint)
	if err != nil || !ok {
		return "", resolver.PackageVersion{}, false, err
	}
	return e.Source, e.Version, true, nil
}

// FetchRockspec locates which registry published name@version and
// delegates to its client. ListVersions is consulted first so this
// respects the same merged, cached index Best/ResolveBest use.
func (db *DB) FetchRockspec(name resolver.PackageName, version resolver.PackageVersion) ([]byte, error) {
	entries, err := db.ListVersions(name)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Version.String() != version.String() {
			continue
		}
		cl, ok := db.clients[e.Registry]
		if !ok {
			return nil, errors.Errorf("no client registered for registry %s", e.Registry)
		}
		return cl.FetchRockspec(name, version)
	}
	return nil, errors.Errorf("%s %s not found in any registry", name, version)
}

// Search returns every package name across registries whose name matches
// query, via the registries' own Search, deduped by normalized name
// through a radix tree built for this call alone, and sorted by name.
func (db *DB) Search(query string) ([]resolver.PackageName, error) {
	seen := radix.New()
	var out []resolver.PackageName
	for _, srv := range db.servers {
		if db.onlySources != nil && !db.onlySources[srv.Name] {
			continue
		}
		cl, ok := db.clients[srv.Name]
		if !ok {
			continue
		}
		names, err := cl.Search(query)
		if err != nil {
			return nil, errors.Wrapf(err, "searching registry %s", srv.Name)
		}
		for _, n := range names {
			key := string(n.Normalize())
			if _, had := seen.Insert(key, true); !had {
				out = append(out, n)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Invalidate drops any cached version listing for name, forcing the next
// ListVersions call to hit the registries again.
func (db *DB) Invalidate(name resolver.PackageName) {
	key := string(name.Normalize())
	db.mu.Lock()
	db.index.Delete(key)
	db.mu.Unlock()
	if db.cache != nil {
		_ = db.cache.Delete(key)
	}
}
