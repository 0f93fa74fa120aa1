package registry

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

var versionsBucket = []byte("versions")

// Cache is a boltdb-backed persistent store for registry version listings,
// so that repeated resolutions (and repeated process invocations) don't
// have to re-hit the network for packages whose listing hasn't changed
// since the last sync.
type Cache struct {
	db  *bolt.DB
	ttl time.Duration
}

// OpenCache opens (creating if necessary) a bolt database at path to back
// a registry Cache. ttl is the maximum age of a cached entry before it is
// treated as a miss; zero means cached entries never expire on their own
// (Invalidate must be used instead).
func OpenCache(path string, ttl time.Duration) (*Cache, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening registry cache %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(versionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing registry cache buckets")
	}

	return &Cache{db: db, ttl: ttl}, nil
}

// Close releases the underlying bolt database handle.
func (c *Cache) Close() error { return c.db.Close() }

type cacheRecord struct {
	Entries   []Entry
	CreatedAt time.Time
}

// Get returns the cached entries for key, if present and not expired.
func (c *Cache) Get(key string) ([]Entry, bool, error) {
	var rec cacheRecord
	var found bool

	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(versionsBucket)
		raw := b.Get([]byte(key))
		if raw == nil {
			return nil
		}
		if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&rec); err != nil {
			return errors.Wrap(err, "decoding cached registry entry")
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return nil, false, err
	}

	if c.ttl > 0 && time.Since(rec.CreatedAt) > c.ttl {
		return nil, false, nil
	}
	return rec.Entries, true, nil
}

// Put stores entries for key, overwriting any previous value.
func (c *Cache) Put(key string, entries []Entry) error {
	var buf bytes.Buffer
	rec := cacheRecord{Entries: entries, CreatedAt: time.Now()}
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return errors.Wrap(err, "encoding registry entry for cache")
	}

	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(versionsBucket).Put([]byte(key), buf.Bytes())
	})
}

// Delete removes any cached listing for key.
func (c *Cache) Delete(key string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(versionsBucket).Delete([]byte(key))
	})
}
