// Package pagecache wraps dgraph-io/ristretto as the decoded-page and
// revprop cache fsfs keeps in front of its on-disk indexes, grounded
// on spec.md §7's caching invariant and, for key hashing, the
// cespare/xxhash/v2 usage shown by rpcpool's compactindex reader in
// the retrieved examples. Revprop entries key on the revprop
// generation (invariant 7 of spec.md §1) so a cache populated by an
// older writer is never served after a revprop mutation bumps the
// generation.
package pagecache

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto"

	"github.com/apache/subversion-sub028/pkg/fsfs/fsfserr"
)

// PageKey identifies one decoded L2P page within one revision file.
type PageKey struct {
	FileID    string // typically the revision file's path or pack shard id
	PageIndex int64
}

// RevpropKey identifies one revision's cached property list, scoped
// to the generation it was read under so a later mutation's
// generation bump naturally misses the cache instead of needing
// explicit invalidation.
type RevpropKey struct {
	Revision   int64
	Generation uint64
}

func hashPageKey(k PageKey) uint64 {
	var buf []byte
	buf = append(buf, 'p')
	buf = append(buf, k.FileID...)
	buf = append(buf, 0)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(k.PageIndex))
	return xxhash.Sum64(buf)
}

func hashRevpropKey(k RevpropKey) uint64 {
	var buf []byte
	buf = append(buf, 'r')
	buf = binary.LittleEndian.AppendUint64(buf, uint64(k.Revision))
	buf = binary.LittleEndian.AppendUint64(buf, k.Generation)
	return xxhash.Sum64(buf)
}

// Cache is a single ristretto-backed cache shared by page and revprop
// lookups; their keys never collide because each is hashed through a
// distinct prefix-tagged encoding.
type Cache struct {
	c *ristretto.Cache
}

// New returns a Cache with the given approximate capacity in cost
// units (spec.md's config.MemoryCacheSize, interpreted as bytes since
// costs below are set to each cached value's encoded length).
func New(maxCost int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxCost / 100 * 10, // ~10x expected entry count, per ristretto's sizing guidance
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fsfserr.IOError{Op: "pagecache.New", Err: err}
	}
	return &Cache{c: c}, nil
}

// GetPage returns a previously cached decoded page, if present.
func (c *Cache) GetPage(key PageKey) ([]byte, bool) {
	v, ok := c.c.Get(hashPageKey(key))
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// SetPage caches a decoded page's bytes.
func (c *Cache) SetPage(key PageKey, data []byte) {
	c.c.Set(hashPageKey(key), data, int64(len(data)))
}

// DeletePage evicts a cached page, for the rare callers (index repair)
// that overwrite a file in place instead of writing a new one under a
// new path.
func (c *Cache) DeletePage(key PageKey) {
	c.c.Del(hashPageKey(key))
}

// GetRevprops returns a previously cached serialized property list,
// if present at the given generation.
func (c *Cache) GetRevprops(key RevpropKey) ([]byte, bool) {
	v, ok := c.c.Get(hashRevpropKey(key))
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// SetRevprops caches a revision's serialized property list under the
// generation it was read at.
func (c *Cache) SetRevprops(key RevpropKey, data []byte) {
	c.c.Set(hashRevpropKey(key), data, int64(len(data)))
}

// Wait blocks until all pending Set calls have been applied,
// exposed for tests that need deterministic cache contents.
func (c *Cache) Wait() { c.c.Wait() }

// Close releases the cache's background goroutines.
func (c *Cache) Close() { c.c.Close() }
