// Package cache provides a small engine-lifetime cache for realised atom
// postings, keyed by xxhash so repeated queries do not re-decode the same
// buffer-file entries (SPEC_FULL §2 row 14, §4.4). Entries hold the
// decoded postings themselves (copies of the buffer bytes, not views into
// the backing readers), and nothing is ever evicted. Break masks are not
// stored here; the engine recomputes them per query.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/latintext/corpusquery/internal/posting"
)

// DefaultMaxEntries bounds the cache's resident entry count; once it is
// reached, Put stores no new keys (existing entries are never evicted).
const DefaultMaxEntries = 4096

// PostingCache is a lock-free, size-bounded cache from a string key
// (the engine uses "<category>:<value>") to a realised Posting.
type PostingCache struct {
	entries sync.Map // map[uint64]cacheEntry
	count   int64
	maxSize int64

	hits   int64
	misses int64
}

type cacheEntry struct {
	key string // retained for debugging/collision detection
	p   posting.Posting
}

// New returns an empty cache bounded to maxEntries resident entries.
// maxEntries <= 0 uses DefaultMaxEntries.
func New(maxEntries int) *PostingCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &PostingCache{maxSize: int64(maxEntries)}
}

func hashKey(key string) uint64 {
	return xxhash.Sum64String(key)
}

// Get looks up key, reporting whether it was present.
func (c *PostingCache) Get(key string) (posting.Posting, bool) {
	v, ok := c.entries.Load(hashKey(key))
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return posting.Posting{}, false
	}
	entry := v.(cacheEntry)
	if entry.key != key {
		// Hash collision between distinct keys: treat as a miss rather
		// than risk returning the wrong posting.
		atomic.AddInt64(&c.misses, 1)
		return posting.Posting{}, false
	}
	atomic.AddInt64(&c.hits, 1)
	return entry.p, true
}

// Put stores p under key. If the cache is at capacity, the new entry is
// simply not stored — this is an engine-lifetime decode cache, not a
// correctness-critical structure, so a cheap no-eviction cap is enough.
func (c *PostingCache) Put(key string, p posting.Posting) {
	h := hashKey(key)
	if _, loaded := c.entries.Load(h); loaded {
		c.entries.Store(h, cacheEntry{key: key, p: p})
		return
	}
	if atomic.LoadInt64(&c.count) >= c.maxSize {
		return
	}
	c.entries.Store(h, cacheEntry{key: key, p: p})
	atomic.AddInt64(&c.count, 1)
}

// Stats reports cumulative hit/miss counters.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int64
}

func (c *PostingCache) Stats() Stats {
	return Stats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
		Size:   atomic.LoadInt64(&c.count),
	}
}
