package blockstore

import (
	"container/list"
	"sync"
)

// lruCache is a bounded, in-memory, read-through byte cache keyed by
// object-store path. Adapted from the teacher's core/storage.go diskLRU:
// same index-map-plus-ordering-list shape and eviction rule, swapped from
// on-disk files to in-memory byte slices since the durable copy already
// lives in the object store (internal/objectstore).
type lruCache struct {
	mu    sync.Mutex
	max   int
	index map[string]*list.Element
	order *list.List // front = most recently used
	hits  uint64
	misses uint64
}

type cacheEntry struct {
	key  string
	data []byte
}

func newLRUCache(max int) *lruCache {
	if max <= 0 {
		max = defaultCacheEntries
	}
	return &lruCache{
		max:   max,
		index: make(map[string]*list.Element),
		order: list.New(),
	}
}

const defaultCacheEntries = 4096

// get returns a copy of the cached bytes for key, bumping its recency.
func (c *lruCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits++
	ent := el.Value.(*cacheEntry)
	return append([]byte(nil), ent.data...), true
}

// put inserts or refreshes key, evicting the least-recently-used entry if
// the cache is full.
func (c *lruCache) put(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		c.order.MoveToFront(el)
		el.Value.(*cacheEntry).data = append([]byte(nil), data...)
		return
	}

	if c.order.Len() >= c.max {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.index, oldest.Value.(*cacheEntry).key)
		}
	}

	el := c.order.PushFront(&cacheEntry{key: key, data: append([]byte(nil), data...)})
	c.index[key] = el
}

// invalidate drops key from the cache without writing through, matching
// spec.md 4.B: "writes always bypass [the cache] but invalidate the key".
func (c *lruCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		c.order.Remove(el)
		delete(c.index, key)
	}
}

// stats reports cumulative hit/miss counts, for the status surface.
func (c *lruCache) stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
