// cache provides the page cache used by the pager.
package cache

import (
	"sync"

	"github.com/golang/groupcache/lru"
)

// LRU is a least recently used page cache keyed by page number. It is safe for
// concurrent use.
type LRU struct {
	mu    sync.Mutex
	cache *lru.Cache
	// evictions counts pages dropped from the cache for any reason.
	evictions int
}

// NewLRU creates a LRU (least recently used) cache. This cache takes a maxSize
// which determines how many pages can be cached. When the maximum size of the
// cache is exceeded, the least recently used page will be evicted.
func NewLRU(maxSize int) *LRU {
	c := &LRU{cache: lru.New(maxSize)}
	c.cache.OnEvicted = func(lru.Key, interface{}) {
		c.evictions += 1
	}
	return c
}

// Get returns the page content and a bool indicating if the key was found.
func (c *LRU) Get(key int) (value []byte, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// Add adds the key to the cache and prioritizes it. If a collision occurs, the
// key will be prioritized and the value will be updated.
func (c *LRU) Add(key int, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, value)
}

// Remove removes the key from the cache. If the key is not found it will be
// ignored.
func (c *LRU) Remove(key int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(key)
}

// Len returns the number of cached pages.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// Evictions returns how many pages were dropped.
func (c *LRU) Evictions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictions
}

// Clear empties the cache.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Clear()
}
