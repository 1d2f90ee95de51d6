// Package cache provides a bounded, thread-safe LRU cache used as a hot
// front for the memory store.
package cache

import (
	"container/list"
	"sync"

	"go.uber.org/zap"
)

// LRU is a fixed-capacity least-recently-used cache. The most recently used
// entry sits at the front of the list; eviction takes from the back.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	items    map[K]*list.Element
	lruList  *list.List
	capacity int

	hits      int64
	misses    int64
	evictions int64

	logger *zap.Logger
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// NewLRU creates a cache holding at most capacity entries. A capacity below
// one is treated as one.
func NewLRU[K comparable, V any](capacity int, logger *zap.Logger) *LRU[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LRU[K, V]{
		items:    make(map[K]*list.Element),
		lruList:  list.New(),
		capacity: capacity,
		logger:   logger,
	}
}

// Get returns the cached value and promotes it to most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}

	c.lruList.MoveToFront(el)
	c.hits++
	return el.Value.(*entry[K, V]).value, true
}

// Put inserts or refreshes key at the front, evicting the least recently
// used entry when the cache is full. It reports whether an eviction happened.
func (c *LRU[K, V]) Put(key K, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry[K, V]).value = value
		c.lruList.MoveToFront(el)
		return false
	}

	evicted := false
	if c.lruList.Len() >= c.capacity {
		if oldest := c.lruList.Back(); oldest != nil {
			old := oldest.Value.(*entry[K, V])
			c.lruList.Remove(oldest)
			delete(c.items, old.key)
			c.evictions++
			evicted = true
			c.logger.Debug("Evicted cache entry", zap.Any("key", old.key))
		}
	}

	c.items[key] = c.lruList.PushFront(&entry[K, V]{key: key, value: value})
	return evicted
}

// Remove deletes key if present.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.lruList.Remove(el)
	delete(c.items, key)
	return true
}

// Contains reports presence without touching recency or stats.
func (c *LRU[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Keys returns the cached keys from most to least recently used.
func (c *LRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, c.lruList.Len())
	for el := c.lruList.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	return keys
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}

// Purge drops every entry. Statistics are kept.
func (c *LRU[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*list.Element)
	c.lruList.Init()
}

// Stats returns cache statistics
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	hitRate := float64(0)
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Items:     c.lruList.Len(),
		Capacity:  c.capacity,
		HitRate:   hitRate,
	}
}

// Stats holds cache statistics
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Items     int     `json:"items"`
	Capacity  int     `json:"capacity"`
	HitRate   float64 `json:"hitRate"`
}
