// File: internal/cache/cache.go

// Package cache provides a generic TTL map with LRU eviction, used for
// perception results and reusable workflow data.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// cleanupEvery is the minimum gap between opportunistic expired-entry sweeps.
const cleanupEvery = 60 * time.Second

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	CurrentSize int     `json:"current_size"`
	HitRate     float64 `json:"hit_rate"`
}

type entry[K comparable, V any] struct {
	key         K
	value       V
	createdAt   time.Time
	lastAccess  time.Time
	accessCount int64
	ttl         time.Duration
}

// Cache is a bounded K→V map. Entries expire after their TTL and the least
// recently accessed entry is evicted when the cache is full. All operations
// are safe for concurrent use; get touches recency and removes expired
// entries, so reads mutate.
type Cache[K comparable, V any] struct {
	mu          sync.Mutex
	entries     map[K]*list.Element
	lru         *list.List // front = most recently used
	capacity    int
	defaultTTL  time.Duration
	lastCleanup time.Time

	hits        int64
	misses      int64
	evictions   int64
	expirations int64

	now func() time.Time
}

// New creates a cache holding at most capacity entries, each living for
// defaultTTL unless overridden in PutTTL.
func New[K comparable, V any](capacity int, defaultTTL time.Duration) *Cache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[K, V]{
		entries:     make(map[K]*list.Element),
		lru:         list.New(),
		capacity:    capacity,
		defaultTTL:  defaultTTL,
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Get returns the cached value for key. An expired entry is removed and
// counted as a miss.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maybeCleanupLocked()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if c.expiredLocked(e) {
		c.removeLocked(el)
		c.expirations++
		c.misses++
		return zero, false
	}
	e.lastAccess = c.now()
	e.accessCount++
	c.lru.MoveToFront(el)
	c.hits++
	return e.value, true
}

// Put stores value under key with the default TTL.
func (c *Cache[K, V]) Put(key K, value V) {
	c.PutTTL(key, value, c.defaultTTL)
}

// PutTTL stores value under key with an explicit TTL. When the cache is full
// and key is absent, the least recently accessed entry is evicted first.
func (c *Cache[K, V]) PutTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maybeCleanupLocked()

	now := c.now()
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.createdAt = now
		e.lastAccess = now
		e.ttl = ttl
		c.lru.MoveToFront(el)
		return
	}

	if c.lru.Len() >= c.capacity {
		if back := c.lru.Back(); back != nil {
			c.removeLocked(back)
			c.evictions++
		}
	}

	el := c.lru.PushFront(&entry[K, V]{
		key:        key,
		value:      value,
		createdAt:  now,
		lastAccess: now,
		ttl:        ttl,
	})
	c.entries[key] = el
}

// Delete removes key if present.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
}

// Cleanup drops every expired entry immediately.
func (c *Cache[K, V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupLocked()
}

// Len returns the number of live entries, expired or not.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Clear empties the cache without touching counters.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*list.Element)
	c.lru.Init()
}

// Stats snapshots the counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		CurrentSize: c.lru.Len(),
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

func (c *Cache[K, V]) expiredLocked(e *entry[K, V]) bool {
	return e.ttl > 0 && c.now().Sub(e.createdAt) > e.ttl
}

func (c *Cache[K, V]) removeLocked(el *list.Element) {
	e := el.Value.(*entry[K, V])
	delete(c.entries, e.key)
	c.lru.Remove(el)
}

// maybeCleanupLocked sweeps expired entries when the last sweep is old
// enough. Keeps steady-state operations cheap on busy caches.
func (c *Cache[K, V]) maybeCleanupLocked() {
	if c.now().Sub(c.lastCleanup) <= cleanupEvery {
		return
	}
	c.cleanupLocked()
}

func (c *Cache[K, V]) cleanupLocked() int {
	removed := 0
	for el := c.lru.Back(); el != nil; {
		prev := el.Prev()
		if c.expiredLocked(el.Value.(*entry[K, V])) {
			c.removeLocked(el)
			c.expirations++
			removed++
		}
		el = prev
	}
	c.lastCleanup = c.now()
	return removed
}
