// Package lru implements a generic, thread-safe LRU cache with
// optional per-entry TTL, eviction callbacks and hit/miss metrics.
//
// All operations are O(1) except Keys and Clear, which are O(n).
// Expired entries are reaped lazily: an entry past its TTL is removed
// the next time Get, Peek or Keys touches it.
package lru

import (
	"sync"
	"time"
)

// Metrics is a snapshot of cache counters.
type Metrics struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
}

// HitRate returns hits / (hits + misses), or 0 when the cache has
// served no lookups.
func (m Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0
	}
	return float64(m.Hits) / float64(total)
}

// Option configures a Cache at construction time.
type Option[K comparable, V any] func(*Cache[K, V])

// WithTTL sets a default time-to-live applied to every Put. Entries
// stored via PutWithTTL keep their explicit TTL instead.
func WithTTL[K comparable, V any](ttl time.Duration) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.defaultTTL = ttl
	}
}

// WithOnEvict registers a callback invoked whenever an entry leaves
// the cache through capacity eviction or TTL expiry (not Delete or
// Clear). The callback runs with the cache lock held and must not
// call back into the cache.
func WithOnEvict[K comparable, V any](fn func(key K, val V)) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.onEvict = fn
	}
}

// entry is a doubly linked list node holding one cached value.
// A zero expiresAt means the entry never expires.
type entry[K comparable, V any] struct {
	key       K
	val       V
	expiresAt time.Time
	prev      *entry[K, V]
	next      *entry[K, V]
}

// Cache is a generic, thread-safe LRU cache. The list runs from the
// head sentinel (most recently used) to the tail sentinel (least
// recently used).
type Cache[K comparable, V any] struct {
	mu         sync.Mutex
	capacity   int
	defaultTTL time.Duration
	onEvict    func(K, V)
	now        func() time.Time

	items   map[K]*entry[K, V]
	head    *entry[K, V]
	tail    *entry[K, V]
	metrics Metrics
}

// New creates an LRU cache with the given capacity.
// Panics if capacity < 1.
func New[K comparable, V any](capacity int, opts ...Option[K, V]) *Cache[K, V] {
	if capacity < 1 {
		panic("lru: capacity must be >= 1")
	}

	head := &entry[K, V]{}
	tail := &entry[K, V]{}
	head.next = tail
	tail.prev = head

	c := &Cache[K, V]{
		capacity: capacity,
		now:      time.Now,
		items:    make(map[K]*entry[K, V], capacity),
		head:     head,
		tail:     tail,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a value by key and promotes it to most recently used.
// An expired entry counts as a miss and is removed.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.metrics.Misses++
		var zero V
		return zero, false
	}
	if c.expired(e) {
		c.expire(e)
		c.metrics.Misses++
		var zero V
		return zero, false
	}

	c.moveToFront(e)
	c.metrics.Hits++
	return e.val, true
}

// Put inserts or updates a key, applying the cache's default TTL.
// Updating an existing key resets its TTL. If an insert pushes the
// cache over capacity the least recently used entry is dropped; its
// key and value are returned with evicted set to true.
func (c *Cache[K, V]) Put(key K, val V) (evictedKey K, evictedVal V, evicted bool) {
	return c.PutWithTTL(key, val, c.defaultTTL)
}

// PutWithTTL is Put with an explicit time-to-live for this entry.
// A zero ttl stores the entry without expiry.
func (c *Cache[K, V]) PutWithTTL(key K, val V, ttl time.Duration) (evictedKey K, evictedVal V, evicted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if e, ok := c.items[key]; ok {
		e.val = val
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return evictedKey, evictedVal, false
	}

	if len(c.items) >= c.capacity {
		victim := c.tail.prev
		c.unlink(victim)
		delete(c.items, victim.key)
		c.metrics.Evictions++
		if c.onEvict != nil {
			c.onEvict(victim.key, victim.val)
		}
		evictedKey, evictedVal, evicted = victim.key, victim.val, true
	}

	e := &entry[K, V]{key: key, val: val, expiresAt: expiresAt}
	c.items[key] = e
	c.pushFront(e)
	return evictedKey, evictedVal, evicted
}

// Peek retrieves a value without promoting it. Expired entries are
// removed and reported as absent.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.expired(e) {
		c.expire(e)
		var zero V
		return zero, false
	}
	return e.val, true
}

// Delete removes a key. Returns true if the key existed. The OnEvict
// callback is not invoked for explicit deletes.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return false
	}
	c.unlink(e)
	delete(c.items, key)
	return true
}

// Len returns the number of entries currently held, including expired
// entries that have not been lazily reaped yet.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns live keys ordered from most to least recently used.
// Expired entries encountered during the walk are removed.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, len(c.items))
	for cur := c.head.next; cur != c.tail; {
		next := cur.next
		if c.expired(cur) {
			c.expire(cur)
		} else {
			keys = append(keys, cur.key)
		}
		cur = next
	}
	return keys
}

// Clear removes all entries without invoking OnEvict.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.head.next = c.tail
	c.tail.prev = c.head
	c.items = make(map[K]*entry[K, V], c.capacity)
}

// Metrics returns a snapshot of the cache counters.
func (c *Cache[K, V]) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// --- internal operations (caller must hold the lock) ---

func (c *Cache[K, V]) expired(e *entry[K, V]) bool {
	return !e.expiresAt.IsZero() && c.now().After(e.expiresAt)
}

// expire removes an entry that passed its TTL, bumping the expiration
// counter and firing OnEvict.
func (c *Cache[K, V]) expire(e *entry[K, V]) {
	c.unlink(e)
	delete(c.items, e.key)
	c.metrics.Expirations++
	if c.onEvict != nil {
		c.onEvict(e.key, e.val)
	}
}

func (c *Cache[K, V]) unlink(e *entry[K, V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev = nil
	e.next = nil
}

func (c *Cache[K, V]) pushFront(e *entry[K, V]) {
	e.next = c.head.next
	e.prev = c.head
	c.head.next.prev = e
	c.head.next = e
}

func (c *Cache[K, V]) moveToFront(e *entry[K, V]) {
	c.unlink(e)
	c.pushFront(e)
}
