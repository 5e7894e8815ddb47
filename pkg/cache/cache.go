// Package cache provides a bounded LRU cache keyed by content hash.
// The execution engine uses it to keep transpiled programs for bundles it
// has already seen.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Cache defines the interface for a cache with basic operations.
type Cache interface {
	// Get retrieves a value by key.
	// Returns (value, true) if found, (nil, false) otherwise.
	Get(key string) (interface{}, bool)

	// Set stores a key-value pair in the cache.
	// If the cache is full, LRU eviction will occur.
	Set(key string, value interface{})

	// Len returns the number of entries in the cache.
	Len() int

	// Stats returns a copy of the hit/miss counters.
	Stats() Stats
}

// HashKey returns the SHA-256 hex digest of text, used as a cache key.
func HashKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Stats holds hit/miss counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// LRUCache is an in-memory LRU cache.
type LRUCache struct {
	mu      sync.Mutex
	items   map[string]*listItem
	lru     *list // doubly-linked list (most recent at front)
	maxSize int
	stats   Stats
	onEvict func(key string, value interface{})
}

// listItem is an item in the doubly-linked list.
type listItem struct {
	key   string
	value interface{}
	prev  *listItem
	next  *listItem
}

// list represents a doubly-linked list.
type list struct {
	head *listItem // most recently accessed
	tail *listItem // least recently accessed
}

func (l *list) unlink(item *listItem) {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		l.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		l.tail = item.prev
	}
	item.prev, item.next = nil, nil
}

func (l *list) pushFront(item *listItem) {
	item.next = l.head
	item.prev = nil
	if l.head != nil {
		l.head.prev = item
	}
	l.head = item
	if l.tail == nil {
		l.tail = item
	}
}

func (l *list) moveToFront(item *listItem) {
	if item == l.head {
		return
	}
	l.unlink(item)
	l.pushFront(item)
}

// Options configures the LRU cache.
type Options struct {
	// MaxSize is the maximum number of entries.
	// 0 means unlimited.
	MaxSize int

	// OnEvict is called when an entry is evicted.
	OnEvict func(key string, value interface{})
}

// New creates a new LRU cache with the given options.
func New(opts Options) *LRUCache {
	return &LRUCache{
		items:   make(map[string]*listItem),
		lru:     &list{},
		maxSize: opts.MaxSize,
		onEvict: opts.OnEvict,
	}
}

// Get retrieves a value from the cache.
func (c *LRUCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		c.stats.Misses++
		return nil, false
	}

	c.stats.Hits++
	c.lru.moveToFront(item)
	return item.value, true
}

// Set stores a value in the cache.
func (c *LRUCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, exists := c.items[key]; exists {
		item.value = value
		c.lru.moveToFront(item)
		return
	}

	item := &listItem{key: key, value: value}
	c.items[key] = item
	c.lru.pushFront(item)

	for c.maxSize > 0 && len(c.items) > c.maxSize {
		victim := c.lru.tail
		c.lru.unlink(victim)
		delete(c.items, victim.key)
		c.stats.Evictions++
		if c.onEvict != nil {
			c.onEvict(victim.key, victim.value)
		}
	}
}

// Len returns the number of entries.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a copy of the hit/miss counters.
func (c *LRUCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
