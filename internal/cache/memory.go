package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pulseplan/pulse-insights/internal/config"
	"github.com/pulseplan/pulse-insights/internal/synthesis"
)

// Compile-time interface check
var _ Cache = (*MemoryCache)(nil)

type memoryEntry struct {
	answer   synthesis.Answer
	storedAt time.Time
}

// MemoryCache is an in-process answer cache with TTL expiry and an LRU
// bound on entry count. Expired entries are evicted lazily on Get.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	order      []string // LRU order, oldest first
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewMemoryCache creates a memory cache from configuration.
func NewMemoryCache(cfg config.CacheConfig) *MemoryCache {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 1000
	}

	ttl := time.Duration(cfg.TTLMs) * time.Millisecond
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		order:      make([]string, 0, maxEntries),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached answer for key, evicting it if expired.
func (c *MemoryCache) Get(ctx context.Context, key string) (*synthesis.Answer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}

	c.moveToEnd(key)

	// Return a copy to prevent external mutation
	answer := entry.answer
	return &answer, true
}

// Set stores the answer under key, replacing any existing entry and
// evicting the least recently used entries at capacity.
func (c *MemoryCache) Set(ctx context.Context, key string, answer *synthesis.Answer) {
	if answer == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = memoryEntry{answer: *answer, storedAt: c.now()}
		c.moveToEnd(key)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = memoryEntry{answer: *answer, storedAt: c.now()}
	c.order = append(c.order, key)
}

// Len returns the number of entries, including any not yet lazily expired.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// moveToEnd moves a key to the end of the LRU order (must hold lock).
func (c *MemoryCache) moveToEnd(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, key)
			return
		}
	}
}

// removeFromOrder removes a key from the LRU order (must hold lock).
func (c *MemoryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
