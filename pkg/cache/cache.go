package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is a byte-oriented cache with per-entry expiration. Implementations
// must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Item represents a cached item with expiration
type Item struct {
	Value      []byte
	Expiration int64
}

// Expired checks if the cache item has expired
func (item Item) Expired() bool {
	if item.Expiration == 0 {
		return false
	}
	return time.Now().UnixNano() > item.Expiration
}

// Memory is a thread-safe in-memory cache with expiration
type Memory struct {
	items           map[string]Item
	mu              sync.RWMutex
	maxItems        int
	cleanupInterval time.Duration
	stop            chan struct{}
}

// NewMemory creates a new in-memory cache. A cleanup goroutine purges expired
// entries every cleanupInterval if it is > 0.
func NewMemory(maxItems int, cleanupInterval time.Duration) *Memory {
	cache := &Memory{
		items:           make(map[string]Item),
		maxItems:        maxItems,
		cleanupInterval: cleanupInterval,
		stop:            make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go cache.startCleanupTimer()
	}

	return cache
}

// Get retrieves an item from the cache
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	item, found := c.items[key]
	c.mu.RUnlock()

	if !found || item.Expired() {
		return nil, false
	}
	return item.Value, true
}

// Set adds an item to the cache with the given TTL
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	var expiration int64
	if ttl > 0 {
		expiration = time.Now().Add(ttl).UnixNano()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxItems > 0 && len(c.items) >= c.maxItems {
		if _, exists := c.items[key]; !exists {
			c.evictOldest()
		}
	}

	c.items[key] = Item{Value: value, Expiration: expiration}
}

// Delete removes an item from the cache
func (c *Memory) Delete(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Close stops the cleanup goroutine
func (c *Memory) Close() {
	close(c.stop)
}

// evictOldest drops the entry closest to expiring. Caller holds the lock.
func (c *Memory) evictOldest() {
	var oldestKey string
	var oldestExp int64 = -1
	for key, item := range c.items {
		if oldestExp == -1 || (item.Expiration > 0 && item.Expiration < oldestExp) {
			oldestKey = key
			oldestExp = item.Expiration
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}

func (c *Memory) startCleanupTimer() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Memory) deleteExpired() {
	now := time.Now().UnixNano()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, item := range c.items {
		if item.Expiration > 0 && now > item.Expiration {
			delete(c.items, key)
		}
	}
}
