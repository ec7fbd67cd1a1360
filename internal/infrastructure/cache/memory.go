package cache

import (
	"context"
	"sync"
	"time"

	"github.com/docrecon/docrecon/internal/domain"
)

// cacheItem represents a single item in the cache with expiration
type cacheItem struct {
	Value      []byte
	Expiration time.Time
}

// MemoryCache is a thread-safe in-memory cache with TTL support
type MemoryCache struct {
	data  map[string]cacheItem
	mutex sync.RWMutex
	done  chan struct{}
	once  sync.Once
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	return newMemoryCache(10 * time.Minute)
}

func newMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	cache := &MemoryCache{
		data: make(map[string]cacheItem),
		done: make(chan struct{}),
	}

	go cache.cleanupExpired(cleanupInterval)

	return cache
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.data[key]
	if !exists {
		return nil, domain.ErrCacheMiss
	}

	// Check if expired
	if time.Now().After(item.Expiration) {
		return nil, domain.ErrCacheMiss
	}

	return item.Value, nil
}

// Set stores a copy of value in the cache with TTL
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = cacheItem{
		Value:      append([]byte(nil), value...),
		Expiration: time.Now().Add(ttl),
	}

	return nil
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.data, key)
	return nil
}

// cleanupExpired removes expired entries from the cache periodically
func (c *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mutex.Lock()
			now := time.Now()
			for key, item := range c.data {
				if now.After(item.Expiration) {
					delete(c.data, key)
				}
			}
			c.mutex.Unlock()
		}
	}
}

// Close stops the cleanup goroutine
func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// size returns the current number of items in the cache
func (c *MemoryCache) size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// reset removes all items from the cache
func (c *MemoryCache) reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[string]cacheItem)
}
