package secrets

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// CacheConfig configures the resolved-secret cache.
type CacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

// Cache is a size-bounded LRU of resolved secrets with a per-entry TTL.
// A zero TTL disables caching.
type Cache struct {
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// NewCache creates a cache. MaxSize defaults to 128.
func NewCache(cfg CacheConfig) (*Cache, error) {
	size := cfg.MaxSize
	if size <= 0 {
		size = 128
	}
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l, ttl: cfg.TTL, now: time.Now}, nil
}

// Get returns a live entry.
func (c *Cache) Get(name string) (string, bool) {
	if c.ttl <= 0 {
		return "", false
	}
	val, ok := c.lru.Get(name)
	if !ok {
		return "", false
	}
	entry := val.(cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.lru.Remove(name)
		return "", false
	}
	return entry.value, true
}

// Set stores a value.
func (c *Cache) Set(name, value string) {
	if c.ttl <= 0 {
		return
	}
	c.lru.Add(name, cacheEntry{value: value, expiresAt: c.now().Add(c.ttl)})
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.lru.Purge()
}

// Len returns the number of cached entries, expired ones included.
func (c *Cache) Len() int {
	return c.lru.Len()
}
