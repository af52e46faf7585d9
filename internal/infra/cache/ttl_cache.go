package cache

import (
	"strings"
	"sync"
	"time"
)

// entry is a cached value with its expiration
type entry[V any] struct {
	value      V
	expiryTime time.Time
}

// TTL is a thread-safe in-memory cache whose entries expire at a fixed time.
type TTL[V any] struct {
	cache map[string]entry[V]
	mutex sync.RWMutex
	now   func() time.Time
}

// NewTTL creates an empty cache
func NewTTL[V any]() *TTL[V] {
	return &TTL[V]{
		cache: make(map[string]entry[V]),
		now:   time.Now,
	}
}

// Get retrieves a value from cache if not expired
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mutex.RLock()
	e, found := c.cache[key]
	c.mutex.RUnlock()

	if found && c.now().Before(e.expiryTime) {
		return e.value, true
	}

	var zero V
	return zero, false
}

// Set stores a value until expiry
func (c *TTL[V]) Set(key string, value V, expiry time.Time) {
	c.mutex.Lock()
	c.cache[key] = entry[V]{
		value:      value,
		expiryTime: expiry,
	}
	c.mutex.Unlock()
}

func (c *TTL[V]) Delete(key string) {
	c.mutex.Lock()
	delete(c.cache, key)
	c.mutex.Unlock()
}

// Clear removes expired entries from cache
func (c *TTL[V]) Clear() {
	now := c.now()
	c.mutex.Lock()
	for key, e := range c.cache {
		if now.After(e.expiryTime) {
			delete(c.cache, key)
		}
	}
	c.mutex.Unlock()
}

// Len counts entries, expired or not, until the next Clear.
func (c *TTL[V]) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.cache)
}

// BuildCacheKey joins key parts with ":".
func BuildCacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}
