package cache

import (
	"strings"
	"sync"
	"time"
)

// TTLCache is an in-memory keyed cache whose entries expire after a TTL.
// A background loop sweeps expired entries until Stop is called.
type TTLCache[V any] struct {
	data    map[string]*entry[V]
	ttl     time.Duration
	mu      sync.RWMutex
	cleanup *time.Ticker
	done    chan struct{}
	now     func() time.Time
}

type entry[V any] struct {
	value      V
	expiration time.Time
}

// New creates a cache with the given TTL and sweep interval.
func New[V any](ttl, sweepEvery time.Duration) *TTLCache[V] {
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	c := &TTLCache[V]{
		data:    make(map[string]*entry[V]),
		ttl:     ttl,
		cleanup: time.NewTicker(sweepEvery),
		done:    make(chan struct{}),
		now:     time.Now,
	}

	go c.cleanupLoop()

	return c
}

// Get retrieves a live value from the cache
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V
	e, ok := c.data[key]
	if !ok || c.now().After(e.expiration) {
		return zero, false
	}
	return e.value, true
}

// Set stores a value with the default TTL
func (c *TTLCache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL
func (c *TTLCache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &entry[V]{
		value:      value,
		expiration: c.now().Add(ttl),
	}
}

// Touch pushes the expiration of a live entry forward by the default TTL.
func (c *TTLCache[V]) Touch(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok || c.now().After(e.expiration) {
		return false
	}
	e.expiration = c.now().Add(c.ttl)
	return true
}

// Delete removes a value from the cache
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
}

// DeleteByPrefix removes all entries with keys starting with the given prefix
func (c *TTLCache[V]) DeleteByPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
}

// Len returns the number of stored entries, expired or not.
func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.data)
}

// GetOrSet returns the cached value for key, or computes and stores it.
func (c *TTLCache[V]) GetOrSet(key string, compute func() (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	value, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}

	c.Set(key, value)
	return value, nil
}

// SetIfAbsent stores value unless a live entry exists. It returns the entry
// that ends up in the cache and whether value was stored.
func (c *TTLCache[V]) SetIfAbsent(key string, value V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.data[key]; ok && !c.now().After(e.expiration) {
		return e.value, false
	}
	c.data[key] = &entry[V]{
		value:      value,
		expiration: c.now().Add(c.ttl),
	}
	return value, true
}

func (c *TTLCache[V]) cleanupLoop() {
	for {
		select {
		case <-c.cleanup.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *TTLCache[V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.data {
		if now.After(e.expiration) {
			delete(c.data, key)
		}
	}
}

// Stop stops the cleanup goroutine
func (c *TTLCache[V]) Stop() {
	c.cleanup.Stop()
	close(c.done)
}
