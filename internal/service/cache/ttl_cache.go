package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	v        V
	inserted time.Time
	exp      time.Time
}

// TTLCache is an in-process map whose entries expire after a fixed TTL.
// Writes replace the whole entry; readers never see a partial value.
type TTLCache[V any] struct {
	mu  sync.RWMutex
	m   map[string]entry[V]
	ttl time.Duration
	now func() time.Time
}

func NewTTLCache[V any](ttl time.Duration) *TTLCache[V] {
	return &TTLCache[V]{m: make(map[string]entry[V]), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (c *TTLCache[V]) WithClock(now func() time.Time) *TTLCache[V] {
	c.now = now
	return c
}

// Get returns the value for key while its age is below the TTL.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	var zero V
	if !ok {
		return zero, false
	}
	if !e.exp.IsZero() && !c.now().Before(e.exp) {
		c.mu.Lock()
		if cur, ok := c.m[key]; ok && cur.exp.Equal(e.exp) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.v, true
}

// Age returns how long ago key was written.
func (c *TTLCache[V]) Age(key string) (time.Duration, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	return c.now().Sub(e.inserted), true
}

// Set overwrites key. A non-positive TTL on the cache means no expiry.
func (c *TTLCache[V]) Set(key string, v V) {
	now := c.now()
	var exp time.Time
	if c.ttl > 0 {
		exp = now.Add(c.ttl)
	}
	c.mu.Lock()
	c.m[key] = entry[V]{v: v, inserted: now, exp: exp}
	c.mu.Unlock()
}

func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Purge drops every expired entry and returns how many were removed.
func (c *TTLCache[V]) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.m {
		if !e.exp.IsZero() && !now.Before(e.exp) {
			delete(c.m, k)
			n++
		}
	}
	return n
}
