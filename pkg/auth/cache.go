// Package auth hosts the multi-realm coordinator: the component that drives
// the configured realms in order, merges their authentication verdicts,
// unions authorization info, and hands out immutable security contexts.
package auth

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is how long a cached authorization decision stays valid.
const DefaultCacheTTL = 10 * time.Minute

// DefaultCacheCapacity bounds the number of cached principals.
const DefaultCacheCapacity = 10000

type cacheEntry struct {
	roles []string
	at    time.Time
}

// Cache is a bounded, TTL-based cache of authorization decisions keyed by
// principal. Reads evict stale entries inline; a lazy sweep removes expired
// entries in bulk without blocking readers, triggered only once at least 5%
// of the TTL has elapsed since the previous sweep. The sweep amortization
// bounds worst-case staleness to roughly TTL multiplied by 1.05 without a
// dedicated timer goroutine.
type Cache struct {
	entries *lru.Cache[string, cacheEntry]
	ttl     time.Duration
	now     func() time.Time

	group     singleflight.Group
	lastSweep atomic.Int64 // unix nanos of the last sweep start
	sweeping  atomic.Bool
}

// NewCache creates a cache. Non-positive capacity or TTL fall back to the
// defaults.
func NewCache(capacity int, ttl time.Duration) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	entries, err := lru.New[string, cacheEntry](capacity)
	if err != nil {
		return nil, err
	}
	c := &Cache{entries: entries, ttl: ttl, now: time.Now}
	c.lastSweep.Store(c.now().UnixNano())
	return c, nil
}

func (c *Cache) expired(e cacheEntry, now time.Time) bool {
	return now.Sub(e.at) >= c.ttl
}

// Get returns the cached roles for the principal, or false when absent or
// expired. Expired entries are evicted on read.
func (c *Cache) Get(principal string) ([]string, bool) {
	now := c.now()
	defer c.maybeSweep(now)

	e, ok := c.entries.Get(principal)
	if !ok {
		return nil, false
	}
	if c.expired(e, now) {
		c.entries.Remove(principal)
		return nil, false
	}
	roles := make([]string, len(e.roles))
	copy(roles, e.roles)
	return roles, true
}

// Put stores the roles for the principal and returns the previous value.
// A previous value past its TTL is treated as absent.
func (c *Cache) Put(principal string, roles []string) ([]string, bool) {
	now := c.now()
	defer c.maybeSweep(now)

	stored := make([]string, len(roles))
	copy(stored, roles)

	prev, had := c.entries.Get(principal)
	c.entries.Add(principal, cacheEntry{roles: stored, at: now})
	if !had || c.expired(prev, now) {
		return nil, false
	}
	return prev.roles, true
}

type loadResult struct {
	roles []string
	hit   bool
}

// GetOrLoad returns the cached roles or computes them with fill, collapsing
// concurrent fills for the same principal into a single call. The hit flag
// reflects whether the roles came from the cache, including callers whose
// collapsed call was answered by the double-check inside the flight.
func (c *Cache) GetOrLoad(principal string, fill func() ([]string, error)) ([]string, bool, error) {
	if roles, ok := c.Get(principal); ok {
		return roles, true, nil
	}
	v, err, _ := c.group.Do(principal, func() (any, error) {
		if roles, ok := c.Get(principal); ok {
			return loadResult{roles: roles, hit: true}, nil
		}
		roles, err := fill()
		if err != nil {
			return nil, err
		}
		c.Put(principal, roles)
		return loadResult{roles: roles}, nil
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(loadResult)
	return res.roles, res.hit, nil
}

// Remove drops the principal's entry, forcing the next authorization to
// requery the realms.
func (c *Cache) Remove(principal string) {
	c.entries.Remove(principal)
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.entries.Purge()
}

// Len returns the number of entries, expired ones included until swept.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// maybeSweep starts an asynchronous sweep of expired entries when at least
// 5% of the TTL has elapsed since the last one. Callers never block on it.
func (c *Cache) maybeSweep(now time.Time) {
	last := c.lastSweep.Load()
	if now.UnixNano()-last < c.ttl.Nanoseconds()/20 {
		return
	}
	if !c.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	if !c.sweeping.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.sweeping.Store(false)
		for _, key := range c.entries.Keys() {
			if e, ok := c.entries.Peek(key); ok && c.expired(e, c.now()) {
				c.entries.Remove(key)
			}
		}
	}()
}
