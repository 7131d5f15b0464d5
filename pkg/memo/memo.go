// Package memo provides a process-lifetime, write-once cache for the results
// of expensive lookups such as registry requests.
package memo

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes successful results by key. Entries are never evicted and
// never overwritten; failed loads are not stored, so a later call retries.
// Concurrent loads of the same key share one call to the loader.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
	group   singleflight.Group
}

// New returns an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{entries: make(map[string]V)}
}

// Get returns the cached value for key, if any.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// GetOrLoad returns the cached value for key or calls load to produce it.
// load runs detached from the cancellation of ctx so that one caller giving up
// does not fail the others waiting on the same key; a cancelled caller stops
// waiting and gets ctx.Err(). Bound load with its own timeout.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := load(loadCtx)
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		if existing, ok := c.entries[key]; ok {
			v = existing
		} else {
			c.entries[key] = v
		}
		c.mu.Unlock()
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
