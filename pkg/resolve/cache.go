// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache stores resolution results keyed by requested scope set. Concurrent
// lookups of one key trigger a single computation.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*Result
	generation uint64
	group      singleflight.Group
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Result)}
}

// GetOrCompute returns the cached result for key, or runs compute and
// stores its result. Errors are not cached. A result computed before an
// Invalidate is returned to its callers but never stored.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (*Result, error)) (*Result, error) {
	return c.GetOrComputeAt(ctx, c.Generation(), key, compute)
}

// GetOrComputeAt is GetOrCompute for a caller that read its inputs at
// generation gen. Once the cache has moved past gen, compute runs
// uncached and nothing is stored or returned from the cache.
func (c *Cache) GetOrComputeAt(ctx context.Context, gen uint64, key string, compute func(context.Context) (*Result, error)) (*Result, error) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		cacheRequestsTotal.WithLabelValues(cacheMiss).Inc()
		return compute(ctx)
	}
	if r, ok := c.entries[key]; ok {
		c.mu.Unlock()
		cacheRequestsTotal.WithLabelValues(cacheHit).Inc()
		return r, nil
	}
	c.mu.Unlock()
	cacheRequestsTotal.WithLabelValues(cacheMiss).Inc()

	flight := strconv.FormatUint(gen, 10) + "/" + key
	for {
		v, err, _ := c.group.Do(flight, func() (any, error) {
			// A flight that finished between the lookup above and Do has
			// already stored the result.
			c.mu.Lock()
			if r, ok := c.entries[key]; ok && c.generation == gen {
				c.mu.Unlock()
				return r, nil
			}
			c.mu.Unlock()

			r, err := compute(ctx)
			if err != nil {
				return nil, err
			}
			c.mu.Lock()
			if c.generation == gen {
				c.entries[key] = r
			}
			c.mu.Unlock()
			return r, nil
		})
		// The flight ran with another caller's context; its cancellation
		// is not ours.
		if err != nil && isContextError(err) && ctx.Err() == nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		return v.(*Result), nil
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Generation returns a token that changes on every Invalidate.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Get returns the cached result for key.
func (c *Cache) Get(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[key]
	return r, ok
}

// Invalidate drops every entry.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	clear(c.entries)
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
