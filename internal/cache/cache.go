// Package cache deduplicates verification work: concurrent identical
// requests collapse into a single dispatch, and settled results are served
// from a TTL-bounded store until they expire.
package cache

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/dusk-indust/verity/internal/verify"
)

// Fetch computes a result on a cache miss.
type Fetch func(ctx context.Context) (*verify.Aggregated, error)

// Cache coalesces and stores verification results by key. It is agnostic
// about what produces the results; the orchestration layer supplies the
// key and the fetch function.
type Cache struct {
	store  Store
	group  singleflight.Group
	logger *slog.Logger
}

// New wraps store. A nil logger discards.
func New(store Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{store: store, logger: logger}
}

// Do returns the stored result for key when one is fresh, marked as a
// cache hit. Otherwise concurrent callers for the same key collapse into
// one fetch; the settled result is stored and every waiter receives its
// own copy. Errors from fetch are returned to every waiter and nothing is
// stored. Store failures degrade to a miss and are only logged.
func (c *Cache) Do(ctx context.Context, key string, fetch Fetch) (*verify.Aggregated, error) {
	if hit, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warn("cache read failed", "key", key, "cause", err)
	} else if ok {
		return hit.AsCacheHit(), nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		result, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(ctx, key, result); err != nil {
			c.logger.Warn("cache write failed", "key", key, "cause", err)
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	// Every caller, the executor included, gets a deep copy: the settled
	// pointer lives on in the store and in concurrent waiters, and none
	// of them may see a neighbor's mutations.
	return v.(*verify.Aggregated).Clone(), nil
}

// Forget drops the in-flight coalescing entry for key, forcing the next
// call to fetch anew. Stored values are unaffected.
func (c *Cache) Forget(key string) {
	c.group.Forget(key)
}
