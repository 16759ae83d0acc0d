package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dusk-indust/verity/internal/verify"
)

// Store is the backing container for settled results. Implementations are
// best effort: a failing store degrades to a miss, never to a failed
// verification.
type Store interface {
	// Get returns the stored result for key, if present and fresh.
	Get(ctx context.Context, key string) (*verify.Aggregated, bool, error)
	// Set stores a settled result under key for the store's TTL.
	Set(ctx context.Context, key string, value *verify.Aggregated) error
}

// MemoryStore bounds entries by both TTL and LRU capacity in process
// memory. It is the default backend.
type MemoryStore struct {
	lru *lru.LRU[string, *verify.Aggregated]
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a store holding at most maxEntries results, each
// for at most ttl. maxEntries below 1 falls back to 1024 and a
// non-positive ttl to 5 minutes, so a zero config still caches sanely.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	if maxEntries < 1 {
		maxEntries = 1024
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MemoryStore{lru: lru.NewLRU[string, *verify.Aggregated](maxEntries, nil, ttl)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (*verify.Aggregated, bool, error) {
	v, ok := s.lru.Get(key)
	return v, ok, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value *verify.Aggregated) error {
	s.lru.Add(key, value)
	return nil
}

// Len reports the number of live entries, for introspection and tests.
func (s *MemoryStore) Len() int {
	return s.lru.Len()
}
