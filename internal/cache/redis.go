package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dusk-indust/verity/internal/verify"
)

// RedisStore keeps results in redis with a server-side TTL, for
// deployments where several engine instances should share one cache.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to the redis instance at url
// ("redis://host:port/db"). A non-positive ttl falls back to 5 minutes.
func NewRedisStore(url string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: cache.redisUrl: %v", verify.ErrInvalidConfiguration, err)
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisStore{rdb: redis.NewClient(opt), ttl: ttl}, nil
}

// Get implements Store. A missing key is a miss, not an error.
func (s *RedisStore) Get(ctx context.Context, key string) (*verify.Aggregated, bool, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var result verify.Aggregated
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, err
	}
	return &result, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value *verify.Aggregated) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, data, s.ttl).Err()
}

// Close releases the client's connections.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
