package ratelimit

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a shared Redis instance, giving all service
// replicas the same counter state.
type RedisStore struct {
	rdb *goredis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(rdb *goredis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Incr atomically increments the counter and sets its expiry when the key is
// first created, so an abandoned window cleans itself up.
func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
