package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisStore keeps entries in Redis and falls back to an in-memory store when
// Redis errors, so a flaky Redis degrades to per-process caching.
type RedisStore struct {
	rdb    *redis.Client
	mem    *MemoryStore
	logger *logrus.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and pings it
func NewRedisStore(ctx context.Context, addr, password string, db int, log *logrus.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{
		rdb:    rdb,
		mem:    NewMemoryStore(time.Minute),
		logger: log,
	}, nil
}

// Ping reports the Redis connection state
func (r *RedisStore) Ping(ctx context.Context) string {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Sprintf("down: %v", err)
	}
	return "up"
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		return b, true, nil
	case errors.Is(err, redis.Nil):
		return r.mem.Get(ctx, key)
	default:
		r.logger.WithError(err).WithField("key", key).Warn("Redis get failed, using memory cache")
		return r.mem.Get(ctx, key)
	}
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("Redis set failed, using memory cache")
		return r.mem.Set(ctx, key, value, ttl)
	}
	return nil
}

// Close shuts down the memory cleaner and the Redis client
func (r *RedisStore) Close() error {
	_ = r.mem.Close()
	return r.rdb.Close()
}
