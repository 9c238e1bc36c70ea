package blob

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/itakecare/leazr-docgen/config"
	"github.com/itakecare/leazr-docgen/logger"
)

const cachePrefix = "docgen:blob:"

// Cacher is the subset of *redis.Client used by Cache.
type Cacher interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Cache is a read-through cache in front of another Store. Cache failures
// are logged and never fail a fetch.
type Cache struct {
	next   Store
	rdb    Cacher
	ttl    time.Duration
	logger *zap.Logger
}

// NewCache wraps next with rdb. Entries expire after ttl.
func NewCache(next Store, rdb Cacher, ttl time.Duration, log *zap.Logger) *Cache {
	return &Cache{next: next, rdb: rdb, ttl: ttl, logger: logger.OrNop(log).Named("blob.cache")}
}

// NewRedisClient builds a client from cfg.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.PoolSize / 2,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
}

// Fetch serves ref from redis when cached, otherwise from the next store,
// caching the result. Redis failures only cost the cache.
func (c *Cache) Fetch(ctx context.Context, ref string) ([]byte, error) {
	key := cachePrefix + ref
	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		return data, nil
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("cache read failed", zap.String("ref", ref), zap.Error(err))
	}

	data, err = c.next.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("ref", ref), zap.Error(err))
	}
	return data, nil
}
