package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/docrecon/docrecon/internal/domain"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisCache is a domain.CacheRepository backed by Redis, shared by every
// server instance.
type RedisCache struct {
	rdb    redis.UniversalClient
	prefix string
	logger *zap.Logger
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(cfg RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("%w: failed to connect to Redis at %s: %v", domain.ErrCacheUnavailable, cfg.Addr, err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))

	return NewRedisCacheFromClient(rdb, cfg.KeyPrefix, logger), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(rdb redis.UniversalClient, prefix string, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{rdb: rdb, prefix: prefix, logger: logger}
}

func (c *RedisCache) key(key string) string {
	return c.prefix + key
}

// Get retrieves a value by key
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return data, nil
}

// Set stores a value with expiration
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// Delete removes a key
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCacheUnavailable, err)
	}
	return nil
}

// Ping checks if Redis is reachable
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
