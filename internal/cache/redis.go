package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulseplan/pulse-insights/internal/config"
	"github.com/pulseplan/pulse-insights/internal/pkg/logger"
	"github.com/pulseplan/pulse-insights/internal/synthesis"
)

// Compile-time interface check
var _ Cache = (*RedisCache)(nil)

// RedisCache stores answers as JSON values with TTL expiry. Redis owns
// both expiry and memory bounds, so there is no LRU bookkeeping here.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCache creates a Redis-backed answer cache.
// Returns error if connection fails.
func NewRedisCache(cfg config.CacheConfig, log *logger.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	ttl := time.Duration(cfg.TTLMs) * time.Millisecond
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &RedisCache{
		client: client,
		prefix: "pulse:answer:",
		ttl:    ttl,
		log:    log,
	}, nil
}

// Get returns the cached answer for key. Read or decode failures are
// treated as misses.
func (c *RedisCache) Get(ctx context.Context, key string) (*synthesis.Answer, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("Cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var answer synthesis.Answer
	if err := json.Unmarshal(data, &answer); err != nil {
		c.log.Warn("Cache entry decode failed", "key", key, "error", err)
		return nil, false
	}

	return &answer, true
}

// Set stores the answer under key with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, answer *synthesis.Answer) {
	if answer == nil {
		return
	}

	data, err := json.Marshal(answer)
	if err != nil {
		c.log.Warn("Cache entry encode failed", "key", key, "error", err)
		return
	}

	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.log.Warn("Cache write failed", "key", key, "error", err)
	}
}

// Len returns the number of cached answers.
func (c *RedisCache) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	keys, err := c.client.Keys(ctx, c.prefix+"*").Result()
	if err != nil {
		return 0
	}
	return len(keys)
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
