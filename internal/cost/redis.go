package cost

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisLedgerTTL = 48 * time.Hour

// Compile-time interface check
var _ Ledger = (*RedisLedger)(nil)

// RedisLedger stores usage counters in a Redis hash per (user, day).
// TTL expiry replaces the explicit sweep the memory ledger needs.
type RedisLedger struct {
	client *redis.Client
	prefix string
}

// NewRedisLedger creates a Redis-backed ledger.
// Returns error if connection fails.
func NewRedisLedger(url string) (*RedisLedger, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisLedger{
		client: client,
		prefix: "pulse:cost:",
	}, nil
}

// Get returns the usage for (user, day), zero if absent.
func (l *RedisLedger) Get(ctx context.Context, userID, day string) (Usage, error) {
	fields, err := l.client.HGetAll(ctx, l.key(userID, day)).Result()
	if err != nil {
		return Usage{}, fmt.Errorf("reading ledger entry: %w", err)
	}

	var u Usage
	u.ModelCalls = atoiField(fields, "model_calls")
	u.EmbeddingCalls = atoiField(fields, "embedding_calls")
	u.CompletionCalls = atoiField(fields, "completion_calls")
	u.TokensUsed = int64(atoiField(fields, "tokens_used"))
	if v, ok := fields["estimated_cost_usd"]; ok {
		u.EstimatedCostUSD, _ = strconv.ParseFloat(v, 64)
	}

	return u, nil
}

// Add accumulates the delta into the hash for (user, day) atomically.
func (l *RedisLedger) Add(ctx context.Context, userID, day string, delta Usage) error {
	key := l.key(userID, day)

	pipe := l.client.Pipeline()
	if delta.ModelCalls != 0 {
		pipe.HIncrBy(ctx, key, "model_calls", int64(delta.ModelCalls))
	}
	if delta.EmbeddingCalls != 0 {
		pipe.HIncrBy(ctx, key, "embedding_calls", int64(delta.EmbeddingCalls))
	}
	if delta.CompletionCalls != 0 {
		pipe.HIncrBy(ctx, key, "completion_calls", int64(delta.CompletionCalls))
	}
	if delta.TokensUsed != 0 {
		pipe.HIncrBy(ctx, key, "tokens_used", delta.TokensUsed)
	}
	if delta.EstimatedCostUSD != 0 {
		pipe.HIncrByFloat(ctx, key, "estimated_cost_usd", delta.EstimatedCostUSD)
	}
	pipe.Expire(ctx, key, redisLedgerTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing ledger entry: %w", err)
	}

	return nil
}

// Close closes the Redis connection.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}

func (l *RedisLedger) key(userID, day string) string {
	return l.prefix + userID + ":" + day
}

func atoiField(fields map[string]string, name string) int {
	if v, ok := fields[name]; ok {
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}
