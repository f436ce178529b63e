// Package cache provides the TTL answer cache. Entries are replaced
// wholesale, never partially updated.
package cache

import (
	"context"
	"fmt"

	"github.com/pulseplan/pulse-insights/internal/config"
	"github.com/pulseplan/pulse-insights/internal/pkg/logger"
	"github.com/pulseplan/pulse-insights/internal/synthesis"
)

// Cache stores answers keyed by (user, normalized query, classification).
type Cache interface {
	// Get returns the cached answer for key, or false on miss or expiry.
	Get(ctx context.Context, key string) (*synthesis.Answer, bool)

	// Set stores the answer under key, replacing any existing entry.
	Set(ctx context.Context, key string, answer *synthesis.Answer)

	// Len returns the number of live entries.
	Len() int
}

// New creates a cache from configuration.
func New(cfg config.CacheConfig, log *logger.Logger) (Cache, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryCache(cfg), nil
	case "redis":
		return NewRedisCache(cfg, log)
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}
