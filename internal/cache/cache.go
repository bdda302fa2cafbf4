// Package cache stores connector responses for a bounded time so repeated
// cycles do not spend API quota on identical queries.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/config"
)

// Kind selects the TTL class of a cached response.
type Kind string

const (
	KindSearch Kind = "search"
	KindSocial Kind = "social"
	KindNews   Kind = "news"
)

type Cache interface {
	// Get returns the cached bytes and whether they were present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// Cleanup drops expired entries and returns how many were removed.
	Cleanup(ctx context.Context) (int, error)
	Close() error
}

// TTLs maps kinds to lifetimes.
type TTLs map[Kind]time.Duration

// For returns the lifetime of kind, falling back to the search TTL.
func (t TTLs) For(kind Kind) time.Duration {
	if d, ok := t[kind]; ok && d > 0 {
		return d
	}
	return t[KindSearch]
}

func TTLsFromConfig(c config.CacheConfig) TTLs {
	return TTLs{KindSearch: c.Search, KindSocial: c.Social, KindNews: c.News}
}

// Key joins parts into a cache key.
func Key(parts ...string) string {
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(parts, "|")
}

// New builds the configured cache. Driver "none" returns nil.
func New(c config.CacheConfig) (Cache, error) {
	switch c.Driver {
	case "none":
		return nil, nil
	case "", "memory":
		return NewLRU(c.MaxKeys), nil
	case "redis":
		opts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("cache: parse redis url: %w", err)
		}
		return NewRedis(redis.NewClient(opts), c.Prefix), nil
	default:
		return nil, fmt.Errorf("cache: unknown driver %q", c.Driver)
	}
}
