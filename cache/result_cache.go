// Package cache memoizes query results per query class.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"post-search/domain"
	"post-search/logger"
	appOtel "post-search/utils/otel"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Tier is a shared second-level cache, such as Redis.
type Tier interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Purge(ctx context.Context, keyPrefix string) error
}

// ClassPolicy bounds one query class.
type ClassPolicy struct {
	TTL      time.Duration
	Capacity int
}

type Config struct {
	Policies map[domain.QueryClass]ClassPolicy
	// StaleCapacity bounds the last-good store used while the index is down.
	StaleCapacity int
}

func DefaultConfig() Config {
	return Config{
		Policies: map[domain.QueryClass]ClassPolicy{
			domain.ClassSearch:     {TTL: 5 * time.Minute, Capacity: 1000},
			domain.ClassSuggest:    {TTL: 10 * time.Minute, Capacity: 2000},
			domain.ClassPopular:    {TTL: time.Hour, Capacity: 64},
			domain.ClassCategories: {TTL: time.Hour, Capacity: 8},
		},
		StaleCapacity: 2000,
	}
}

// ResultCache is a per-class LRU with TTL and per-key duplicate suppression.
// A miss or eviction only costs latency; values are never mutated once stored.
type ResultCache struct {
	policies map[domain.QueryClass]ClassPolicy
	fresh    map[domain.QueryClass]*expirable.LRU[string, any]
	stale    *lru.Cache[string, any]
	group    singleflight.Group
	tier     Tier
}

func New(cfg Config, tier Tier) (*ResultCache, error) {
	stale, err := lru.New[string, any](max(cfg.StaleCapacity, 1))
	if err != nil {
		return nil, fmt.Errorf("create stale store: %w", err)
	}

	c := &ResultCache{
		policies: cfg.Policies,
		fresh:    make(map[domain.QueryClass]*expirable.LRU[string, any], len(cfg.Policies)),
		stale:    stale,
		tier:     tier,
	}
	for class, p := range cfg.Policies {
		c.fresh[class] = expirable.NewLRU[string, any](max(p.Capacity, 1), nil, p.TTL)
	}
	return c, nil
}

// Lookup returns the cached value for key or computes it. Concurrent callers
// for the same class and key share a single compute and receive the same value.
func Lookup[T any](ctx context.Context, c *ResultCache, class domain.QueryClass, key domain.QueryFingerprint, compute func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	fresh, ok := c.fresh[class]
	if !ok {
		return compute(ctx)
	}
	k := string(key)

	if v, ok := fresh.Get(k); ok {
		appOtel.Metrics.RecordCache(ctx, class, "hit")
		return v.(T), nil
	}

	v, err, _ := c.group.Do(string(class)+"|"+k, func() (any, error) {
		if v, ok := fresh.Get(k); ok {
			return v, nil
		}
		if v, ok := tierGet[T](ctx, c, k); ok {
			appOtel.Metrics.RecordCache(ctx, class, "hit")
			fresh.Add(k, v)
			return v, nil
		}

		appOtel.Metrics.RecordCache(ctx, class, "miss")
		appOtel.Metrics.RecordCompute(ctx, class)
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		fresh.Add(k, v)
		c.stale.Add(k, v)
		tierSet(ctx, c, k, v, c.policies[class].TTL)
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// GetOrCompute is Lookup for search envelopes.
func (c *ResultCache) GetOrCompute(ctx context.Context, class domain.QueryClass, key domain.QueryFingerprint, compute func(ctx context.Context) (*domain.ResponseEnvelope, error)) (*domain.ResponseEnvelope, error) {
	return Lookup(ctx, c, class, key, compute)
}

// Stale returns the last value computed for key, ignoring TTL.
func Stale[T any](c *ResultCache, key domain.QueryFingerprint) (T, bool) {
	var zero T
	v, ok := c.stale.Get(string(key))
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Purge drops the fresh entries of the given classes. The stale store is kept.
func (c *ResultCache) Purge(ctx context.Context, classes ...domain.QueryClass) {
	for _, class := range classes {
		if fresh, ok := c.fresh[class]; ok {
			fresh.Purge()
		}
		if c.tier != nil {
			if err := c.tier.Purge(ctx, string(class)+":"); err != nil {
				logger.Logger.WarnContext(ctx, "failed to purge cache tier", "class", class, "error", err)
			}
		}
	}
}

// Len reports the number of fresh entries held for class.
func (c *ResultCache) Len(class domain.QueryClass) int {
	if fresh, ok := c.fresh[class]; ok {
		return fresh.Len()
	}
	return 0
}

func tierGet[T any](ctx context.Context, c *ResultCache, key string) (T, bool) {
	var v T
	if c.tier == nil {
		return v, false
	}
	raw, found, err := c.tier.Get(ctx, key)
	if err != nil {
		logger.Logger.WarnContext(ctx, "cache tier read failed, treating as miss", "key", key, "error", err)
		return v, false
	}
	if !found {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		logger.Logger.WarnContext(ctx, "cache tier value undecodable, treating as miss", "key", key, "error", err)
		return v, false
	}
	return v, true
}

func tierSet(ctx context.Context, c *ResultCache, key string, v any, ttl time.Duration) {
	if c.tier == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		logger.Logger.WarnContext(ctx, "cache value not encodable", "key", key, "error", err)
		return
	}
	if err := c.tier.Set(ctx, key, raw, ttl); err != nil {
		logger.Logger.WarnContext(ctx, "cache tier write failed", "key", key, "error", err)
	}
}
