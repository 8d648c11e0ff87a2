// Package cache memoizes model output in Redis and coalesces identical
// in-flight requests. Without Redis it still coalesces, it just never hits.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/redis"
)

const keyPrefix = "studio:llm:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// ResultCache stores completed model output keyed by a hash of its inputs.
type ResultCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a ResultCache. store and m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *ResultCache {
	return &ResultCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "llm-cache"),
	}
}

// Key hashes the parts into a cache key. Parts are length-prefixed so
// different splits of the same bytes never collide.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s|", len(p), p)
	}
	return fmt.Sprintf("%s%x", keyPrefix, h.Sum(nil)[:16])
}

func (c *ResultCache) get(ctx context.Context, key string) (string, bool) {
	if c.store == nil {
		return "", false
	}
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsMiss(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return "", false
	}
	return string(data), true
}

func (c *ResultCache) set(ctx context.Context, key, value string) {
	if c.store == nil {
		return
	}
	if err := c.store.Set(ctx, key, []byte(value), c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached value for key, or runs compute once for
// all concurrent callers with the same key and caches a successful result.
// The bool reports whether the value came from the cache.
func (c *ResultCache) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) (string, error)) (string, bool, error) {
	if v, ok := c.get(ctx, key); ok {
		c.recordHit()
		return v, true, nil
	}
	c.recordMiss()
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.get(ctx, key); ok {
			return v, nil
		}
		out, err := compute(ctx)
		if err != nil {
			return "", err
		}
		c.set(ctx, key, out)
		return out, nil
	})
	if err != nil {
		return "", false, err
	}
	return v.(string), false, nil
}

// Invalidate removes every cached result.
func (c *ResultCache) Invalidate(ctx context.Context) (int64, error) {
	if c.store == nil {
		return 0, nil
	}
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating llm cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns hit and miss counts since start.
func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *ResultCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *ResultCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
