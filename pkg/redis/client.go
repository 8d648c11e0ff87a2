// Package redis wraps go-redis/v9 with the few operations the studio needs:
// byte values with a TTL for cached model output, capped lists for
// analytics snapshots, and prefix invalidation.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/config"
)

// ErrMiss is returned by Get for a key that does not exist.
var ErrMiss = errors.New("redis: key not found")

// scanBatch is the SCAN COUNT hint and the size of each UNLINK batch.
const scanBatch = 200

type Client struct {
	rdb  *redis.Client
	addr string
}

// NewClient connects and PINGs, giving up after five seconds or when ctx
// ends, whichever is first.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	c := &Client{rdb: rdb, addr: cfg.Addr}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return c, nil
}

// Get returns ErrMiss when key is absent.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

// Set stores value under key. A zero ttl keeps it until evicted.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// FlushByPattern unlinks every key matching the glob, one SCAN page at a
// time, and returns how many were removed.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var (
		removed int64
		cursor  uint64
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("scanning %q: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := c.rdb.Unlink(ctx, keys...).Result()
			removed += n
			if err != nil {
				return removed, fmt.Errorf("unlinking %d keys: %w", len(keys), err)
			}
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

// PushCapped prepends value and trims the list to its newest limit
// entries atomically.
func (c *Client) PushCapped(ctx context.Context, key string, value []byte, limit int64) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, value)
		pipe.LTrim(ctx, key, 0, limit-1)
		return nil
	})
	return err
}

// Range reads up to n entries from the head of the list.
func (c *Client) Range(ctx context.Context, key string, n int64) ([][]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	vals, err := c.rdb.LRange(ctx, key, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		out = append(out, []byte(v))
	}
	return out, nil
}

// IsMiss reports whether err means the key was absent.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss) || errors.Is(err, redis.Nil)
}

func (c *Client) Addr() string { return c.addr }

func (c *Client) Close() error { return c.rdb.Close() }

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
