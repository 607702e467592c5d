// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatch is the SCAN COUNT hint and the UNLINK pipeline size.
const scanBatch = 200

// RedisOptions configures a Redis backend shared by several storefront
// instances. ClusterAddrs selects a cluster client; otherwise URL is used.
type RedisOptions struct {
	URL          string // redis://[:password@]host:port/db
	ClusterAddrs []string
	Prefix       string
	DefaultTTL   time.Duration
	PoolSize     int
	DialTimeout  time.Duration
	IOTimeout    time.Duration
}

// DefaultRedisOptions returns the pool and timeout defaults.
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		Prefix:      "storefront:",
		DefaultTTL:  5 * time.Minute,
		PoolSize:    10,
		DialTimeout: 5 * time.Second,
		IOTimeout:   3 * time.Second,
	}
}

// client builds the go-redis client for o without connecting.
func (o RedisOptions) client() (redis.UniversalClient, error) {
	if len(o.ClusterAddrs) > 0 {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        o.ClusterAddrs,
			PoolSize:     o.PoolSize,
			DialTimeout:  o.DialTimeout,
			ReadTimeout:  o.IOTimeout,
			WriteTimeout: o.IOTimeout,
		}), nil
	}
	if o.URL == "" {
		return nil, errors.New("redis URL or cluster addresses required")
	}
	opts, err := redis.ParseURL(o.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	if o.PoolSize > 0 {
		opts.PoolSize = o.PoolSize
	}
	if o.DialTimeout > 0 {
		opts.DialTimeout = o.DialTimeout
	}
	if o.IOTimeout > 0 {
		opts.ReadTimeout = o.IOTimeout
		opts.WriteTimeout = o.IOTimeout
	}
	return redis.NewClient(opts), nil
}

// RedisCache is a Cacher on Redis. Every key is stored under a common
// prefix, so Clear never touches keys of other applications.
type RedisCache struct {
	client     redis.UniversalClient
	prefix     string
	defaultTTL time.Duration
	closed     atomic.Bool

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// NewRedisCache connects with opts and pings the server.
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	client, err := opts.client()
	if err != nil {
		return nil, err
	}
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = DefaultRedisOptions().DialTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return NewRedisCacheWithClient(client, opts.Prefix, opts.DefaultTTL), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client redis.UniversalClient, prefix string, defaultTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, defaultTTL: defaultTTL}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

// Get returns ErrCacheMiss for absent keys.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		c.misses.Add(1)
		return nil, ErrCacheMiss
	case err != nil:
		return nil, err
	}
	c.hits.Add(1)
	return val, nil
}

// Set stores value for ttl, or the default TTL when ttl is zero.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return err
	}
	c.sets.Add(1)
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	return c.client.Unlink(ctx, c.key(key)).Err()
}

// DeleteByPrefix removes the keys starting with prefix.
func (c *RedisCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	return c.unlinkMatching(ctx, c.key(prefix)+"*")
}

// Clear removes every key under the cache prefix.
func (c *RedisCache) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	return c.unlinkMatching(ctx, c.prefix+"*")
}

// unlinkMatching unlinks the keys matching pattern in pipelined batches.
// Single-key commands keep cluster clients within one hash slot each.
func (c *RedisCache) unlinkMatching(ctx context.Context, pattern string) error {
	return c.scanKeys(ctx, pattern, func(keys []string) error {
		_, err := c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
			for _, k := range keys {
				p.Unlink(ctx, k)
			}
			return nil
		})
		return err
	})
}

// scanKeys passes the keys matching pattern to fn in batches of up to
// scanBatch. A cluster client is scanned on every master.
func (c *RedisCache) scanKeys(ctx context.Context, pattern string, fn func([]string) error) error {
	if cc, ok := c.client.(*redis.ClusterClient); ok {
		var mu sync.Mutex
		locked := func(keys []string) error {
			mu.Lock()
			defer mu.Unlock()
			return fn(keys)
		}
		return cc.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			return scanNode(ctx, node, pattern, locked)
		})
	}
	return scanNode(ctx, c.client, pattern, fn)
}

func scanNode(ctx context.Context, client redis.Cmdable, pattern string, fn func([]string) error) error {
	batch := make([]string, 0, scanBatch)
	iter := client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := fn(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

func (c *RedisCache) Has(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, ErrCacheClosed
	}
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close closes the client once.
func (c *RedisCache) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		return c.client.Close()
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	return c.client.Ping(ctx).Err()
}

// Stats returns the counters of this instance and the number of keys under
// the prefix. Items stays zero when the count fails.
func (c *RedisCache) Stats() Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	items := 0
	if err := c.scanKeys(ctx, c.prefix+"*", func(keys []string) error {
		items += len(keys)
		return nil
	}); err != nil {
		items = 0
	}

	hits, misses := c.hits.Load(), c.misses.Load()
	return Stats{
		Hits:    hits,
		Misses:  misses,
		Sets:    c.sets.Load(),
		Items:   items,
		HitRate: hitRate(hits, misses),
	}
}

func (c *RedisCache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.sets.Store(0)
}

var (
	_ Cacher        = (*RedisCache)(nil)
	_ Pinger        = (*RedisCache)(nil)
	_ StatsProvider = (*RedisCache)(nil)
)
