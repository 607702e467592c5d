// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryCacheOptions configures the memory cache.
type MemoryCacheOptions struct {
	// DefaultTTL applies when Set gets a zero ttl. Defaults to an hour.
	DefaultTTL time.Duration
	// MaxSize bounds the entry count; the least recently used entry goes
	// first. Zero means unbounded.
	MaxSize int
	// CleanupInterval is how often expired entries are purged in the
	// background. Zero disables the purge; expired entries still miss.
	CleanupInterval time.Duration
	Now             func() time.Time
}

// MemoryCache is an in-process Cacher for single-instance deployments.
type MemoryCache struct {
	// mu serializes writers so that size tracks the stored bytes exactly.
	mu         sync.Mutex
	entries    *lru.Cache[string, memoryEntry]
	size       atomic.Int64
	defaultTTL time.Duration
	now        func() time.Time

	stop   chan struct{}
	closed atomic.Bool

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) live(now time.Time) bool {
	return now.Before(e.expiresAt)
}

// NewMemoryCache creates a memory cache with opts.
func NewMemoryCache(opts MemoryCacheOptions) *MemoryCache {
	c := &MemoryCache{
		defaultTTL: opts.DefaultTTL,
		now:        opts.Now,
		stop:       make(chan struct{}),
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.defaultTTL <= 0 {
		c.defaultTTL = time.Hour
	}
	capacity := opts.MaxSize
	if capacity <= 0 {
		capacity = math.MaxInt
	}
	// Only fails for a non-positive size.
	c.entries, _ = lru.NewWithEvict(capacity, func(_ string, e memoryEntry) {
		c.size.Add(-int64(len(e.value)))
	})
	if opts.CleanupInterval > 0 {
		go c.purgeLoop(opts.CleanupInterval)
	}
	return c
}

// NewSimpleMemoryCache creates an unbounded cache purged every minute.
func NewSimpleMemoryCache(ttl time.Duration) *MemoryCache {
	return NewMemoryCache(MemoryCacheOptions{DefaultTTL: ttl, CleanupInterval: time.Minute})
}

// Get returns a copy of the value under key and marks it recently used.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}
	e, ok := c.entries.Get(key)
	if !ok || !e.live(c.now()) {
		if ok {
			c.removeIfExpired(key)
		}
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}
	c.hits.Add(1)
	return append([]byte(nil), e.value...), nil
}

// Set stores a copy of value for ttl, or the default TTL when ttl is zero.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	e := memoryEntry{value: append([]byte(nil), value...), expiresAt: c.now().Add(ttl)}

	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries.Peek(key); ok {
		c.size.Add(-int64(len(old.value)))
	}
	c.size.Add(int64(len(e.value)))
	if c.entries.Add(key, e) {
		c.evictions.Add(1)
	}
	c.sets.Add(1)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.mu.Lock()
	c.entries.Remove(key)
	c.mu.Unlock()
	return nil
}

// DeleteByPrefix removes every key starting with prefix.
func (c *MemoryCache) DeleteByPrefix(_ context.Context, prefix string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.entries.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.entries.Remove(k)
		}
	}
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.mu.Lock()
	c.entries.Purge()
	c.mu.Unlock()
	return nil
}

// Has reports whether key holds a live value without touching its recency.
func (c *MemoryCache) Has(_ context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, ErrCacheClosed
	}
	e, ok := c.entries.Peek(key)
	return ok && e.live(c.now()), nil
}

// Close stops the background purge. Later calls fail with ErrCacheClosed.
func (c *MemoryCache) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.stop)
	}
	return nil
}

// Ping fails only after Close.
func (c *MemoryCache) Ping(context.Context) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	return nil
}

func (c *MemoryCache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	return Stats{
		Hits:      hits,
		Misses:    misses,
		Sets:      c.sets.Load(),
		Evictions: c.evictions.Load(),
		Items:     c.entries.Len(),
		HitRate:   hitRate(hits, misses),
		Size:      c.size.Load(),
	}
}

func (c *MemoryCache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.sets.Store(0)
	c.evictions.Store(0)
}

// removeIfExpired drops key unless a writer refreshed it meanwhile.
func (c *MemoryCache) removeIfExpired(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries.Peek(key); ok && !e.live(c.now()) {
		c.entries.Remove(key)
	}
}

// removeExpired drops every expired entry and returns how many went.
func (c *MemoryCache) removeExpired() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, k := range c.entries.Keys() {
		if e, ok := c.entries.Peek(k); ok && !e.live(now) {
			c.entries.Remove(k)
			n++
		}
	}
	return n
}

func (c *MemoryCache) purgeLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

var (
	_ Cacher        = (*MemoryCache)(nil)
	_ Pinger        = (*MemoryCache)(nil)
	_ StatsProvider = (*MemoryCache)(nil)
)
