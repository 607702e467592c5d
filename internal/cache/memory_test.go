// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestMemoryCache(t *testing.T, maxSize int) (*MemoryCache, *manualClock) {
	t.Helper()
	clock := &manualClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour, MaxSize: maxSize, Now: clock.Now})
	t.Cleanup(func() { _ = c.Close() })
	return c, clock
}

func TestMemoryCacheBasicOperations(t *testing.T) {
	c, _ := newTestMemoryCache(t, 100)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key1", []byte("value1"), 0))
	val, err := c.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, "value1", string(val))

	has, err := c.Has(ctx, "key1")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, c.Delete(ctx, "key1"))
	_, err = c.Get(ctx, "key1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, c.Ping(ctx))
}

func TestMemoryCacheExpiration(t *testing.T) {
	c, clock := newTestMemoryCache(t, 0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("x"), time.Minute))
	require.NoError(t, c.Set(ctx, "default", []byte("y"), 0))
	require.NoError(t, c.Set(ctx, "other", []byte("z"), time.Minute))

	clock.Advance(2 * time.Minute)
	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
	has, _ := c.Has(ctx, "other")
	assert.False(t, has)
	_, err = c.Get(ctx, "default")
	assert.NoError(t, err, "default ttl is an hour")

	assert.Equal(t, 2, c.Stats().Items, "the expired read was dropped")
	assert.Equal(t, 1, c.removeExpired())
	assert.Equal(t, 1, c.Stats().Items)
	assert.Equal(t, int64(1), c.Stats().Size)
}

func TestMemoryCacheDeleteByPrefix(t *testing.T) {
	c, _ := newTestMemoryCache(t, 0)
	ctx := context.Background()

	for _, k := range []string{"catalog:a", "catalog:b", "session:c"} {
		require.NoError(t, c.Set(ctx, k, []byte(k), 0))
	}
	require.NoError(t, c.DeleteByPrefix(ctx, "catalog:"))

	has, _ := c.Has(ctx, "catalog:a")
	assert.False(t, has)
	has, _ = c.Has(ctx, "session:c")
	assert.True(t, has)
	assert.Equal(t, int64(len("session:c")), c.Stats().Size)

	require.NoError(t, c.Clear(ctx))
	assert.Zero(t, c.Stats().Items)
	assert.Zero(t, c.Stats().Size)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestMemoryCache(t, 2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	_, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	has, _ := c.Has(ctx, "b")
	assert.False(t, has, "b was used least recently")
	for _, k := range []string{"a", "c"} {
		has, _ := c.Has(ctx, k)
		assert.True(t, has, k)
	}
	assert.Equal(t, int64(1), c.Stats().Evictions)

	// Overwriting an existing key never evicts and keeps the size exact.
	require.NoError(t, c.Set(ctx, "c", []byte("four"), 0))
	s := c.Stats()
	assert.Equal(t, 2, s.Items)
	assert.Equal(t, int64(1), s.Evictions)
	assert.Equal(t, int64(len("1")+len("four")), s.Size)
}

func TestMemoryCacheStats(t *testing.T) {
	c, _ := newTestMemoryCache(t, 0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	_, _ = c.Get(ctx, "k")
	_, _ = c.Get(ctx, "k")
	_, _ = c.Get(ctx, "missing")

	s := c.Stats()
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, int64(1), s.Sets)
	assert.InDelta(t, 66.67, s.HitRate, 0.01)

	c.ResetStats()
	s = c.Stats()
	assert.Zero(t, s.Hits)
	assert.Zero(t, s.Misses)
	assert.Equal(t, 1, s.Items, "reset keeps the entries")
}

func TestMemoryCacheValueCopy(t *testing.T) {
	c, _ := newTestMemoryCache(t, 0)
	ctx := context.Background()

	original := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", original, 0))
	original[0] = 'X'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'Y'
	again, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(again), "returned slice must not alias storage")
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	c, _ := newTestMemoryCache(t, 50)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Go(func() {
			for j := range 100 {
				key := fmt.Sprintf("k%d", (i*100+j)%80)
				_ = c.Set(ctx, key, []byte(key), 0)
				_, _ = c.Get(ctx, key)
				if j%10 == 0 {
					_ = c.DeleteByPrefix(ctx, "k1")
				}
			}
		})
	}
	wg.Wait()

	s := c.Stats()
	assert.LessOrEqual(t, s.Items, 50)
	var want int64
	for _, k := range c.entries.Keys() {
		e, _ := c.entries.Peek(k)
		want += int64(len(e.value))
	}
	assert.Equal(t, want, s.Size)
}

func TestMemoryCacheClose(t *testing.T) {
	c := NewSimpleMemoryCache(time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheClosed)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, 0), ErrCacheClosed)
	assert.ErrorIs(t, c.Ping(ctx), ErrCacheClosed)
}
