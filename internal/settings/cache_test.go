// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package settings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/storefront/internal/model"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func named(name string) model.StoreSettings {
	s := model.DefaultStoreSettings()
	s.Text[model.SettingStoreName] = name
	return s
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestConcurrentGetSharesOneFetch(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := New(FetcherFunc(func(ctx context.Context) (model.StoreSettings, error) {
		calls.Add(1)
		<-release
		return named("Shop"), nil
	}), WithLogger(quietLogger))

	var wg sync.WaitGroup
	results := make([]model.StoreSettings, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Get(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	// Give the second caller time to join the in-flight fetch.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "Shop", r.Text[model.SettingStoreName])
	}
}

func TestFreshThenStaleWhileRevalidate(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	var calls atomic.Int32
	c := New(FetcherFunc(func(ctx context.Context) (model.StoreSettings, error) {
		n := calls.Add(1)
		if n == 1 {
			return named("v1"), nil
		}
		return named("v2"), nil
	}), WithClock(clock.Now), WithLogger(quietLogger))

	ctx := context.Background()
	assert.Equal(t, "v1", c.Get(ctx).Text[model.SettingStoreName])

	clock.Advance(DefaultTTL - time.Second)
	assert.Equal(t, "v1", c.Get(ctx).Text[model.SettingStoreName])
	assert.Equal(t, int32(1), calls.Load(), "fresh reads do not fetch")

	clock.Advance(2 * time.Second)
	assert.Equal(t, "v1", c.Get(ctx).Text[model.SettingStoreName], "stale value served immediately")

	require.Eventually(t, func() bool {
		return c.Get(ctx).Text[model.SettingStoreName] == "v2"
	}, time.Second, time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchFailureWithoutValueReturnsDefaults(t *testing.T) {
	c := New(FetcherFunc(func(ctx context.Context) (model.StoreSettings, error) {
		return model.StoreSettings{}, errors.New("database is down")
	}), WithLogger(quietLogger))

	got := c.Get(context.Background())
	assert.Equal(t, model.PlaceholderStoreName, got.Text[model.SettingStoreName])
	assert.Empty(t, got.Text[model.SettingStoreDescription])
	assert.Empty(t, got.WorkingHours)
	assert.Equal(t, model.DefaultLanguage, got.Primary())
}

func TestFetchFailureKeepsStaleValue(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	var fail atomic.Bool
	var calls atomic.Int32
	c := New(FetcherFunc(func(ctx context.Context) (model.StoreSettings, error) {
		calls.Add(1)
		if fail.Load() {
			return model.StoreSettings{}, errors.New("timeout")
		}
		return named("cached"), nil
	}), WithClock(clock.Now), WithLogger(quietLogger))

	ctx := context.Background()
	require.Equal(t, "cached", c.Get(ctx).Text[model.SettingStoreName])

	fail.Store(true)
	clock.Advance(time.Hour)
	assert.Equal(t, "cached", c.Get(ctx).Text[model.SettingStoreName])
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	assert.Equal(t, "cached", c.Get(ctx).Text[model.SettingStoreName])

	// After invalidation the last known value is still the fallback.
	c.Invalidate()
	assert.Equal(t, "cached", c.Get(ctx).Text[model.SettingStoreName])
}

func TestInvalidateRefetches(t *testing.T) {
	var name atomic.Value
	name.Store("before")
	c := New(FetcherFunc(func(ctx context.Context) (model.StoreSettings, error) {
		return named(name.Load().(string)), nil
	}), WithLogger(quietLogger))

	ctx := context.Background()
	assert.Equal(t, "before", c.Get(ctx).Text[model.SettingStoreName])

	name.Store("after")
	assert.Equal(t, "before", c.Get(ctx).Text[model.SettingStoreName])

	c.Invalidate()
	assert.Equal(t, "after", c.Get(ctx).Text[model.SettingStoreName])
	assert.Equal(t, uint64(1), c.Generation())
}

func TestSlowFetchFromOldGenerationIsDiscarded(t *testing.T) {
	var calls atomic.Int32
	releaseOld := make(chan struct{})
	c := New(FetcherFunc(func(ctx context.Context) (model.StoreSettings, error) {
		if calls.Add(1) == 1 {
			<-releaseOld
			return named("old"), nil
		}
		return named("new"), nil
	}), WithLogger(quietLogger))

	ctx := context.Background()
	oldDone := make(chan struct{})
	go func() {
		defer close(oldDone)
		c.Get(ctx)
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	c.Invalidate()
	assert.Equal(t, "new", c.Get(ctx).Text[model.SettingStoreName])

	close(releaseOld)
	<-oldDone

	assert.Equal(t, "new", c.Get(ctx).Text[model.SettingStoreName], "stale response must not overwrite newer data")
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetReturnsFallbackWhenContextEnds(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := New(FetcherFunc(func(ctx context.Context) (model.StoreSettings, error) {
		<-release
		return named("late"), nil
	}), WithLogger(quietLogger))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	got := c.Get(ctx)
	assert.Equal(t, model.PlaceholderStoreName, got.Text[model.SettingStoreName])
}

func TestOnChange(t *testing.T) {
	var name atomic.Value
	name.Store("a")
	stamp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(FetcherFunc(func(ctx context.Context) (model.StoreSettings, error) {
		s := named(name.Load().(string))
		s.UpdatedAt = stamp
		if name.Load() == "b" {
			s.UpdatedAt = stamp.Add(time.Minute)
			s.PrimaryLanguage = "en"
		}
		return s, nil
	}), WithLogger(quietLogger))

	var seen []string
	c.OnChange(func(s model.StoreSettings) {
		seen = append(seen, s.Primary())
	})

	ctx := context.Background()
	c.Get(ctx)
	c.Refresh(ctx)
	name.Store("b")
	c.Refresh(ctx)

	assert.Equal(t, []string{"ru", "en"}, seen, "listeners run on first load and on change only")
}

func TestOnChangeDetectsSwappedLanguage(t *testing.T) {
	var langs atomic.Value
	langs.Store([]string{"ru", "en"})
	stamp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(FetcherFunc(func(ctx context.Context) (model.StoreSettings, error) {
		s := model.DefaultStoreSettings()
		s.EnabledLanguages = langs.Load().([]string)
		s.UpdatedAt = stamp
		return s, nil
	}), WithLogger(quietLogger))

	var seen [][]string
	c.OnChange(func(s model.StoreSettings) {
		seen = append(seen, s.Enabled())
	})

	ctx := context.Background()
	c.Get(ctx)
	langs.Store([]string{"ru", "he"})
	c.Refresh(ctx)

	assert.Equal(t, [][]string{{"ru", "en"}, {"ru", "he"}}, seen,
		"same count and timestamp with a different language set is a change")
}
