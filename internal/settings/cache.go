// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package settings provides the cached store settings used by nearly every
// request. Reads are served from memory; a value older than the TTL is
// still returned while a single background refresh runs.
package settings

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/olegiv/storefront/internal/metrics"
	"github.com/olegiv/storefront/internal/model"
)

// DefaultTTL is how long fetched settings are considered fresh.
const DefaultTTL = 5 * time.Minute

// DefaultFetchTimeout bounds a single fetch, including background refreshes.
const DefaultFetchTimeout = 10 * time.Second

// Read results reported to metrics.
const (
	ResultFresh    = "fresh"
	ResultStale    = "stale"
	ResultMiss     = "miss"
	ResultFallback = "fallback"
)

// Fetcher loads the settings from their source of truth.
type Fetcher interface {
	FetchSettings(ctx context.Context) (model.StoreSettings, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (model.StoreSettings, error)

// FetchSettings calls f.
func (f FetcherFunc) FetchSettings(ctx context.Context) (model.StoreSettings, error) {
	return f(ctx)
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithClock sets the clock used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithFetchTimeout bounds each fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) { c.fetchTimeout = d }
}

// WithLogger sets the logger used for fetch failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// Cache memoizes store settings with stale-while-revalidate semantics.
//
// Every fetch is tagged with the cache generation it started in.
// Invalidate bumps the generation, so a fetch that completes afterwards is
// discarded instead of overwriting newer data.
type Cache struct {
	fetcher      Fetcher
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger

	group singleflight.Group

	mu        sync.RWMutex
	value     *model.StoreSettings
	fetchedAt time.Time
	lastKnown *model.StoreSettings
	gen       uint64

	listenersMu sync.RWMutex
	listeners   []func(model.StoreSettings)
}

// New creates a Cache reading through fetcher.
func New(fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher:      fetcher,
		ttl:          DefaultTTL,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnChange registers fn to run after a fetch stores settings that differ
// from the previous value, including the first load.
func (c *Cache) OnChange(fn func(model.StoreSettings)) {
	c.listenersMu.Lock()
	c.listeners = append(c.listeners, fn)
	c.listenersMu.Unlock()
}

// Get returns the current settings. It never fails: when nothing can be
// fetched it returns the last known value or model.DefaultStoreSettings.
func (c *Cache) Get(ctx context.Context) model.StoreSettings {
	c.mu.RLock()
	value, fetchedAt, gen := c.value, c.fetchedAt, c.gen
	c.mu.RUnlock()

	if value != nil {
		if c.now().Sub(fetchedAt) < c.ttl {
			metrics.RecordSettingsRead(ResultFresh)
			return *value
		}
		metrics.RecordSettingsRead(ResultStale)
		c.refreshAsync(gen)
		return *value
	}

	metrics.RecordSettingsRead(ResultMiss)
	ch := c.group.DoChan(groupKey(gen), c.fetchOnce(gen))
	select {
	case res := <-ch:
		if res.Err != nil {
			return c.fallback()
		}
		return res.Val.(model.StoreSettings)
	case <-ctx.Done():
		return c.fallback()
	}
}

// Invalidate drops the cached value. The next Get fetches again and any
// fetch still in flight is discarded when it completes.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.value = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

// Refresh invalidates the cache and waits for a new value.
func (c *Cache) Refresh(ctx context.Context) model.StoreSettings {
	c.Invalidate()
	return c.Get(ctx)
}

// Generation returns the current cache generation.
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

func (c *Cache) refreshAsync(gen uint64) {
	// DoChan runs the fetch on its own goroutine and dedupes concurrent refreshes.
	c.group.DoChan(groupKey(gen), c.fetchOnce(gen))
}

// fetchOnce skips the fetch when another flight already stored a fresh value for gen.
func (c *Cache) fetchOnce(gen uint64) func() (any, error) {
	return func() (any, error) {
		c.mu.RLock()
		if c.gen == gen && c.value != nil && c.now().Sub(c.fetchedAt) < c.ttl {
			v := *c.value
			c.mu.RUnlock()
			return v, nil
		}
		c.mu.RUnlock()
		return c.load(gen)
	}
}

// load fetches on a context detached from any single caller.
func (c *Cache) load(gen uint64) (model.StoreSettings, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	start := time.Now()
	s, err := c.fetcher.FetchSettings(ctx)
	if err != nil {
		metrics.RecordSettingsFetch("error", time.Since(start))
		c.logger.Warn("store settings fetch failed, serving fallback",
			"error", err,
			"generation", gen)
		return model.StoreSettings{}, err
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		metrics.RecordSettingsFetch("discarded", time.Since(start))
		c.logger.Debug("discarding settings fetched for an old generation",
			"generation", gen)
		return s, nil
	}
	prev := c.lastKnown
	c.value = &s
	c.lastKnown = &s
	c.fetchedAt = c.now()
	c.mu.Unlock()
	metrics.RecordSettingsFetch("ok", time.Since(start))

	if prev == nil || changed(*prev, s) {
		c.notify(s)
	}
	return s, nil
}

func (c *Cache) fallback() model.StoreSettings {
	metrics.RecordSettingsRead(ResultFallback)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.value != nil {
		return *c.value
	}
	if c.lastKnown != nil {
		return *c.lastKnown
	}
	return model.DefaultStoreSettings()
}

func (c *Cache) notify(s model.StoreSettings) {
	c.listenersMu.RLock()
	listeners := append([]func(model.StoreSettings){}, c.listeners...)
	c.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(s)
	}
}

func changed(prev, next model.StoreSettings) bool {
	return !prev.UpdatedAt.Equal(next.UpdatedAt) ||
		prev.Primary() != next.Primary() ||
		!slices.Equal(prev.Enabled(), next.Enabled())
}

func groupKey(gen uint64) string {
	return "settings:" + strconv.FormatUint(gen, 10)
}
