// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package theme

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/olegiv/storefront/internal/model"
)

// DefaultActiveTTL is how long the active theme query result is reused.
const DefaultActiveTTL = time.Minute

// Loader returns the currently active theme.
type Loader interface {
	GetActiveTheme(ctx context.Context) (model.Theme, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (model.Theme, error)

// GetActiveTheme calls f.
func (f LoaderFunc) GetActiveTheme(ctx context.Context) (model.Theme, error) {
	return f(ctx)
}

// ActiveTheme caches the active theme and re-applies it to the Applier
// whenever the query result changes, including the first load.
type ActiveTheme struct {
	loader  Loader
	applier *Applier
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu        sync.Mutex
	current   *model.Theme
	fetchedAt time.Time
}

// ActiveOption configures an ActiveTheme.
type ActiveOption func(*ActiveTheme)

// WithActiveTTL sets the cache lifetime.
func WithActiveTTL(ttl time.Duration) ActiveOption {
	return func(a *ActiveTheme) { a.ttl = ttl }
}

// WithActiveClock sets the clock.
func WithActiveClock(now func() time.Time) ActiveOption {
	return func(a *ActiveTheme) { a.now = now }
}

// WithActiveLogger sets the logger.
func WithActiveLogger(l *slog.Logger) ActiveOption {
	return func(a *ActiveTheme) { a.logger = l }
}

// NewActiveTheme creates an ActiveTheme applying onto applier.
func NewActiveTheme(loader Loader, applier *Applier, opts ...ActiveOption) *ActiveTheme {
	a := &ActiveTheme{
		loader:  loader,
		applier: applier,
		ttl:     DefaultActiveTTL,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Applier returns the applier the active theme is written to.
func (a *ActiveTheme) Applier() *Applier {
	return a.applier
}

// Get returns the active theme. On a load failure it keeps the previous
// theme, or falls back to model.DefaultTheme when there is none.
func (a *ActiveTheme) Get(ctx context.Context) model.Theme {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != nil && a.now().Sub(a.fetchedAt) < a.ttl {
		return *a.current
	}

	t, err := a.loader.GetActiveTheme(ctx)
	if err != nil {
		a.logger.Warn("active theme load failed, using fallback", "error", err)
		if a.current != nil {
			return *a.current
		}
		t = model.DefaultTheme()
	}

	if a.current == nil || a.current.ID != t.ID || !a.current.UpdatedAt.Equal(t.UpdatedAt) {
		n := a.applier.Apply(t)
		a.logger.Debug("applied theme", "theme_id", t.ID, "name", t.Name, "mutations", n)
	}
	if err == nil {
		a.fetchedAt = a.now()
	}
	a.current = &t
	return t
}

// Invalidate forces the next Get to query again.
func (a *ActiveTheme) Invalidate() {
	a.mu.Lock()
	a.fetchedAt = time.Time{}
	a.mu.Unlock()
}
