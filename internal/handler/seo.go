// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/seo"
	"github.com/olegiv/storefront/internal/settings"
	"github.com/olegiv/storefront/internal/store"
)

// sitemapMaxItems caps the categories and the products listed in the sitemap.
const sitemapMaxItems = 10000

// SEOConfig configures the SEOHandler.
type SEOConfig struct {
	Queries  *store.Queries
	Settings *settings.Cache
	// SiteURL is the public base URL. The request host is used when empty.
	SiteURL string
	NoIndex bool
	TTL     time.Duration
	Logger  *slog.Logger
}

// SEOHandler serves robots.txt and the multilingual sitemap.
type SEOHandler struct {
	queries  *store.Queries
	settings *settings.Cache
	siteURL  string
	noIndex  bool
	ttl      time.Duration
	logger   *slog.Logger

	mu       sync.RWMutex
	xml      []byte
	xmlBase  string
	cachedAt time.Time
}

// NewSEOHandler creates a new SEOHandler.
func NewSEOHandler(cfg SEOConfig) *SEOHandler {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SEOHandler{
		queries:  cfg.Queries,
		settings: cfg.Settings,
		siteURL:  cfg.SiteURL,
		noIndex:  cfg.NoIndex,
		ttl:      cfg.TTL,
		logger:   cfg.Logger,
	}
}

// Robots serves /robots.txt.
func (h *SEOHandler) Robots(w http.ResponseWriter, r *http.Request) {
	s := h.settings.Get(r.Context())
	primary := s.Primary()
	var prefixes []string
	for _, lang := range s.Enabled() {
		if lang != primary {
			prefixes = append(prefixes, lang)
		}
	}

	robots := seo.Robots{
		SiteURL:          h.baseURL(r),
		DisallowAll:      h.noIndex,
		LanguagePrefixes: prefixes,
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := robots.WriteTo(w); err != nil {
		h.logger.Debug("writing robots.txt", "error", err)
	}
}

// Sitemap serves /sitemap.xml.
func (h *SEOHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	data, err := h.sitemap(r.Context(), h.baseURL(r))
	if err != nil {
		h.logger.Error("failed to build sitemap", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(data)
}

// OnSettingsChange drops the cached sitemap; the language set may differ.
func (h *SEOHandler) OnSettingsChange(model.StoreSettings) {
	h.Invalidate()
}

// Invalidate clears the cached sitemap, forcing regeneration on next request.
func (h *SEOHandler) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.xml = nil
	h.cachedAt = time.Time{}
}

func (h *SEOHandler) fresh(base string) bool {
	return h.xml != nil && h.xmlBase == base && time.Since(h.cachedAt) < h.ttl
}

func (h *SEOHandler) sitemap(ctx context.Context, base string) ([]byte, error) {
	h.mu.RLock()
	if h.fresh(base) {
		data := h.xml
		h.mu.RUnlock()
		return data, nil
	}
	h.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fresh(base) {
		return h.xml, nil
	}

	data, err := h.buildSitemap(ctx, base)
	if err != nil {
		return nil, err
	}
	h.xml = data
	h.xmlBase = base
	h.cachedAt = time.Now()
	return data, nil
}

// buildSitemap lists the home page, every active category and every
// available product of an active category, in each enabled language.
func (h *SEOHandler) buildSitemap(ctx context.Context, base string) ([]byte, error) {
	s := h.settings.Get(ctx)
	builder := seo.NewSitemapBuilder(base, s.Primary(), s.Enabled())
	builder.AddHomepage()

	categories, err := h.queries.ListCategories(ctx, true, sitemapMaxItems, 0)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	active := make(map[int64]bool, len(categories))
	for _, c := range categories {
		active[c.ID] = true
		builder.AddCategory(c.ID, c.UpdatedAt)
	}

	products, err := h.queries.ListProducts(ctx, store.ListProductsParams{
		AvailableOnly: true,
		Limit:         sitemapMaxItems,
	})
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	for _, p := range products {
		if active[p.CategoryID] {
			builder.AddProduct(p.ID, p.UpdatedAt)
		}
	}

	h.logger.Debug("sitemap generated", "urls", builder.Len())
	return builder.Build()
}

func (h *SEOHandler) baseURL(r *http.Request) string {
	if h.siteURL != "" {
		return h.siteURL
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
