// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/olegiv/storefront/internal/metrics"
	"github.com/olegiv/storefront/internal/model"
)

// CatalogPrefix is the key prefix of every catalog entry.
const CatalogPrefix = "catalog:"

// DefaultCatalogTTL bounds how long public catalog reads may lag behind admin edits
// made on another instance.
const DefaultCatalogTTL = 5 * time.Minute

// CategoryPage is a cached page of categories.
type CategoryPage struct {
	Items []model.Category `json:"items"`
	Total int64            `json:"total"`
}

// ProductPage is a cached page of products.
type ProductPage struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
}

// ProductQuery identifies a public product listing.
type ProductQuery struct {
	CategoryID  int64
	PopularOnly bool
	Page        int64
	PerPage     int64
}

func (q ProductQuery) key() string {
	return fmt.Sprintf("c%d:p%t:%d:%d", q.CategoryID, q.PopularOnly, q.Page, q.PerPage)
}

// CatalogCache caches the unlocalized public catalog. Entries are shared by
// all languages; localization happens per request on the cached records.
type CatalogCache struct {
	backend    Cacher
	categories *TypedCache[CategoryPage]
	products   *TypedCache[ProductPage]
	product    *TypedCache[model.Product]
}

// NewCatalogCache creates a catalog cache on backend.
func NewCatalogCache(backend Cacher, ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &CatalogCache{
		backend:    backend,
		categories: NewTypedCache[CategoryPage](backend, CatalogPrefix+"categories:", ttl),
		products:   NewTypedCache[ProductPage](backend, CatalogPrefix+"products:", ttl),
		product:    NewTypedCache[model.Product](backend, CatalogPrefix+"product:", ttl),
	}
}

// Categories returns the page of active categories, loading it on a miss.
func (c *CatalogCache) Categories(ctx context.Context, page, perPage int64, load func(ctx context.Context) (CategoryPage, error)) (CategoryPage, error) {
	v, hit, err := c.categories.GetOrSet(ctx, fmt.Sprintf("%d:%d", page, perPage), load)
	metrics.RecordCatalogCache(hit)
	return v, err
}

// Products returns a product page, loading it on a miss.
func (c *CatalogCache) Products(ctx context.Context, q ProductQuery, load func(ctx context.Context) (ProductPage, error)) (ProductPage, error) {
	v, hit, err := c.products.GetOrSet(ctx, q.key(), load)
	metrics.RecordCatalogCache(hit)
	return v, err
}

// Product returns a single product, loading it on a miss.
func (c *CatalogCache) Product(ctx context.Context, id int64, load func(ctx context.Context) (model.Product, error)) (model.Product, error) {
	v, hit, err := c.product.GetOrSet(ctx, strconv.FormatInt(id, 10), load)
	metrics.RecordCatalogCache(hit)
	return v, err
}

// Invalidate drops every catalog entry. Admin writes call it.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	return c.backend.DeleteByPrefix(ctx, CatalogPrefix)
}

// Stats returns backend statistics when the backend tracks them.
func (c *CatalogCache) Stats() (Stats, bool) {
	sp, ok := c.backend.(StatsProvider)
	if !ok {
		return Stats{}, false
	}
	return sp.Stats(), true
}
