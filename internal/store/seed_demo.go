// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/olegiv/storefront/internal/model"
)

type demoProduct struct {
	slug    string
	name    model.Fields
	price   string
	popular bool
}

type demoCategory struct {
	slug     string
	icon     string
	name     model.Fields
	products []demoProduct
}

var demoMenu = []demoCategory{
	{
		slug: "pizza", icon: "🍕",
		name: model.Fields{"name": "Пицца", "name_en": "Pizza", "name_he": "פיצה", "name_ar": "بيتزا"},
		products: []demoProduct{
			{slug: "margherita", price: "45", popular: true,
				name: model.Fields{"name": "Маргарита", "name_en": "Margherita", "name_he": "מרגריטה", "name_ar": "مارغريتا"}},
			{slug: "pepperoni", price: "52",
				name: model.Fields{"name": "Пепперони", "name_en": "Pepperoni", "name_he": "פפרוני"}},
		},
	},
	{
		slug: "soups", icon: "🍲",
		name: model.Fields{"name": "Супы", "name_en": "Soups", "name_he": "מרקים", "name_ar": "شوربات"},
		products: []demoProduct{
			{slug: "borscht", price: "32", popular: true,
				name: model.Fields{"name": "Борщ", "name_en": "Borscht"}},
		},
	},
	{
		slug: "drinks", icon: "🥤",
		name: model.Fields{"name": "Напитки", "name_en": "Drinks", "name_ar": "مشروبات"},
		products: []demoProduct{
			{slug: "lemonade", price: "12.5",
				name: model.Fields{"name": "Лимонад", "name_en": "Lemonade", "name_he": "לימונדה", "name_ar": "ليموناضة"}},
		},
	},
}

// SeedDemo creates a demo menu when the catalog is empty.
func SeedDemo(ctx context.Context, db *sql.DB) error {
	queries := New(db)
	count, err := queries.CountCategories(ctx, false)
	if err != nil {
		return fmt.Errorf("counting categories: %w", err)
	}
	if count > 0 {
		slog.Info("categories already exist, skipping demo menu")
		return nil
	}

	now := time.Now().UTC()
	products := 0
	err = InTx(ctx, db, func(q *Queries) error {
		for i, dc := range demoMenu {
			c := model.Category{Slug: dc.slug, Icon: dc.icon, Position: int64(i), IsActive: true}
			c.SetLocalizable(dc.name)
			cat, err := q.CreateCategory(ctx, c, now)
			if err != nil {
				return fmt.Errorf("creating category %s: %w", dc.slug, err)
			}
			for j, dp := range dc.products {
				p := model.Product{
					CategoryID:  cat.ID,
					Slug:        dp.slug,
					Price:       decimal.RequireFromString(dp.price),
					IsAvailable: true,
					IsPopular:   dp.popular,
					Position:    int64(j),
				}
				p.SetLocalizable(dp.name)
				if _, err := q.CreateProduct(ctx, p, now); err != nil {
					return fmt.Errorf("creating product %s: %w", dp.slug, err)
				}
				products++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("seeded demo menu", "categories", len(demoMenu), "products", products)
	return nil
}
