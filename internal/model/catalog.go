// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Translatable field base keys of catalog entities.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldIngredients = "ingredients"
)

// CategoryFields lists the translatable base keys of a Category.
var CategoryFields = []string{FieldName, FieldDescription}

// ProductFields lists the translatable base keys of a Product.
var ProductFields = []string{FieldName, FieldDescription, FieldIngredients}

// Category groups products on the menu.
type Category struct {
	ID           int64     `json:"id"`
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Icon         string    `json:"icon"`
	Position     int64     `json:"position"`
	IsActive     bool      `json:"isActive"`
	Translations Fields    `json:"translations"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Localizable returns the base values merged with the stored sibling keys.
func (c *Category) Localizable() Fields {
	f := c.Translations.Clone()
	f[FieldName] = c.Name
	f[FieldDescription] = c.Description
	return f
}

// SetLocalizable writes base keys to the columns and everything else to Translations.
func (c *Category) SetLocalizable(f Fields) {
	if c.Translations == nil {
		c.Translations = Fields{}
	}
	for k, v := range f {
		switch k {
		case FieldName:
			c.Name = v
		case FieldDescription:
			c.Description = v
		default:
			c.Translations[k] = v
		}
	}
}

// Product is a menu item.
type Product struct {
	ID           int64           `json:"id"`
	CategoryID   int64           `json:"categoryId"`
	Slug         string          `json:"slug"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Ingredients  string          `json:"ingredients"`
	Price        decimal.Decimal `json:"price"`
	ImageURL     string          `json:"imageUrl"`
	IsAvailable  bool            `json:"isAvailable"`
	IsPopular    bool            `json:"isPopular"`
	Position     int64           `json:"position"`
	Translations Fields          `json:"translations"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Localizable returns the base values merged with the stored sibling keys.
func (p *Product) Localizable() Fields {
	f := p.Translations.Clone()
	f[FieldName] = p.Name
	f[FieldDescription] = p.Description
	f[FieldIngredients] = p.Ingredients
	return f
}

// SetLocalizable writes base keys to the columns and everything else to Translations.
func (p *Product) SetLocalizable(f Fields) {
	if p.Translations == nil {
		p.Translations = Fields{}
	}
	for k, v := range f {
		switch k {
		case FieldName:
			p.Name = v
		case FieldDescription:
			p.Description = v
		case FieldIngredients:
			p.Ingredients = v
		default:
			p.Translations[k] = v
		}
	}
}
