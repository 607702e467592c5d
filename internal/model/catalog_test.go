// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductLocalizableRoundTrip(t *testing.T) {
	p := &Product{Name: "Пицца", Translations: Fields{"name_en": "Pizza"}}

	f := p.Localizable()
	assert.Equal(t, "Пицца", f["name"])
	assert.Equal(t, "Pizza", f["name_en"])

	p.SetLocalizable(Fields{"name_he": "פיצה", "ingredients": "сыр"})
	assert.Equal(t, "Пицца", p.Name)
	assert.Equal(t, "сыр", p.Ingredients)
	assert.Equal(t, "פיצה", p.Translations["name_he"])
	_, leaked := p.Translations["ingredients"]
	assert.False(t, leaked, "base keys must not be stored as translations")
}

func TestCategorySetLocalizableNilTranslations(t *testing.T) {
	c := &Category{}
	c.SetLocalizable(Fields{"name": "Супы", "name_ar": "شوربات"})
	assert.Equal(t, "Супы", c.Name)
	assert.Equal(t, "شوربات", c.Translations["name_ar"])
}

func TestFieldsScan(t *testing.T) {
	var f Fields
	require.NoError(t, f.Scan(`{"name_en":"Soup"}`))
	assert.Equal(t, "Soup", f["name_en"])

	require.NoError(t, f.Scan(nil))
	assert.Empty(t, f)

	assert.Error(t, f.Scan(42))
	assert.Error(t, f.Scan("{not json"))
}

func TestOrderSubtotal(t *testing.T) {
	o := &Order{Items: []OrderItem{
		{Price: decimal.RequireFromString("12.50"), Quantity: 2},
		{Price: decimal.RequireFromString("3.10"), Quantity: 3},
	}}
	assert.Equal(t, "34.3", o.ComputeSubtotal().String())
	assert.True(t, IsValidOrderStatus("delivering"))
	assert.False(t, IsValidOrderStatus("lost"))
}
