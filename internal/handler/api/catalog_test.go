// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/util"
)

func TestListCategoriesLocalized(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog()
	c := env.client()

	tests := []struct {
		lang string
		want string
	}{
		{"ru", "Пицца"},
		{"en", "Pizza"},
		{"he", "פיצה"},
		{"ar", "Пицца"},
	}
	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			rr := c.do(http.MethodGet, "/categories?lang="+tt.lang, nil)
			require.Equal(t, http.StatusOK, rr.Code)
			env := decode(t, rr)
			require.NotNil(t, env.Meta)
			assert.Equal(t, int64(1), env.Meta.Total, "inactive categories are hidden")

			views := decodeData[[]CategoryView](t, rr)
			require.Len(t, views, 1)
			assert.Equal(t, tt.want, views[0].Name)
		})
	}
}

func TestGetCategory(t *testing.T) {
	env := newTestEnv(t)
	cat, _, _ := env.seedCatalog()
	hidden, err := env.queries.GetCategoryBySlug(t.Context(), "hidden")
	require.NoError(t, err)
	c := env.client()

	rr := c.do(http.MethodGet, fmt.Sprintf("/categories/%d?lang=en", cat.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Pizza", decodeData[CategoryView](t, rr).Name)

	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, fmt.Sprintf("/categories/%d", hidden.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/categories/9999", nil).Code)
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/categories/abc", nil).Code)
}

func TestListProducts(t *testing.T) {
	env := newTestEnv(t)
	cat, margherita, _ := env.seedCatalog()
	c := env.client()

	rr := c.do(http.MethodGet, fmt.Sprintf("/products?category_id=%d&lang=en", cat.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	views := decodeData[[]ProductView](t, rr)
	require.Len(t, views, 1, "unavailable products are hidden")
	assert.Equal(t, margherita.ID, views[0].ID)
	assert.Equal(t, "Margherita", views[0].Name)
	assert.True(t, views[0].Price.Equal(decimal.NewFromInt(40)))

	rr = c.do(http.MethodGet, "/products?category_id=9999", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decodeData[[]ProductView](t, rr))

	rr = c.do(http.MethodGet, "/products?popular=true&per_page=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	meta := decode(t, rr).Meta
	require.NotNil(t, meta)
	assert.Equal(t, 1, meta.PerPage)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)
	_, margherita, _ := env.seedCatalog()
	c := env.client()

	rr := c.do(http.MethodGet, fmt.Sprintf("/products/%d?lang=he", margherita.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Маргарита", decodeData[ProductView](t, rr).Name, "falls back to the primary name")

	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/products/9999", nil).Code)
}

func TestAdminCategoryCRUD(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminClient()

	rr := admin.do(http.MethodPost, "/admin/categories", CategoryRequest{
		Name: "Напитки", IsActive: true,
		Translations: map[string]string{"name_en": "Drinks"},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	first := decodeData[model.Category](t, rr)
	assert.True(t, util.IsValidSlug(first.Slug), first.Slug)
	assert.Equal(t, "Drinks", first.Translations["name_en"])

	rr = admin.do(http.MethodPost, "/admin/categories", CategoryRequest{Name: "Напитки"})
	require.Equal(t, http.StatusCreated, rr.Code)
	second := decodeData[model.Category](t, rr)
	assert.Equal(t, first.Slug+"-2", second.Slug)

	rr = admin.do(http.MethodPut, fmt.Sprintf("/admin/categories/%d", second.ID), CategoryRequest{
		Slug: first.Slug, Name: "Соки",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode(t, rr).Error.Details, "slug")

	rr = admin.do(http.MethodPut, fmt.Sprintf("/admin/categories/%d", second.ID), CategoryRequest{
		Slug: "juices", Name: "Соки", IsActive: true,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "juices", decodeData[model.Category](t, rr).Slug)

	rr = admin.do(http.MethodPost, "/admin/categories", CategoryRequest{
		Name: "X", Translations: map[string]string{"price_en": "1"},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode(t, rr).Error.Details, "translations.price_en")

	rr = admin.do(http.MethodGet, "/admin/categories", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(2), decode(t, rr).Meta.Total)

	assert.Equal(t, http.StatusNoContent, admin.do(http.MethodDelete, fmt.Sprintf("/admin/categories/%d", second.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, admin.do(http.MethodGet, fmt.Sprintf("/admin/categories/%d", second.ID), nil).Code)
}

func TestAdminProductCRUD(t *testing.T) {
	env := newTestEnv(t)
	cat, _, _ := env.seedCatalog()
	admin := env.adminClient()

	rr := admin.do(http.MethodPost, "/admin/products", ProductRequest{
		CategoryID: 9999, Name: "Ghost", Price: decimal.NewFromInt(1),
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode(t, rr).Error.Details, "categoryId")

	rr = admin.do(http.MethodPost, "/admin/products", ProductRequest{
		CategoryID: cat.ID, Name: "Pepperoni", Price: decimal.RequireFromString("52.50"),
		IsAvailable: true, Translations: map[string]string{"ingredients_en": "salami"},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	p := decodeData[model.Product](t, rr)
	assert.Equal(t, "pepperoni", p.Slug)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("52.5")))

	rr = admin.do(http.MethodPost, "/admin/products", ProductRequest{
		CategoryID: cat.ID, Name: "Bad", Price: decimal.NewFromInt(-5),
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = admin.do(http.MethodPut, fmt.Sprintf("/admin/products/%d", p.ID), ProductRequest{
		CategoryID: cat.ID, Name: "Pepperoni", Price: decimal.NewFromInt(55), IsAvailable: false,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decodeData[model.Product](t, rr).IsAvailable)

	rr = admin.do(http.MethodGet, fmt.Sprintf("/admin/products?category_id=%d", cat.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(3), decode(t, rr).Meta.Total, "admin listing includes unavailable products")

	assert.Equal(t, http.StatusNoContent, admin.do(http.MethodDelete, fmt.Sprintf("/admin/products/%d", p.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, admin.do(http.MethodDelete, fmt.Sprintf("/admin/products/%d", p.ID), nil).Code)
}

func TestAdminWritesInvalidateCatalogCache(t *testing.T) {
	env := newTestEnv(t)
	cat, margherita, _ := env.seedCatalog()
	c := env.client()
	admin := env.adminClient()

	path := fmt.Sprintf("/products/%d?lang=en", margherita.ID)
	require.Equal(t, "Margherita", decodeData[ProductView](t, c.do(http.MethodGet, path, nil)).Name)

	rr := admin.do(http.MethodPut, fmt.Sprintf("/admin/products/%d", margherita.ID), ProductRequest{
		CategoryID: cat.ID, Name: "Маргарита", Price: decimal.NewFromInt(45), IsAvailable: true,
		Translations: map[string]string{"name_en": "Margherita Classic"},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	got := decodeData[ProductView](t, c.do(http.MethodGet, path, nil))
	assert.Equal(t, "Margherita Classic", got.Name)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(45)))
}

func TestUpdateProductText(t *testing.T) {
	env := newTestEnv(t)
	_, margherita, _ := env.seedCatalog()
	admin := env.adminClient()
	path := fmt.Sprintf("/admin/products/%d/text", margherita.ID)

	rr := admin.do(http.MethodPut, path, LocalizedUpdateRequest{
		Lang:   "he",
		Values: map[string]string{model.FieldName: "מרגריטה", model.FieldIngredients: "עגבניות"},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	p := decodeData[model.Product](t, rr)
	assert.Equal(t, "מרגריטה", p.Translations["name_he"])
	assert.Equal(t, "עגבניות", p.Translations["ingredients_he"])
	assert.Equal(t, "Маргарита", p.Name)

	rr = admin.do(http.MethodPut, path, LocalizedUpdateRequest{
		Lang:   "ru",
		Values: map[string]string{model.FieldName: "Маргарита Классика"},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Маргарита Классика", decodeData[model.Product](t, rr).Name)

	rr = admin.do(http.MethodPut, path, LocalizedUpdateRequest{
		Lang:   "en",
		Values: map[string]string{"storeName": "nope"},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode(t, rr).Error.Details, "values.storeName")

	rr = admin.do(http.MethodPut, "/admin/products/9999/text", LocalizedUpdateRequest{
		Lang: "en", Values: map[string]string{model.FieldName: "x"},
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCopyCategoryText(t *testing.T) {
	env := newTestEnv(t)
	cat, _, _ := env.seedCatalog()
	admin := env.adminClient()
	path := fmt.Sprintf("/admin/categories/%d/copy-from-default", cat.ID)

	rr := admin.do(http.MethodPost, path, CopyFromDefaultRequest{Lang: "ar"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decodeData[model.Category](t, rr)
	assert.Equal(t, "Пицца", got.Translations["name_ar"])
	assert.Equal(t, "Pizza", got.Translations["name_en"], "other languages untouched")

	rr = admin.do(http.MethodPost, path, CopyFromDefaultRequest{Lang: "ru"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = admin.do(http.MethodPost, path, CopyFromDefaultRequest{Lang: "en", Fields: []string{model.FieldIngredients}})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "categories have no ingredients")
}

func TestUniqueSlug(t *testing.T) {
	env := newTestEnv(t)
	used := map[string]bool{"pizza": true, "pizza-2": true}
	taken := func(_ context.Context, slug string, _ int64) (bool, error) { return used[slug], nil }

	got, err := env.handler.uniqueSlug(t.Context(), "", "Pizza", "product", 0, taken)
	require.NoError(t, err)
	assert.Equal(t, "pizza-3", got)

	got, err = env.handler.uniqueSlug(t.Context(), "", "!!!", "product", 0, taken)
	require.NoError(t, err)
	assert.Equal(t, "product", got)

	_, err = env.handler.uniqueSlug(t.Context(), "x", "", "", 0,
		func(context.Context, string, int64) (bool, error) { return false, errors.New("db down") })
	assert.Error(t, err)
}
