// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"strings"
	"time"

	"github.com/olegiv/storefront/internal/model"
)

const categoryColumns = `id, slug, name, description, icon, position, is_active, translations, created_at, updated_at`

func scanCategory(s scanner) (model.Category, error) {
	var c model.Category
	err := s.Scan(&c.ID, &c.Slug, &c.Name, &c.Description, &c.Icon, &c.Position, &c.IsActive,
		&c.Translations, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const createCategory = `INSERT INTO categories (slug, name, description, icon, position, is_active, translations, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + categoryColumns

// CreateCategory inserts a category.
func (q *Queries) CreateCategory(ctx context.Context, c model.Category, now time.Time) (model.Category, error) {
	row := q.db.QueryRowContext(ctx, createCategory,
		c.Slug, c.Name, c.Description, c.Icon, c.Position, boolToInt(c.IsActive), c.Translations, now, now)
	return scanCategory(row)
}

const getCategory = `SELECT ` + categoryColumns + ` FROM categories WHERE id = ?`

// GetCategory returns a category by id.
func (q *Queries) GetCategory(ctx context.Context, id int64) (model.Category, error) {
	return scanCategory(q.db.QueryRowContext(ctx, getCategory, id))
}

const getCategoryBySlug = `SELECT ` + categoryColumns + ` FROM categories WHERE slug = ?`

// GetCategoryBySlug returns a category by slug.
func (q *Queries) GetCategoryBySlug(ctx context.Context, slug string) (model.Category, error) {
	return scanCategory(q.db.QueryRowContext(ctx, getCategoryBySlug, slug))
}

const listCategories = `SELECT ` + categoryColumns + ` FROM categories
WHERE (? = 0 OR is_active = 1)
ORDER BY position, id LIMIT ? OFFSET ?`

// ListCategories returns a page of categories in menu order.
func (q *Queries) ListCategories(ctx context.Context, activeOnly bool, limit, offset int64) ([]model.Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, boolToInt(activeOnly), limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const countCategories = `SELECT COUNT(*) FROM categories WHERE (? = 0 OR is_active = 1)`

// CountCategories returns the number of categories.
func (q *Queries) CountCategories(ctx context.Context, activeOnly bool) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countCategories, boolToInt(activeOnly)).Scan(&n)
	return n, err
}

const updateCategory = `UPDATE categories
SET slug = ?, name = ?, description = ?, icon = ?, position = ?, is_active = ?, translations = ?, updated_at = ?
WHERE id = ?
RETURNING ` + categoryColumns

// UpdateCategory replaces the editable columns of a category.
func (q *Queries) UpdateCategory(ctx context.Context, c model.Category, now time.Time) (model.Category, error) {
	row := q.db.QueryRowContext(ctx, updateCategory,
		c.Slug, c.Name, c.Description, c.Icon, c.Position, boolToInt(c.IsActive), c.Translations, now, c.ID)
	return scanCategory(row)
}

const deleteCategory = `DELETE FROM categories WHERE id = ?`

// DeleteCategory removes a category and its products.
func (q *Queries) DeleteCategory(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteCategory, id)
	return err
}

const productColumns = `id, category_id, slug, name, description, ingredients, price, image_url,
is_available, is_popular, position, translations, created_at, updated_at`

func scanProduct(s scanner) (model.Product, error) {
	var p model.Product
	err := s.Scan(&p.ID, &p.CategoryID, &p.Slug, &p.Name, &p.Description, &p.Ingredients, &p.Price,
		&p.ImageURL, &p.IsAvailable, &p.IsPopular, &p.Position, &p.Translations, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const createProduct = `INSERT INTO products (category_id, slug, name, description, ingredients, price, image_url,
is_available, is_popular, position, translations, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + productColumns

// CreateProduct inserts a product.
func (q *Queries) CreateProduct(ctx context.Context, p model.Product, now time.Time) (model.Product, error) {
	row := q.db.QueryRowContext(ctx, createProduct,
		p.CategoryID, p.Slug, p.Name, p.Description, p.Ingredients, p.Price.String(), p.ImageURL,
		boolToInt(p.IsAvailable), boolToInt(p.IsPopular), p.Position, p.Translations, now, now)
	return scanProduct(row)
}

const getProduct = `SELECT ` + productColumns + ` FROM products WHERE id = ?`

// GetProduct returns a product by id.
func (q *Queries) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	return scanProduct(q.db.QueryRowContext(ctx, getProduct, id))
}

const getProductBySlug = `SELECT ` + productColumns + ` FROM products WHERE slug = ?`

// GetProductBySlug returns a product by slug.
func (q *Queries) GetProductBySlug(ctx context.Context, slug string) (model.Product, error) {
	return scanProduct(q.db.QueryRowContext(ctx, getProductBySlug, slug))
}

// ListProductsParams filters a product listing. Zero CategoryID means all categories.
type ListProductsParams struct {
	CategoryID    int64
	AvailableOnly bool
	PopularOnly   bool
	Limit         int64
	Offset        int64
}

const productFilter = `WHERE (? = 0 OR category_id = ?)
AND (? = 0 OR is_available = 1)
AND (? = 0 OR is_popular = 1)`

const listProducts = `SELECT ` + productColumns + ` FROM products ` + productFilter + `
ORDER BY position, id LIMIT ? OFFSET ?`

// ListProducts returns a page of products in menu order.
func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]model.Product, error) {
	rows, err := q.db.QueryContext(ctx, listProducts,
		arg.CategoryID, arg.CategoryID, boolToInt(arg.AvailableOnly), boolToInt(arg.PopularOnly),
		arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

const countProducts = `SELECT COUNT(*) FROM products ` + productFilter

// CountProducts counts products matching the filter of arg.
func (q *Queries) CountProducts(ctx context.Context, arg ListProductsParams) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countProducts,
		arg.CategoryID, arg.CategoryID, boolToInt(arg.AvailableOnly), boolToInt(arg.PopularOnly)).Scan(&n)
	return n, err
}

// GetProductsByIDs returns the products with the given ids, keyed by id.
func (q *Queries) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error) {
	out := make(map[int64]model.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	items, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range items {
		out[p.ID] = p
	}
	return out, nil
}

// ActiveCategoryIDs returns which of the given category ids are active.
// Unknown ids are absent from the result.
func (q *Queries) ActiveCategoryIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT id FROM categories WHERE is_active = 1 AND id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

func collectProducts(rows interface {
	scanner
	Next() bool
	Err() error
	Close() error
}) ([]model.Product, error) {
	defer func() { _ = rows.Close() }()
	var items []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const updateProduct = `UPDATE products
SET category_id = ?, slug = ?, name = ?, description = ?, ingredients = ?, price = ?, image_url = ?,
is_available = ?, is_popular = ?, position = ?, translations = ?, updated_at = ?
WHERE id = ?
RETURNING ` + productColumns

// UpdateProduct replaces the editable columns of a product.
func (q *Queries) UpdateProduct(ctx context.Context, p model.Product, now time.Time) (model.Product, error) {
	row := q.db.QueryRowContext(ctx, updateProduct,
		p.CategoryID, p.Slug, p.Name, p.Description, p.Ingredients, p.Price.String(), p.ImageURL,
		boolToInt(p.IsAvailable), boolToInt(p.IsPopular), p.Position, p.Translations, now, p.ID)
	return scanProduct(row)
}

const deleteProduct = `DELETE FROM products WHERE id = ?`

// DeleteProduct removes a product.
func (q *Queries) DeleteProduct(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteProduct, id)
	return err
}

const categorySlugTaken = `SELECT EXISTS(SELECT 1 FROM categories WHERE slug = ? AND id != ?)`

// CategorySlugTaken reports whether another category uses slug.
func (q *Queries) CategorySlugTaken(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var taken bool
	err := q.db.QueryRowContext(ctx, categorySlugTaken, slug, excludeID).Scan(&taken)
	return taken, err
}

const productSlugTaken = `SELECT EXISTS(SELECT 1 FROM products WHERE slug = ? AND id != ?)`

// ProductSlugTaken reports whether another product uses slug.
func (q *Queries) ProductSlugTaken(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var taken bool
	err := q.db.QueryRowContext(ctx, productSlugTaken, slug, excludeID).Scan(&taken)
	return taken, err
}
