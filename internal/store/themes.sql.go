// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/olegiv/storefront/internal/model"
)

const themeColumns = `id, name, is_active, colors, radius, created_at, updated_at`

func scanTheme(s scanner) (model.Theme, error) {
	var (
		t      model.Theme
		colors string
	)
	if err := s.Scan(&t.ID, &t.Name, &t.IsActive, &colors, &t.Radius, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return model.Theme{}, err
	}
	if colors != "" {
		if err := json.Unmarshal([]byte(colors), &t.ThemeColors); err != nil {
			return model.Theme{}, fmt.Errorf("decoding theme colors: %w", err)
		}
	}
	return t, nil
}

func encodeColors(c model.ThemeColors) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encoding theme colors: %w", err)
	}
	return string(b), nil
}

const createTheme = `INSERT INTO themes (name, is_active, colors, radius, created_at, updated_at)
VALUES (?, 0, ?, ?, ?, ?)
RETURNING ` + themeColumns

// CreateTheme inserts an inactive theme. Use ActivateTheme to make it active.
func (q *Queries) CreateTheme(ctx context.Context, t model.Theme, now time.Time) (model.Theme, error) {
	colors, err := encodeColors(t.ThemeColors)
	if err != nil {
		return model.Theme{}, err
	}
	return scanTheme(q.db.QueryRowContext(ctx, createTheme, t.Name, colors, t.Radius, now, now))
}

const getTheme = `SELECT ` + themeColumns + ` FROM themes WHERE id = ?`

// GetTheme returns a theme by id.
func (q *Queries) GetTheme(ctx context.Context, id int64) (model.Theme, error) {
	return scanTheme(q.db.QueryRowContext(ctx, getTheme, id))
}

const getActiveTheme = `SELECT ` + themeColumns + ` FROM themes WHERE is_active = 1 LIMIT 1`

// GetActiveTheme returns the active theme.
func (q *Queries) GetActiveTheme(ctx context.Context) (model.Theme, error) {
	return scanTheme(q.db.QueryRowContext(ctx, getActiveTheme))
}

const listThemes = `SELECT ` + themeColumns + ` FROM themes ORDER BY is_active DESC, name LIMIT ? OFFSET ?`

// ListThemes returns a page of themes, active first.
func (q *Queries) ListThemes(ctx context.Context, limit, offset int64) ([]model.Theme, error) {
	rows, err := q.db.QueryContext(ctx, listThemes, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []model.Theme
	for rows.Next() {
		t, err := scanTheme(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const countThemes = `SELECT COUNT(*) FROM themes`

// CountThemes returns the number of themes.
func (q *Queries) CountThemes(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countThemes).Scan(&n)
	return n, err
}

const updateTheme = `UPDATE themes SET name = ?, colors = ?, radius = ?, updated_at = ?
WHERE id = ?
RETURNING ` + themeColumns

// UpdateTheme updates a theme's name and tokens.
func (q *Queries) UpdateTheme(ctx context.Context, t model.Theme, now time.Time) (model.Theme, error) {
	colors, err := encodeColors(t.ThemeColors)
	if err != nil {
		return model.Theme{}, err
	}
	return scanTheme(q.db.QueryRowContext(ctx, updateTheme, t.Name, colors, t.Radius, now, t.ID))
}

const (
	deactivateThemes = `UPDATE themes SET is_active = 0 WHERE is_active = 1`
	activateTheme    = `UPDATE themes SET is_active = 1, updated_at = ? WHERE id = ?`
)

// ActivateTheme makes id the only active theme. Run it inside InTx.
func (q *Queries) ActivateTheme(ctx context.Context, id int64, now time.Time) error {
	if _, err := q.GetTheme(ctx, id); err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, deactivateThemes); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx, activateTheme, now, id)
	return err
}

const deleteTheme = `DELETE FROM themes WHERE id = ?`

// DeleteTheme removes a theme.
func (q *Queries) DeleteTheme(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteTheme, id)
	return err
}
