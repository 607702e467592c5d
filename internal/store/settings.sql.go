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

const getStoreSettings = `SELECT payload, updated_at FROM store_settings WHERE id = 1`

// GetStoreSettings returns the singleton settings row.
// It returns sql.ErrNoRows when settings were never saved.
func (q *Queries) GetStoreSettings(ctx context.Context) (model.StoreSettings, error) {
	var (
		payload   string
		updatedAt time.Time
	)
	if err := q.db.QueryRowContext(ctx, getStoreSettings).Scan(&payload, &updatedAt); err != nil {
		return model.StoreSettings{}, err
	}
	s := model.DefaultStoreSettings()
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return model.StoreSettings{}, fmt.Errorf("decoding store settings: %w", err)
	}
	if s.Text == nil {
		s.Text = model.Fields{}
	}
	if s.WorkingHours == nil {
		s.WorkingHours = map[string]string{}
	}
	s.UpdatedAt = updatedAt
	return s, nil
}

const upsertStoreSettings = `INSERT INTO store_settings (id, payload, updated_at) VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`

// UpsertStoreSettings saves the singleton settings row.
func (q *Queries) UpsertStoreSettings(ctx context.Context, s model.StoreSettings, now time.Time) error {
	s.UpdatedAt = now
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding store settings: %w", err)
	}
	_, err = q.db.ExecContext(ctx, upsertStoreSettings, string(payload), now)
	return err
}
