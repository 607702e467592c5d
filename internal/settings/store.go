// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package settings

import (
	"context"
	"fmt"

	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/store"
)

// StoreFetcher reads settings from the store_settings table.
type StoreFetcher struct {
	queries *store.Queries
}

// NewStoreFetcher creates a Fetcher backed by queries.
func NewStoreFetcher(queries *store.Queries) *StoreFetcher {
	return &StoreFetcher{queries: queries}
}

// FetchSettings implements Fetcher.
func (f *StoreFetcher) FetchSettings(ctx context.Context) (model.StoreSettings, error) {
	s, err := f.queries.GetStoreSettings(ctx)
	if err != nil {
		return model.StoreSettings{}, fmt.Errorf("loading store settings: %w", err)
	}
	return s, nil
}
