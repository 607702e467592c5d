// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/store"
)

// pageSize is the batch size used when reading whole tables.
const pageSize = 500

// Exporter handles exporting store content to JSON format.
type Exporter struct {
	store  *store.Queries
	logger *slog.Logger
	now    func() time.Time
}

// NewExporter creates a new Exporter instance.
func NewExporter(queries *store.Queries, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		store:  queries,
		logger: logger,
		now:    time.Now,
	}
}

// Export generates an ExportData structure based on the provided options.
func (e *Exporter) Export(ctx context.Context, opts ExportOptions) (*ExportData, error) {
	data := &ExportData{
		Version:    ExportVersion,
		ExportedAt: e.now().UTC(),
	}

	if opts.IncludeSettings {
		s, err := e.store.GetStoreSettings(ctx)
		if err != nil {
			return nil, fmt.Errorf("exporting settings: %w", err)
		}
		data.Settings = &s
	}

	if opts.IncludeMenu {
		slugs, err := e.exportCategories(ctx, data, opts.AvailableOnly)
		if err != nil {
			return nil, fmt.Errorf("exporting categories: %w", err)
		}
		if err := e.exportProducts(ctx, data, slugs, opts.AvailableOnly); err != nil {
			return nil, fmt.Errorf("exporting products: %w", err)
		}
	}

	if opts.IncludeThemes {
		if err := e.exportThemes(ctx, data); err != nil {
			return nil, fmt.Errorf("exporting themes: %w", err)
		}
	}

	e.logger.Debug("export built",
		"categories", len(data.Categories),
		"products", len(data.Products),
		"themes", len(data.Themes))
	return data, nil
}

// ExportToWriter writes the export as JSON to the provided writer.
func (e *Exporter) ExportToWriter(ctx context.Context, opts ExportOptions, w io.Writer) error {
	data, err := e.Export(ctx, opts)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// exportCategories appends categories in menu order and returns the id to
// slug map used by products.
func (e *Exporter) exportCategories(ctx context.Context, data *ExportData, activeOnly bool) (map[int64]string, error) {
	slugs := make(map[int64]string)
	for offset := int64(0); ; offset += pageSize {
		batch, err := e.store.ListCategories(ctx, activeOnly, pageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, c := range batch {
			slugs[c.ID] = c.Slug
			data.Categories = append(data.Categories, ExportCategory{
				Slug:         c.Slug,
				Name:         c.Name,
				Description:  c.Description,
				Icon:         c.Icon,
				Position:     c.Position,
				IsActive:     c.IsActive,
				Translations: nonEmpty(c.Translations),
			})
		}
		if len(batch) < pageSize {
			return slugs, nil
		}
	}
}

func (e *Exporter) exportProducts(ctx context.Context, data *ExportData, categories map[int64]string, availableOnly bool) error {
	arg := store.ListProductsParams{AvailableOnly: availableOnly, Limit: pageSize}
	for ; ; arg.Offset += pageSize {
		batch, err := e.store.ListProducts(ctx, arg)
		if err != nil {
			return err
		}
		for _, p := range batch {
			slug, ok := categories[p.CategoryID]
			if !ok {
				// Category filtered out as inactive.
				continue
			}
			data.Products = append(data.Products, ExportProduct{
				Slug:         p.Slug,
				CategorySlug: slug,
				Name:         p.Name,
				Description:  p.Description,
				Ingredients:  p.Ingredients,
				Price:        p.Price,
				ImageURL:     p.ImageURL,
				IsAvailable:  p.IsAvailable,
				IsPopular:    p.IsPopular,
				Position:     p.Position,
				Translations: nonEmpty(p.Translations),
			})
		}
		if len(batch) < pageSize {
			return nil
		}
	}
}

func (e *Exporter) exportThemes(ctx context.Context, data *ExportData) error {
	for offset := int64(0); ; offset += pageSize {
		batch, err := e.store.ListThemes(ctx, pageSize, offset)
		if err != nil {
			return err
		}
		for _, t := range batch {
			data.Themes = append(data.Themes, ExportTheme{
				Name:        t.Name,
				IsActive:    t.IsActive,
				ThemeColors: t.ThemeColors,
				Radius:      t.Radius,
			})
		}
		if len(batch) < pageSize {
			return nil
		}
	}
}

// nonEmpty drops blank sibling values; they mean "inherit" anyway.
func nonEmpty(f model.Fields) model.Fields {
	out := model.Fields{}
	for k, v := range f {
		if v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
