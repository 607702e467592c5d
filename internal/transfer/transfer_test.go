// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package transfer

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	db, err := store.NewDB(filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	require.NoError(t, store.Seed(context.Background(), db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// demoExport exports a freshly seeded demo store.
func demoExport(t *testing.T) *ExportData {
	t.Helper()
	ctx := context.Background()
	db := testDB(t, "source.db")
	require.NoError(t, store.SeedDemo(ctx, db))

	exp := NewExporter(store.New(db), testLogger())
	exp.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	data, err := exp.Export(ctx, DefaultExportOptions())
	require.NoError(t, err)
	return data
}

func TestExport(t *testing.T) {
	data := demoExport(t)

	assert.Equal(t, ExportVersion, data.Version)
	assert.Equal(t, 2026, data.ExportedAt.Year())
	require.NotNil(t, data.Settings)
	require.Len(t, data.Categories, 3)
	require.Len(t, data.Products, 4)
	require.Len(t, data.Themes, 1)
	assert.True(t, data.Themes[0].IsActive)

	pizza := data.Categories[0]
	assert.Equal(t, "pizza", pizza.Slug)
	assert.Equal(t, "Пицца", pizza.Name)
	assert.Equal(t, "Pizza", pizza.Translations["name_en"])

	bySlug := map[string]ExportProduct{}
	for _, p := range data.Products {
		bySlug[p.Slug] = p
	}
	assert.Equal(t, "pizza", bySlug["margherita"].CategorySlug)
	assert.True(t, bySlug["lemonade"].Price.Equal(decimal.RequireFromString("12.5")))
	// Blank siblings are not exported.
	_, ok := bySlug["borscht"].Translations["name_he"]
	assert.False(t, ok)
}

func TestExport_Options(t *testing.T) {
	ctx := context.Background()
	db := testDB(t, "options.db")
	require.NoError(t, store.SeedDemo(ctx, db))
	q := store.New(db)

	drinks, err := q.GetCategoryBySlug(ctx, "drinks")
	require.NoError(t, err)
	drinks.IsActive = false
	_, err = q.UpdateCategory(ctx, drinks, time.Now().UTC())
	require.NoError(t, err)

	data, err := NewExporter(q, testLogger()).Export(ctx, ExportOptions{IncludeMenu: true, AvailableOnly: true})
	require.NoError(t, err)
	assert.Nil(t, data.Settings)
	assert.Empty(t, data.Themes)
	assert.Len(t, data.Categories, 2)
	for _, p := range data.Products {
		assert.NotEqual(t, "drinks", p.CategorySlug)
	}
}

func TestExportToWriter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := testDB(t, "src.db")
	require.NoError(t, store.SeedDemo(ctx, src))

	var buf bytes.Buffer
	require.NoError(t, NewExporter(store.New(src), testLogger()).ExportToWriter(ctx, DefaultExportOptions(), &buf))
	assert.Contains(t, buf.String(), `"category_slug": "pizza"`)

	dst := testDB(t, "dst.db")
	result, err := NewImporter(dst, testLogger()).ImportFromReader(ctx, &buf, DefaultImportOptions())
	require.NoError(t, err)
	assert.True(t, result.Success, result.Errors)
	assert.Equal(t, 3, result.Created[EntityCategories])
	assert.Equal(t, 4, result.Created[EntityProducts])
	// The seeded default theme already exists.
	assert.Equal(t, 1, result.Skipped[EntityThemes])

	q := store.New(dst)
	p, err := q.GetProductBySlug(ctx, "margherita")
	require.NoError(t, err)
	cat, err := q.GetCategory(ctx, p.CategoryID)
	require.NoError(t, err)
	assert.Equal(t, "pizza", cat.Slug)
	assert.Equal(t, "Margherita", p.Translations["name_en"])
	assert.True(t, p.Price.Equal(decimal.NewFromInt(45)))
}

func TestImport_ConflictStrategies(t *testing.T) {
	ctx := context.Background()

	t.Run("skip", func(t *testing.T) {
		data := demoExport(t)
		db := testDB(t, "skip.db")
		require.NoError(t, store.SeedDemo(ctx, db))
		data.Products[0].Name = "Changed"

		result, err := NewImporter(db, testLogger()).Import(ctx, data, DefaultImportOptions())
		require.NoError(t, err)
		assert.Equal(t, 3, result.Skipped[EntityCategories])
		assert.Equal(t, 4, result.Skipped[EntityProducts])
		assert.Zero(t, result.TotalCreated())

		p, err := store.New(db).GetProductBySlug(ctx, data.Products[0].Slug)
		require.NoError(t, err)
		assert.NotEqual(t, "Changed", p.Name)
	})

	t.Run("overwrite", func(t *testing.T) {
		data := demoExport(t)
		db := testDB(t, "overwrite.db")
		require.NoError(t, store.SeedDemo(ctx, db))
		q := store.New(db)
		before, err := q.GetProductBySlug(ctx, "margherita")
		require.NoError(t, err)

		for i := range data.Products {
			if data.Products[i].Slug == "margherita" {
				data.Products[i].Price = decimal.NewFromInt(49)
			}
		}
		data.Themes[0].PrimaryColor = "#123456"

		result, err := NewImporter(db, testLogger()).Import(ctx, data, DefaultImportOptions().with(ConflictOverwrite))
		require.NoError(t, err)
		assert.True(t, result.Success, result.Errors)
		assert.Equal(t, 3, result.Updated[EntityCategories])
		assert.Equal(t, 4, result.Updated[EntityProducts])
		assert.Equal(t, 1, result.Updated[EntityThemes])

		after, err := q.GetProductBySlug(ctx, "margherita")
		require.NoError(t, err)
		assert.Equal(t, before.ID, after.ID)
		assert.True(t, after.Price.Equal(decimal.NewFromInt(49)))

		active, err := q.GetActiveTheme(ctx)
		require.NoError(t, err)
		assert.Equal(t, "#123456", active.PrimaryColor)
	})

	t.Run("rename", func(t *testing.T) {
		data := demoExport(t)
		db := testDB(t, "rename.db")
		require.NoError(t, store.SeedDemo(ctx, db))

		result, err := NewImporter(db, testLogger()).Import(ctx, data, DefaultImportOptions().with(ConflictRename))
		require.NoError(t, err)
		assert.True(t, result.Success, result.Errors)
		assert.Equal(t, 3, result.Created[EntityCategories])
		assert.Equal(t, 4, result.Created[EntityProducts])
		assert.Equal(t, 1, result.Created[EntityThemes])

		q := store.New(db)
		renamed, err := q.GetProductBySlug(ctx, "margherita-2")
		require.NoError(t, err)
		cat, err := q.GetCategory(ctx, renamed.CategoryID)
		require.NoError(t, err)
		assert.Equal(t, "pizza-2", cat.Slug, "products follow their renamed category")

		themes, err := q.ListThemes(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, themes, 2)
		assert.Equal(t, "Default", themes[0].Name, "import never activates a theme")
		assert.Equal(t, "Default 2", themes[1].Name)
	})
}

func (o ImportOptions) with(s ConflictStrategy) ImportOptions {
	o.ConflictStrategy = s
	return o
}

func TestImport_DryRun(t *testing.T) {
	ctx := context.Background()
	data := demoExport(t)
	db := testDB(t, "dry.db")

	opts := DefaultImportOptions()
	opts.DryRun = true
	result, err := NewImporter(db, testLogger()).Import(ctx, data, opts)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 3, result.Created[EntityCategories])
	assert.Equal(t, 4, result.Created[EntityProducts])

	count, err := store.New(db).CountCategories(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestImport_Settings(t *testing.T) {
	ctx := context.Background()
	data := demoExport(t)
	data.Settings.Text[model.SettingStoreName] = "Imported Kitchen"
	db := testDB(t, "settings.db")

	// Off by default.
	_, err := NewImporter(db, testLogger()).Import(ctx, data, DefaultImportOptions())
	require.NoError(t, err)
	s, err := store.New(db).GetStoreSettings(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, "Imported Kitchen", s.Text[model.SettingStoreName])

	opts := DefaultImportOptions()
	opts.ImportSettings = true
	result, err := NewImporter(db, testLogger()).Import(ctx, data, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated[EntitySettings])
	s, err = store.New(db).GetStoreSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Imported Kitchen", s.Text[model.SettingStoreName])
}

func TestImport_MissingCategory(t *testing.T) {
	ctx := context.Background()
	db := testDB(t, "missing.db")
	data := &ExportData{
		Version: ExportVersion,
		Products: []ExportProduct{
			{Slug: "orphan", CategorySlug: "nowhere", Name: "Orphan", Price: decimal.NewFromInt(1)},
		},
	}
	result, err := NewImporter(db, testLogger()).Import(ctx, data, DefaultImportOptions())
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "orphan", result.Errors[0].ID)
}

func TestImport_RejectsInvalidDocument(t *testing.T) {
	ctx := context.Background()
	db := testDB(t, "invalid.db")
	imp := NewImporter(db, testLogger())

	tests := []struct {
		name string
		data ExportData
		want string
	}{
		{"missing version", ExportData{}, "missing version field"},
		{"future version", ExportData{Version: "9.0"}, "unsupported version"},
		{"bad slug", ExportData{Version: ExportVersion,
			Categories: []ExportCategory{{Slug: "Not A Slug", Name: "X"}}}, "missing or invalid slug"},
		{"duplicate slug", ExportData{Version: ExportVersion,
			Categories: []ExportCategory{{Slug: "a", Name: "A"}, {Slug: "a", Name: "B"}}}, "duplicate slug"},
		{"negative price", ExportData{Version: ExportVersion,
			Products: []ExportProduct{{Slug: "p", CategorySlug: "c", Name: "P", Price: decimal.NewFromInt(-1)}}}, "negative price"},
		{"unknown translation", ExportData{Version: ExportVersion,
			Categories: []ExportCategory{{Slug: "a", Name: "A", Translations: model.Fields{"name_xx": "?"}}}}, `unknown translation key "name_xx"`},
		{"unknown language", ExportData{Version: ExportVersion,
			Settings: &model.StoreSettings{PrimaryLanguage: "xx"}}, `unknown language "xx"`},
		{"unnamed theme", ExportData{Version: ExportVersion, Themes: []ExportTheme{{}}}, "missing name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := imp.Import(ctx, &tt.data, DefaultImportOptions())
			require.ErrorIs(t, err, ErrValidation)
			require.NotEmpty(t, result.Errors)
			assert.Equal(t, tt.want, result.Errors[0].Message)
		})
	}

	_, err := imp.Import(ctx, &ExportData{Version: ExportVersion}, ImportOptions{ConflictStrategy: "merge"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidateData(t *testing.T) {
	ctx := context.Background()
	data := demoExport(t)
	db := testDB(t, "validate.db")
	require.NoError(t, store.SeedDemo(ctx, db))
	_, err := store.New(db).CreateCategory(ctx, model.Category{Slug: "unrelated", Name: "Other", Translations: model.Fields{}}, time.Now().UTC())
	require.NoError(t, err)

	data.Categories = append(data.Categories, ExportCategory{Slug: "desserts", Name: "Десерты"})
	vr, err := NewImporter(db, testLogger()).ValidateData(ctx, data)
	require.NoError(t, err)
	assert.True(t, vr.Valid)
	assert.Equal(t, 4, vr.Entities[EntityCategories])
	assert.Equal(t, 1, vr.Entities[EntitySettings])
	assert.Equal(t, []string{"pizza", "soups", "drinks"}, vr.Conflicts[EntityCategories])
	assert.Len(t, vr.Conflicts[EntityProducts], 4)
	assert.Equal(t, []string{"Default"}, vr.Conflicts[EntityThemes])

	vr, err = NewImporter(db, testLogger()).ValidateData(ctx, &ExportData{Version: "0.1"})
	require.NoError(t, err)
	assert.False(t, vr.Valid)
	assert.Empty(t, vr.Conflicts)
}

func TestImportResult(t *testing.T) {
	r := NewImportResult(false)
	r.IncrementCreated(EntityProducts)
	r.IncrementCreated(EntityCategories)
	r.IncrementUpdated(EntityThemes)
	assert.Equal(t, 2, r.TotalCreated())
	assert.Equal(t, 1, r.TotalUpdated())
	assert.Zero(t, r.TotalSkipped())
	assert.True(t, r.Success)

	r.AddError("product", "x", "boom")
	assert.False(t, r.Success)
	assert.Len(t, r.Errors, 1)

	assert.True(t, ConflictRename.Valid())
	assert.False(t, ConflictStrategy("merge").Valid())
}
