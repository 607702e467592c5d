// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package transfer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/olegiv/storefront/internal/localize"
	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/store"
	"github.com/olegiv/storefront/internal/util"
)

// ErrValidation is returned by Import when the document is rejected before
// anything is written. The result carries the details.
var ErrValidation = errors.New("validation failed")

// errDryRun rolls back the transaction of a dry run.
var errDryRun = errors.New("dry run")

// Importer handles importing store content from JSON format.
type Importer struct {
	store  *store.Queries
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewImporter creates a new Importer instance.
func NewImporter(db *sql.DB, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	imp := &Importer{db: db, logger: logger, now: time.Now}
	if db != nil {
		imp.store = store.New(db)
	}
	return imp
}

// ImportFromReader decodes a JSON document and imports it.
func (i *Importer) ImportFromReader(ctx context.Context, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	var data ExportData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding import data: %w", err)
	}
	return i.Import(ctx, &data, opts)
}

// Import writes data in one transaction. A dry run performs the same writes
// and rolls them back, so its counts match a real run exactly.
func (i *Importer) Import(ctx context.Context, data *ExportData, opts ImportOptions) (*ImportResult, error) {
	result := NewImportResult(opts.DryRun)
	if opts.ConflictStrategy == "" {
		opts.ConflictStrategy = ConflictSkip
	}
	if !opts.ConflictStrategy.Valid() {
		result.AddError("options", "conflict_strategy", "unknown conflict strategy "+strconv.Quote(string(opts.ConflictStrategy)))
		return result, ErrValidation
	}

	if errs := i.Validate(data); len(errs) > 0 {
		for _, e := range errs {
			result.AddError(e.Entity, e.ID, e.Message)
		}
		return result, ErrValidation
	}

	err := store.InTx(ctx, i.db, func(q *store.Queries) error {
		now := i.now().UTC()
		if opts.ImportSettings && data.Settings != nil {
			if err := q.UpsertStoreSettings(ctx, *data.Settings, now); err != nil {
				result.AddError(EntitySettings, "", err.Error())
			} else {
				result.IncrementUpdated(EntitySettings)
			}
		}
		if opts.ImportMenu {
			categories := i.importCategories(ctx, q, data.Categories, opts, result, now)
			i.importProducts(ctx, q, data.Products, categories, opts, result, now)
		}
		if opts.ImportThemes {
			i.importThemes(ctx, q, data.Themes, opts, result, now)
		}
		if opts.DryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return nil, fmt.Errorf("importing: %w", err)
	}

	i.logger.Info("import finished",
		"dry_run", opts.DryRun,
		"conflict_strategy", opts.ConflictStrategy,
		"created", result.TotalCreated(),
		"updated", result.TotalUpdated(),
		"skipped", result.TotalSkipped(),
		"errors", len(result.Errors))
	return result, nil
}

// Validate checks the document without touching the database.
func (i *Importer) Validate(data *ExportData) []ImportError {
	var errs []ImportError
	add := func(entity, id, msg string) {
		errs = append(errs, ImportError{Entity: entity, ID: id, Message: msg})
	}

	switch data.Version {
	case "":
		add("export", "", "missing version field")
	case ExportVersion:
	default:
		add("export", data.Version, "unsupported version")
	}

	if s := data.Settings; s != nil {
		if !model.IsKnownLanguage(s.PrimaryLanguage) {
			add(EntitySettings, "primaryLanguage", "unknown language "+strconv.Quote(s.PrimaryLanguage))
		}
		for _, code := range s.EnabledLanguages {
			if !model.IsKnownLanguage(code) {
				add(EntitySettings, "enabledLanguages", "unknown language "+strconv.Quote(code))
			}
		}
		if key := unknownKey(s.Text, model.TranslatableSettingKeys, true); key != "" {
			add(EntitySettings, "text", "unknown text key "+strconv.Quote(key))
		}
	}

	categorySlugs := make(map[string]bool, len(data.Categories))
	for idx, c := range data.Categories {
		id := c.Slug
		if id == "" {
			id = strconv.Itoa(idx)
		}
		switch {
		case !util.IsValidSlug(c.Slug):
			add("category", id, "missing or invalid slug")
		case categorySlugs[c.Slug]:
			add("category", id, "duplicate slug")
		}
		categorySlugs[c.Slug] = true
		if c.Name == "" {
			add("category", id, "missing name")
		}
		if key := unknownKey(c.Translations, model.CategoryFields, false); key != "" {
			add("category", id, "unknown translation key "+strconv.Quote(key))
		}
	}

	productSlugs := make(map[string]bool, len(data.Products))
	for idx, p := range data.Products {
		id := p.Slug
		if id == "" {
			id = strconv.Itoa(idx)
		}
		switch {
		case !util.IsValidSlug(p.Slug):
			add("product", id, "missing or invalid slug")
		case productSlugs[p.Slug]:
			add("product", id, "duplicate slug")
		}
		productSlugs[p.Slug] = true
		if p.Name == "" {
			add("product", id, "missing name")
		}
		if p.CategorySlug == "" {
			add("product", id, "missing category_slug")
		}
		if p.Price.IsNegative() {
			add("product", id, "negative price")
		}
		if key := unknownKey(p.Translations, model.ProductFields, false); key != "" {
			add("product", id, "unknown translation key "+strconv.Quote(key))
		}
	}

	for idx, t := range data.Themes {
		if t.Name == "" {
			add("theme", strconv.Itoa(idx), "missing name")
		}
	}
	return errs
}

// ValidateData validates the document and lists the records that already
// exist and would hit the conflict strategy.
func (i *Importer) ValidateData(ctx context.Context, data *ExportData) (*ValidationResult, error) {
	result := &ValidationResult{
		Valid:   true,
		Version: data.Version,
		Entities: map[string]int{
			EntityCategories: len(data.Categories),
			EntityProducts:   len(data.Products),
			EntityThemes:     len(data.Themes),
		},
		Conflicts: make(map[string][]string),
		Errors:    []ImportError{},
	}
	if data.Settings != nil {
		result.Entities[EntitySettings] = 1
	}
	if errs := i.Validate(data); len(errs) > 0 {
		result.Valid = false
		result.Errors = errs
	}

	for _, c := range data.Categories {
		taken, err := i.store.CategorySlugTaken(ctx, c.Slug, 0)
		if err != nil {
			return nil, fmt.Errorf("checking category %s: %w", c.Slug, err)
		}
		if taken {
			result.Conflicts[EntityCategories] = append(result.Conflicts[EntityCategories], c.Slug)
		}
	}
	for _, p := range data.Products {
		taken, err := i.store.ProductSlugTaken(ctx, p.Slug, 0)
		if err != nil {
			return nil, fmt.Errorf("checking product %s: %w", p.Slug, err)
		}
		if taken {
			result.Conflicts[EntityProducts] = append(result.Conflicts[EntityProducts], p.Slug)
		}
	}
	themes, err := themesByName(ctx, i.store)
	if err != nil {
		return nil, fmt.Errorf("listing themes: %w", err)
	}
	for _, t := range data.Themes {
		if _, ok := themes[t.Name]; ok {
			result.Conflicts[EntityThemes] = append(result.Conflicts[EntityThemes], t.Name)
		}
	}
	return result, nil
}

// importCategories returns the database id of every category slug in the
// document, after renames.
func (i *Importer) importCategories(ctx context.Context, q *store.Queries, categories []ExportCategory,
	opts ImportOptions, result *ImportResult, now time.Time) map[string]int64 {
	ids := make(map[string]int64, len(categories))

	for _, ec := range categories {
		c := model.Category{
			Slug:         ec.Slug,
			Name:         ec.Name,
			Description:  ec.Description,
			Icon:         ec.Icon,
			Position:     ec.Position,
			IsActive:     ec.IsActive,
			Translations: ec.Translations,
		}
		if c.Translations == nil {
			c.Translations = model.Fields{}
		}

		existing, err := q.GetCategoryBySlug(ctx, ec.Slug)
		switch {
		case err == nil:
			switch opts.ConflictStrategy {
			case ConflictSkip:
				ids[ec.Slug] = existing.ID
				result.IncrementSkipped(EntityCategories)
				continue
			case ConflictOverwrite:
				c.ID = existing.ID
				if _, err := q.UpdateCategory(ctx, c, now); err != nil {
					result.AddError("category", ec.Slug, err.Error())
					continue
				}
				ids[ec.Slug] = existing.ID
				result.IncrementUpdated(EntityCategories)
				continue
			case ConflictRename:
				slug, err := util.FreeSlug(ctx, ec.Slug, 2, 0, q.CategorySlugTaken)
				if err != nil {
					result.AddError("category", ec.Slug, err.Error())
					continue
				}
				c.Slug = slug
			}
		case !errors.Is(err, sql.ErrNoRows):
			result.AddError("category", ec.Slug, err.Error())
			continue
		}

		created, err := q.CreateCategory(ctx, c, now)
		if err != nil {
			result.AddError("category", ec.Slug, err.Error())
			continue
		}
		ids[ec.Slug] = created.ID
		result.IncrementCreated(EntityCategories)
	}
	return ids
}

func (i *Importer) importProducts(ctx context.Context, q *store.Queries, products []ExportProduct,
	categories map[string]int64, opts ImportOptions, result *ImportResult, now time.Time) {
	for _, ep := range products {
		categoryID, ok := categories[ep.CategorySlug]
		if !ok {
			cat, err := q.GetCategoryBySlug(ctx, ep.CategorySlug)
			if err != nil {
				result.AddError("product", ep.Slug, "category "+strconv.Quote(ep.CategorySlug)+" not found")
				continue
			}
			categoryID = cat.ID
			categories[ep.CategorySlug] = cat.ID
		}

		p := model.Product{
			CategoryID:   categoryID,
			Slug:         ep.Slug,
			Name:         ep.Name,
			Description:  ep.Description,
			Ingredients:  ep.Ingredients,
			Price:        ep.Price,
			ImageURL:     ep.ImageURL,
			IsAvailable:  ep.IsAvailable,
			IsPopular:    ep.IsPopular,
			Position:     ep.Position,
			Translations: ep.Translations,
		}
		if p.Translations == nil {
			p.Translations = model.Fields{}
		}

		existing, err := q.GetProductBySlug(ctx, ep.Slug)
		switch {
		case err == nil:
			switch opts.ConflictStrategy {
			case ConflictSkip:
				result.IncrementSkipped(EntityProducts)
				continue
			case ConflictOverwrite:
				p.ID = existing.ID
				if _, err := q.UpdateProduct(ctx, p, now); err != nil {
					result.AddError("product", ep.Slug, err.Error())
					continue
				}
				result.IncrementUpdated(EntityProducts)
				continue
			case ConflictRename:
				slug, err := util.FreeSlug(ctx, ep.Slug, 2, 0, q.ProductSlugTaken)
				if err != nil {
					result.AddError("product", ep.Slug, err.Error())
					continue
				}
				p.Slug = slug
			}
		case !errors.Is(err, sql.ErrNoRows):
			result.AddError("product", ep.Slug, err.Error())
			continue
		}

		if _, err := q.CreateProduct(ctx, p, now); err != nil {
			result.AddError("product", ep.Slug, err.Error())
			continue
		}
		result.IncrementCreated(EntityProducts)
	}
}

// importThemes never changes which theme is active.
func (i *Importer) importThemes(ctx context.Context, q *store.Queries, themes []ExportTheme,
	opts ImportOptions, result *ImportResult, now time.Time) {
	existing, err := themesByName(ctx, q)
	if err != nil {
		result.AddError("theme", "", err.Error())
		return
	}

	for _, et := range themes {
		t := model.Theme{Name: et.Name, ThemeColors: et.ThemeColors, Radius: et.Radius}
		if cur, ok := existing[et.Name]; ok {
			switch opts.ConflictStrategy {
			case ConflictSkip:
				result.IncrementSkipped(EntityThemes)
				continue
			case ConflictOverwrite:
				t.ID = cur.ID
				if _, err := q.UpdateTheme(ctx, t, now); err != nil {
					result.AddError("theme", et.Name, err.Error())
					continue
				}
				result.IncrementUpdated(EntityThemes)
				continue
			case ConflictRename:
				t.Name = freeName(et.Name, existing)
			}
		}

		created, err := q.CreateTheme(ctx, t, now)
		if err != nil {
			result.AddError("theme", et.Name, err.Error())
			continue
		}
		existing[created.Name] = created
		result.IncrementCreated(EntityThemes)
	}
}

func themesByName(ctx context.Context, q *store.Queries) (map[string]model.Theme, error) {
	out := make(map[string]model.Theme)
	for offset := int64(0); ; offset += pageSize {
		batch, err := q.ListThemes(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, t := range batch {
			out[t.Name] = t
		}
		if len(batch) < pageSize {
			return out, nil
		}
	}
}

func freeName(base string, existing map[string]model.Theme) string {
	for n := 2; ; n++ {
		name := base + " " + strconv.Itoa(n)
		if _, ok := existing[name]; !ok {
			return name
		}
	}
}

// unknownKey returns the first key of f that is not a storage key of bases.
// Base keys themselves are allowed only when withBase is set.
func unknownKey(f model.Fields, bases []string, withBase bool) string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if !isKeyOf(key, bases, withBase) {
			return key
		}
	}
	return ""
}

func isKeyOf(key string, bases []string, withBase bool) bool {
	for _, base := range bases {
		if withBase && key == base {
			return true
		}
		if slices.Contains(localize.Default.Siblings(base, ""), key) {
			return true
		}
	}
	return false
}
