// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package transfer exports and imports the menu, store settings and themes
// as one versioned JSON document, for backups and moving a store between
// instances. Records reference each other by slug, never by id.
package transfer

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/olegiv/storefront/internal/model"
)

// ExportVersion is the current version of the export format.
const ExportVersion = "1.0"

// ExportData represents the complete export structure.
type ExportData struct {
	Version    string               `json:"version"`
	ExportedAt time.Time            `json:"exported_at"`
	Settings   *model.StoreSettings `json:"settings,omitempty"`
	Categories []ExportCategory     `json:"categories,omitempty"`
	Products   []ExportProduct      `json:"products,omitempty"`
	Themes     []ExportTheme        `json:"themes,omitempty"`
}

// ExportCategory is a menu category. Translations holds sibling keys only.
type ExportCategory struct {
	Slug         string       `json:"slug"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Icon         string       `json:"icon,omitempty"`
	Position     int64        `json:"position"`
	IsActive     bool         `json:"is_active"`
	Translations model.Fields `json:"translations,omitempty"`
}

// ExportProduct is a menu item referencing its category by slug.
type ExportProduct struct {
	Slug         string          `json:"slug"`
	CategorySlug string          `json:"category_slug"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Ingredients  string          `json:"ingredients,omitempty"`
	Price        decimal.Decimal `json:"price"`
	ImageURL     string          `json:"image_url,omitempty"`
	IsAvailable  bool            `json:"is_available"`
	IsPopular    bool            `json:"is_popular"`
	Position     int64           `json:"position"`
	Translations model.Fields    `json:"translations,omitempty"`
}

// ExportTheme is a color theme, matched by name on import.
type ExportTheme struct {
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
	model.ThemeColors
	Radius string `json:"radius,omitempty"`
}

// ExportOptions configures what to include in the export.
type ExportOptions struct {
	IncludeSettings bool `json:"include_settings"`
	IncludeMenu     bool `json:"include_menu"`
	IncludeThemes   bool `json:"include_themes"`
	// AvailableOnly drops sold-out products and inactive categories.
	AvailableOnly bool `json:"available_only"`
}

// DefaultExportOptions returns options that include everything.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		IncludeSettings: true,
		IncludeMenu:     true,
		IncludeThemes:   true,
	}
}

// ConflictStrategy decides what happens to a record whose slug (or theme
// name) already exists.
type ConflictStrategy string

// Conflict strategies.
const (
	ConflictSkip      ConflictStrategy = "skip"
	ConflictOverwrite ConflictStrategy = "overwrite"
	ConflictRename    ConflictStrategy = "rename"
)

// Valid reports whether c is a known strategy.
func (c ConflictStrategy) Valid() bool {
	switch c {
	case ConflictSkip, ConflictOverwrite, ConflictRename:
		return true
	}
	return false
}

// ImportOptions configures an import.
type ImportOptions struct {
	DryRun           bool             `json:"dry_run"`
	ConflictStrategy ConflictStrategy `json:"conflict_strategy"`
	ImportSettings   bool             `json:"import_settings"`
	ImportMenu       bool             `json:"import_menu"`
	ImportThemes     bool             `json:"import_themes"`
}

// DefaultImportOptions imports the menu and themes, skipping existing
// records. Settings are replaced only when asked for.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		ConflictStrategy: ConflictSkip,
		ImportMenu:       true,
		ImportThemes:     true,
	}
}

// Entity names used in results.
const (
	EntitySettings   = "settings"
	EntityCategories = "categories"
	EntityProducts   = "products"
	EntityThemes     = "themes"
)

// ImportError describes one record that could not be imported.
type ImportError struct {
	Entity  string `json:"entity"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ImportResult summarizes an import.
type ImportResult struct {
	Success bool           `json:"success"`
	DryRun  bool           `json:"dry_run"`
	Created map[string]int `json:"created"`
	Updated map[string]int `json:"updated"`
	Skipped map[string]int `json:"skipped"`
	Errors  []ImportError  `json:"errors"`
}

// NewImportResult returns an empty successful result.
func NewImportResult(dryRun bool) *ImportResult {
	return &ImportResult{
		Success: true,
		DryRun:  dryRun,
		Created: make(map[string]int),
		Updated: make(map[string]int),
		Skipped: make(map[string]int),
		Errors:  []ImportError{},
	}
}

func (r *ImportResult) IncrementCreated(entity string) { r.Created[entity]++ }
func (r *ImportResult) IncrementUpdated(entity string) { r.Updated[entity]++ }
func (r *ImportResult) IncrementSkipped(entity string) { r.Skipped[entity]++ }

// AddError records a failed record and marks the result unsuccessful.
func (r *ImportResult) AddError(entity, id, message string) {
	r.Success = false
	r.Errors = append(r.Errors, ImportError{Entity: entity, ID: id, Message: message})
}

func (r *ImportResult) TotalCreated() int { return sum(r.Created) }
func (r *ImportResult) TotalUpdated() int { return sum(r.Updated) }
func (r *ImportResult) TotalSkipped() int { return sum(r.Skipped) }

func sum(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

// ValidationResult is the outcome of checking a document without importing it.
type ValidationResult struct {
	Valid     bool                `json:"valid"`
	Version   string              `json:"version"`
	Entities  map[string]int      `json:"entities"`
	Conflicts map[string][]string `json:"conflicts"`
	Errors    []ImportError       `json:"errors"`
}
