// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/olegiv/storefront/internal/logging"
	"github.com/olegiv/storefront/internal/middleware"
	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/transfer"
)

// maxImportBytes limits the size of an uploaded export document.
const maxImportBytes = 10 << 20

// ExportStore handles GET /api/admin/transfer/export. The document is sent
// as a JSON attachment.
func (h *Handler) ExportStore(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := transfer.DefaultExportOptions()
	opts.IncludeSettings = queryBool(q.Get("settings"), opts.IncludeSettings)
	opts.IncludeMenu = queryBool(q.Get("menu"), opts.IncludeMenu)
	opts.IncludeThemes = queryBool(q.Get("themes"), opts.IncludeThemes)
	opts.AvailableOnly = queryBool(q.Get("available_only"), false)

	data, err := transfer.NewExporter(h.queries, h.logger).Export(r.Context(), opts)
	if err != nil {
		h.writeInternalError(w, r, "failed to export store", err)
		return
	}

	filename := fmt.Sprintf("storefront-export-%s.json", h.now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		h.logger.Warn("failed to write export", "error", err)
		return
	}

	h.logger.Info("store exported",
		logging.AttrCategory, model.EventCategorySystem,
		logging.AttrUserID, middleware.GetUserID(r),
		"categories", len(data.Categories),
		"products", len(data.Products),
		"themes", len(data.Themes))
}

// ValidateImport handles POST /api/admin/transfer/validate. Nothing is
// written; the response lists problems and existing records.
func (h *Handler) ValidateImport(w http.ResponseWriter, r *http.Request) {
	data, ok := decodeExport(w, r)
	if !ok {
		return
	}
	result, err := transfer.NewImporter(h.db, h.logger).ValidateData(r.Context(), data)
	if err != nil {
		h.writeInternalError(w, r, "failed to validate import", err)
		return
	}
	WriteSuccess(w, result, nil)
}

// ImportStore handles POST /api/admin/transfer/import.
func (h *Handler) ImportStore(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := transfer.DefaultImportOptions()
	opts.DryRun = queryBool(q.Get("dry_run"), false)
	opts.ImportSettings = queryBool(q.Get("settings"), opts.ImportSettings)
	opts.ImportMenu = queryBool(q.Get("menu"), opts.ImportMenu)
	opts.ImportThemes = queryBool(q.Get("themes"), opts.ImportThemes)
	if c := q.Get("conflict"); c != "" {
		opts.ConflictStrategy = transfer.ConflictStrategy(c)
		if !opts.ConflictStrategy.Valid() {
			writeValidationError(w, r, map[string]string{"conflict": "must be skip, overwrite or rename"})
			return
		}
	}

	data, ok := decodeExport(w, r)
	if !ok {
		return
	}

	result, err := transfer.NewImporter(h.db, h.logger).Import(r.Context(), data, opts)
	if errors.Is(err, transfer.ErrValidation) {
		details := make(map[string]string, len(result.Errors))
		for _, e := range result.Errors {
			key := e.Entity
			if e.ID != "" {
				key += "." + e.ID
			}
			details[key] = e.Message
		}
		writeValidationError(w, r, details)
		return
	}
	if err != nil {
		h.writeInternalError(w, r, "failed to import store", err)
		return
	}

	if !opts.DryRun {
		if opts.ImportMenu {
			h.invalidateCatalog(r.Context())
		}
		if opts.ImportSettings && data.Settings != nil {
			h.refreshSettings(r.Context(), r)
		}
		if opts.ImportThemes {
			h.theme.Invalidate()
		}
	}

	h.logger.Info("store imported",
		logging.AttrCategory, model.EventCategorySystem,
		logging.AttrUserID, middleware.GetUserID(r),
		"dry_run", opts.DryRun,
		"created", result.TotalCreated(),
		"updated", result.TotalUpdated(),
		"skipped", result.TotalSkipped(),
		"errors", len(result.Errors))
	WriteSuccess(w, result, nil)
}

func decodeExport(w http.ResponseWriter, r *http.Request) (*transfer.ExportData, bool) {
	var data transfer.ExportData
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImportBytes)).Decode(&data); err != nil {
		writeBadRequest(w, r)
		return nil, false
	}
	return &data, true
}

// queryBool parses a boolean query value, returning def when it is empty or
// malformed.
func queryBool(s string, def bool) bool {
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return v
}
