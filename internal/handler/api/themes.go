// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/olegiv/storefront/internal/handler"
	"github.com/olegiv/storefront/internal/logging"
	"github.com/olegiv/storefront/internal/middleware"
	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/store"
)

// ThemeResponse is a theme plus the CSS variables it produces.
type ThemeResponse struct {
	model.Theme
	Variables map[string]string `json:"variables"`
}

// ThemeRequest creates or updates a theme. Color values are hex colors or
// any CSS color syntax; empty means unset.
type ThemeRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	model.ThemeColors
	Radius string `json:"radius" validate:"max=32"`
}

func (req ThemeRequest) apply(t *model.Theme) {
	t.Name = req.Name
	t.ThemeColors = req.ThemeColors
	t.Radius = req.Radius
}

// GetActiveTheme handles GET /api/themes/active.
func (h *Handler) GetActiveTheme(w http.ResponseWriter, r *http.Request) {
	t := h.theme.Get(r.Context())
	WriteSuccess(w, ThemeResponse{Theme: t, Variables: h.theme.Applier().Variables()}, nil)
}

// ListThemes handles GET /api/admin/themes.
func (h *Handler) ListThemes(w http.ResponseWriter, r *http.Request) {
	p := handler.ParsePagination(r)
	themes, total, err := handler.ListAndCount(
		func() ([]model.Theme, error) { return h.queries.ListThemes(r.Context(), p.Limit(), p.Offset()) },
		func() (int64, error) { return h.queries.CountThemes(r.Context()) },
	)
	if err != nil {
		h.writeInternalError(w, r, "failed to list themes", err)
		return
	}
	if themes == nil {
		themes = []model.Theme{}
	}
	meta := p.WithTotal(total)
	WriteSuccess(w, themes, &meta)
}

// GetTheme handles GET /api/admin/themes/{id}.
func (h *Handler) GetTheme(w http.ResponseWriter, r *http.Request) {
	t, ok := requireEntityByID(h, w, r, "theme", func(id int64) (model.Theme, error) {
		return h.queries.GetTheme(r.Context(), id)
	})
	if !ok {
		return
	}
	WriteSuccess(w, t, nil)
}

// CreateTheme handles POST /api/admin/themes. New themes start inactive.
func (h *Handler) CreateTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var t model.Theme
	req.apply(&t)

	created, err := h.queries.CreateTheme(r.Context(), t, h.now().UTC())
	if err != nil {
		h.writeInternalError(w, r, "failed to create theme", err)
		return
	}
	h.logger.Info("theme created",
		logging.AttrCategory, model.EventCategoryTheme,
		logging.AttrUserID, middleware.GetUserID(r),
		"theme_id", created.ID)
	WriteCreated(w, created)
}

// UpdateTheme handles PUT /api/admin/themes/{id}.
func (h *Handler) UpdateTheme(w http.ResponseWriter, r *http.Request) {
	t, ok := requireEntityByID(h, w, r, "theme", func(id int64) (model.Theme, error) {
		return h.queries.GetTheme(r.Context(), id)
	})
	if !ok {
		return
	}
	var req ThemeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.apply(&t)

	updated, err := h.queries.UpdateTheme(r.Context(), t, h.now().UTC())
	if err != nil {
		h.writeInternalError(w, r, "failed to update theme", err, "theme_id", t.ID)
		return
	}
	if updated.IsActive {
		h.theme.Invalidate()
		h.theme.Get(r.Context())
	}
	WriteSuccess(w, updated, nil)
}

// ActivateTheme handles POST /api/admin/themes/{id}/activate. The applied
// variables are refreshed before the response is written.
func (h *Handler) ActivateTheme(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseIDParam(r)
	if err != nil {
		writeBadRequest(w, r)
		return
	}
	err = store.InTx(r.Context(), h.db, func(q *store.Queries) error {
		return q.ActivateTheme(r.Context(), id, h.now().UTC())
	})
	if errors.Is(err, sql.ErrNoRows) {
		writeNotFound(w, r)
		return
	}
	if err != nil {
		h.writeInternalError(w, r, "failed to activate theme", err, "theme_id", id)
		return
	}

	h.theme.Invalidate()
	t := h.theme.Get(r.Context())
	h.logger.Info("theme activated",
		logging.AttrCategory, model.EventCategoryTheme,
		logging.AttrUserID, middleware.GetUserID(r),
		"theme_id", id)
	WriteSuccess(w, ThemeResponse{Theme: t, Variables: h.theme.Applier().Variables()}, nil)
}

// DeleteTheme handles DELETE /api/admin/themes/{id}. The active theme
// cannot be deleted.
func (h *Handler) DeleteTheme(w http.ResponseWriter, r *http.Request) {
	t, ok := requireEntityByID(h, w, r, "theme", func(id int64) (model.Theme, error) {
		return h.queries.GetTheme(r.Context(), id)
	})
	if !ok {
		return
	}
	if t.IsActive {
		writeConflict(w, r, "error.theme_active")
		return
	}
	if err := h.queries.DeleteTheme(r.Context(), t.ID); err != nil {
		h.writeInternalError(w, r, "failed to delete theme", err, "theme_id", t.ID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
