// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the JSON API consumed by the storefront SPA and the
// admin back office.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/storefront/internal/auth"
	"github.com/olegiv/storefront/internal/cache"
	"github.com/olegiv/storefront/internal/handler"
	"github.com/olegiv/storefront/internal/middleware"
	"github.com/olegiv/storefront/internal/scheduler"
	"github.com/olegiv/storefront/internal/settings"
	"github.com/olegiv/storefront/internal/store"
	"github.com/olegiv/storefront/internal/theme"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// EventPublisher receives store events for outgoing webhooks.
type EventPublisher interface {
	DispatchEvent(ctx context.Context, eventType string, data any) error
}

// CountryLookup maps a client IP to an ISO country code.
type CountryLookup interface {
	Country(ip string) string
}

// Config holds the dependencies of the API handlers.
type Config struct {
	DB              *sql.DB
	Sessions        *scs.SessionManager
	Settings        *settings.Cache
	Theme           *theme.ActiveTheme
	Catalog         *cache.CatalogCache
	LoginProtection *middleware.LoginProtection
	ReturnTo        *auth.ReturnTo
	Jobs            *scheduler.Registry // optional
	Webhooks        EventPublisher      // order events, optional
	ProductWebhooks EventPublisher      // product events, usually debounced
	GeoIP           CountryLookup       // optional
	OnCatalogChange func()              // optional, after any catalog write
	Logger          *slog.Logger
	Now             func() time.Time
}

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	db              *sql.DB
	queries         *store.Queries
	sm              *scs.SessionManager
	settings        *settings.Cache
	theme           *theme.ActiveTheme
	catalog         *cache.CatalogCache
	loginProtection *middleware.LoginProtection
	returnTo        *auth.ReturnTo
	jobs            *scheduler.Registry
	webhooks        EventPublisher
	productHooks    EventPublisher
	geo             CountryLookup
	onCatalogChange func()
	logger          *slog.Logger
	now             func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(cfg Config) *Handler {
	h := &Handler{
		db:              cfg.DB,
		queries:         store.New(cfg.DB),
		sm:              cfg.Sessions,
		settings:        cfg.Settings,
		theme:           cfg.Theme,
		catalog:         cfg.Catalog,
		loginProtection: cfg.LoginProtection,
		returnTo:        cfg.ReturnTo,
		jobs:            cfg.Jobs,
		webhooks:        cfg.Webhooks,
		productHooks:    cfg.ProductWebhooks,
		geo:             cfg.GeoIP,
		onCatalogChange: cfg.OnCatalogChange,
		logger:          cfg.Logger,
		now:             cfg.Now,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.returnTo == nil && h.sm != nil {
		h.returnTo = auth.NewReturnTo(h.sm)
	}
	return h
}

// Response is the standard API response wrapper.
type Response struct {
	Data any                 `json:"data"`
	Meta *handler.Pagination `json:"meta,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 response wrapping data.
func WriteSuccess(w http.ResponseWriter, data any, meta *handler.Pagination) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created response wrapping data.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// writeError writes a localized error envelope.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, key string, args ...any) {
	middleware.WriteLocalizedError(w, r, status, code, key, args...)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusBadRequest, middleware.CodeBadRequest, "error.bad_request")
}

func writeNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, middleware.CodeNotFound, "error.not_found")
}

func writeConflict(w http.ResponseWriter, r *http.Request, key string, args ...any) {
	writeError(w, r, http.StatusConflict, middleware.CodeConflict, key, args...)
}

// writeInternalError logs err and writes a 500 envelope.
func (h *Handler) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error, args ...any) {
	h.logger.Error(msg, append([]any{"error", err, "path", r.URL.Path}, args...)...)
	writeError(w, r, http.StatusInternalServerError, middleware.CodeInternal, "error.internal")
}

// writeValidationError writes a 400 envelope with per-field messages.
func writeValidationError(w http.ResponseWriter, r *http.Request, details map[string]string) {
	middleware.WriteAPIError(w, http.StatusBadRequest, middleware.CodeValidation,
		localizedMessage(r, "error.validation"), details)
}

// decodeJSON decodes the request body into dst and validates it.
// On failure the error response is written and false is returned.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeBadRequest(w, r)
		return false
	}
	if details := validateStruct(dst); details != nil {
		writeValidationError(w, r, details)
		return false
	}
	return true
}

// EntityFetcher is a function that fetches an entity by ID.
type EntityFetcher[T any] func(id int64) (T, error)

// requireEntityByID parses {id} and fetches the entity. sql.ErrNoRows maps
// to 404. On failure the response is written and false is returned.
func requireEntityByID[T any](h *Handler, w http.ResponseWriter, r *http.Request, entityName string, fetch EntityFetcher[T]) (T, bool) {
	var zero T

	id, err := handler.ParseIDParam(r)
	if err != nil {
		writeBadRequest(w, r)
		return zero, false
	}

	entity, err := fetch(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeNotFound(w, r)
		} else {
			h.writeInternalError(w, r, "failed to get "+entityName, err, entityName+"_id", id)
		}
		return zero, false
	}
	return entity, true
}
