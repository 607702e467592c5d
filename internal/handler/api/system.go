// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/storefront/internal/cache"
	"github.com/olegiv/storefront/internal/handler"
	"github.com/olegiv/storefront/internal/logging"
	"github.com/olegiv/storefront/internal/middleware"
	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/scheduler"
	"github.com/olegiv/storefront/internal/store"
)

// ListEvents handles GET /api/admin/events. level and category filter.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	p := handler.ParsePagination(r)
	arg := store.ListEventsParams{
		Level:    r.URL.Query().Get("level"),
		Category: r.URL.Query().Get("category"),
		Limit:    p.Limit(),
		Offset:   p.Offset(),
	}
	details := map[string]string{}
	if arg.Level != "" && !model.IsEventLevel(arg.Level) {
		details["level"] = "unknown level"
	}
	if arg.Category != "" && !model.IsEventCategory(arg.Category) {
		details["category"] = "unknown category"
	}
	if len(details) > 0 {
		writeValidationError(w, r, details)
		return
	}
	events, total, err := handler.ListAndCount(
		func() ([]model.Event, error) { return h.queries.ListEvents(r.Context(), arg) },
		func() (int64, error) { return h.queries.CountEvents(r.Context(), arg) },
	)
	if err != nil {
		h.writeInternalError(w, r, "failed to list events", err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	meta := p.WithTotal(total)
	WriteSuccess(w, events, &meta)
}

// CacheStatus describes the catalog cache.
type CacheStatus struct {
	Stats   *cache.Stats `json:"stats,omitempty"`
	Message string       `json:"message,omitempty"`
}

// CacheStats handles GET /api/admin/cache.
func (h *Handler) CacheStats(w http.ResponseWriter, _ *http.Request) {
	var status CacheStatus
	if stats, ok := h.catalog.Stats(); ok {
		status.Stats = &stats
	}
	WriteSuccess(w, status, nil)
}

// ClearCache handles POST /api/admin/cache/clear. The catalog pages, the
// store settings and the active theme are all reloaded on next use.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Invalidate(r.Context()); err != nil {
		h.writeInternalError(w, r, "failed to clear catalog cache", err)
		return
	}
	h.settings.Invalidate()
	h.theme.Invalidate()

	h.logger.Info("caches cleared",
		logging.AttrCategory, model.EventCategoryCache,
		logging.AttrUserID, middleware.GetUserID(r))
	WriteSuccess(w, CacheStatus{Message: localizedMessage(r, "cache.cleared")}, nil)
}

// ScheduleRequest is the body of PUT /api/admin/jobs/{name}.
type ScheduleRequest struct {
	Schedule string `json:"schedule" validate:"required,max=100"`
}

// ListJobs handles GET /api/admin/jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := []scheduler.JobInfo{}
	if h.jobs != nil {
		jobs = h.jobs.List()
	}
	WriteSuccess(w, jobs, nil)
}

// TriggerJob handles POST /api/admin/jobs/{name}/run.
func (h *Handler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	h.withJob(w, r, func(name string) error { return h.jobs.TriggerNow(name) })
}

// UpdateJobSchedule handles PUT /api/admin/jobs/{name}.
func (h *Handler) UpdateJobSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.withJob(w, r, func(name string) error { return h.jobs.UpdateSchedule(name, req.Schedule) })
}

// ResetJobSchedule handles DELETE /api/admin/jobs/{name}.
func (h *Handler) ResetJobSchedule(w http.ResponseWriter, r *http.Request) {
	h.withJob(w, r, func(name string) error { return h.jobs.ResetSchedule(name) })
}

func (h *Handler) withJob(w http.ResponseWriter, r *http.Request, fn func(name string) error) {
	name := chi.URLParam(r, "name")
	if h.jobs == nil {
		writeNotFound(w, r)
		return
	}
	err := fn(name)
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		writeNotFound(w, r)
		return
	case errors.Is(err, scheduler.ErrInvalidSchedule):
		writeValidationError(w, r, map[string]string{"schedule": err.Error()})
		return
	case err != nil:
		h.writeInternalError(w, r, "job operation failed", err, "job", name)
		return
	}
	h.logger.Info("job updated",
		logging.AttrCategory, model.EventCategorySystem,
		logging.AttrUserID, middleware.GetUserID(r),
		"job", name)
	h.ListJobs(w, r)
}
