// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a slog handler that mirrors WARN and above into
// the events table, where admins browse them as the audit log.
package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/store"
)

// Attribute keys with special meaning for the event log.
const (
	AttrCategory = "category"
	AttrUserID   = "user_id"
)

const defaultWriteTimeout = 2 * time.Second

// EventLogHandler passes every record to an inner handler and also stores
// records at or above its level as events.
type EventLogHandler struct {
	inner        slog.Handler
	queries      *store.Queries
	level        slog.Leveler
	writeTimeout time.Duration
	attrs        []slog.Attr
	group        string
}

// Option configures an EventLogHandler.
type Option func(*EventLogHandler)

// WithMinLevel stores records at or above level. The default is WARN.
func WithMinLevel(level slog.Leveler) Option {
	return func(h *EventLogHandler) { h.level = level }
}

// WithWriteTimeout bounds each insert into the events table.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *EventLogHandler) { h.writeTimeout = d }
}

// NewEventLogHandler wraps inner and stores events in db.
func NewEventLogHandler(inner slog.Handler, db *sql.DB, opts ...Option) *EventLogHandler {
	h := &EventLogHandler{
		inner:        inner,
		queries:      store.New(db),
		level:        slog.LevelWarn,
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level() || h.inner.Enabled(ctx, level)
}

func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.inner.Enabled(ctx, r.Level) {
		if err := h.inner.Handle(ctx, r); err != nil {
			return err
		}
	}
	if r.Level >= h.level.Level() {
		h.store(ctx, r)
	}
	return nil
}

func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.inner = h.inner.WithAttrs(attrs)
	c.attrs = append(h.attrs[:len(h.attrs):len(h.attrs)], h.flatten(h.group, attrs)...)
	return &c
}

func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.inner = h.inner.WithGroup(name)
	c.group = join(h.group, name)
	return &c
}

// flatten resolves values and turns nested groups into dotted keys.
func (h *EventLogHandler) flatten(prefix string, attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		a.Value = a.Value.Resolve()
		if a.Value.Kind() == slog.KindGroup {
			out = append(out, h.flatten(join(prefix, a.Key), a.Value.Group())...)
			continue
		}
		if a.Key == "" {
			continue
		}
		a.Key = join(prefix, a.Key)
		out = append(out, a)
	}
	return out
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	if key == "" {
		return prefix
	}
	return prefix + "." + key
}

// store inserts r as an event. The insert keeps the request's values but
// not its cancellation, so events of aborted requests are kept. Failures
// are dropped since the record already reached the inner handler.
func (h *EventLogHandler) store(ctx context.Context, r slog.Record) {
	attrs := h.attrs
	if r.NumAttrs() > 0 {
		recAttrs := make([]slog.Attr, 0, r.NumAttrs())
		r.Attrs(func(a slog.Attr) bool {
			recAttrs = append(recAttrs, a)
			return true
		})
		attrs = append(attrs[:len(attrs):len(attrs)], h.flatten(h.group, recAttrs)...)
	}

	params := store.CreateEventParams{
		Level:     model.EventLevelOf(r.Level),
		Message:   r.Message,
		Metadata:  "{}",
		CreatedAt: r.Time.UTC(),
	}
	meta := make(map[string]string, len(attrs))
	for _, a := range attrs {
		switch a.Key {
		case AttrCategory:
			params.Category = a.Value.String()
			continue
		case AttrUserID:
			if a.Value.Kind() == slog.KindInt64 {
				params.UserID = sql.NullInt64{Int64: a.Value.Int64(), Valid: true}
			}
		}
		meta[a.Key] = a.Value.String()
	}
	if params.Category == "" {
		params.Category = inferCategory(r.Message)
	}
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			params.Metadata = string(b)
		}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.writeTimeout)
	defer cancel()
	_ = h.queries.CreateEvent(ctx, params)
}

// inferCategory guesses a category from the message when none is attached.
func inferCategory(message string) string {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "auth") || strings.Contains(msg, "login") || strings.Contains(msg, "logout"):
		return model.EventCategoryAuth
	case strings.Contains(msg, "order") || strings.Contains(msg, "checkout"):
		return model.EventCategoryOrder
	case strings.Contains(msg, "webhook"):
		return model.EventCategoryWebhook
	case strings.Contains(msg, "product") || strings.Contains(msg, "categor"):
		return model.EventCategoryCatalog
	case strings.Contains(msg, "theme"):
		return model.EventCategoryTheme
	case strings.Contains(msg, "setting"):
		return model.EventCategorySettings
	case strings.Contains(msg, "user"):
		return model.EventCategoryUser
	case strings.Contains(msg, "cache") || strings.Contains(msg, "redis"):
		return model.EventCategoryCache
	default:
		return model.EventCategorySystem
	}
}
