// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/store"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.NewDB(filepath.Join(t.TempDir(), "logging-test.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// discardHandler is a slog.Handler that discards all logs.
type discardHandler struct{}

func (h discardHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h discardHandler) WithGroup(string) slog.Handler             { return h }

func listEvents(t *testing.T, db *sql.DB) []model.Event {
	t.Helper()
	events, err := store.New(db).ListEvents(context.Background(), store.ListEventsParams{Limit: 50})
	require.NoError(t, err)
	return events
}

func TestEventLogHandlerLevels(t *testing.T) {
	tests := []struct {
		name    string
		log     func(*slog.Logger)
		wantLvl string
		stored  bool
	}{
		{"error", func(l *slog.Logger) { l.Error("database connection failed") }, model.EventLevelError, true},
		{"warn", func(l *slog.Logger) { l.Warn("slow query detected") }, model.EventLevelWarning, true},
		{"info", func(l *slog.Logger) { l.Info("server started") }, "", false},
		{"debug", func(l *slog.Logger) { l.Debug("tick") }, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testDB(t)
			tt.log(slog.New(NewEventLogHandler(discardHandler{}, db)))

			events := listEvents(t, db)
			if !tt.stored {
				assert.Empty(t, events)
				return
			}
			require.Len(t, events, 1)
			assert.Equal(t, tt.wantLvl, events[0].Level)
		})
	}
}

func TestEventLogHandlerCustomLevel(t *testing.T) {
	db := testDB(t)
	logger := slog.New(NewEventLogHandler(discardHandler{}, db, WithMinLevel(slog.LevelInfo)))
	logger.Info("order created")

	events := listEvents(t, db)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventLevelInfo, events[0].Level)
	assert.Equal(t, model.EventCategoryOrder, events[0].Category)
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"login failed", model.EventCategoryAuth},
		{"checkout rejected", model.EventCategoryOrder},
		{"product image missing", model.EventCategoryCatalog},
		{"category not found", model.EventCategoryCatalog},
		{"active theme load failed, using fallback", model.EventCategoryTheme},
		{"store settings fetch failed, serving fallback", model.EventCategorySettings},
		{"user deleted", model.EventCategoryUser},
		{"redis unavailable", model.EventCategoryCache},
		{"webhook endpoint unreachable", model.EventCategoryWebhook},
		{"disk almost full", model.EventCategorySystem},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, inferCategory(tt.msg))
		})
	}
}

func TestEventLogHandlerExplicitCategoryAndUser(t *testing.T) {
	db := testDB(t)
	logger := slog.New(NewEventLogHandler(discardHandler{}, db))
	logger.Warn("something odd", AttrCategory, model.EventCategoryTheme, AttrUserID, int64(0))

	events := listEvents(t, db)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventCategoryTheme, events[0].Category)
	assert.True(t, events[0].UserID.Valid)
}

func TestEventLogHandlerMetadata(t *testing.T) {
	db := testDB(t)
	logger := slog.New(NewEventLogHandler(discardHandler{}, db)).
		With("component", "settings").
		WithGroup("fetch")
	logger.Error("timeout", "quote", `say "hi"`+"\n", "attempt", 3)

	events := listEvents(t, db)
	require.Len(t, events, 1)

	var meta map[string]string
	require.NoError(t, json.Unmarshal([]byte(events[0].Metadata), &meta))
	assert.Equal(t, "settings", meta["component"])
	assert.Equal(t, `say "hi"`+"\n", meta["fetch.quote"])
	assert.Equal(t, "3", meta["fetch.attempt"])
}

func TestEventLogHandlerNoAttrsStoresEmptyObject(t *testing.T) {
	db := testDB(t)
	slog.New(NewEventLogHandler(discardHandler{}, db)).Error("boom")

	events := listEvents(t, db)
	require.Len(t, events, 1)
	assert.Equal(t, "{}", events[0].Metadata)
}

type secret string

func (secret) LogValue() slog.Value { return slog.StringValue("[redacted]") }

func TestEventLogHandlerFlattensGroupsAndResolvesValues(t *testing.T) {
	db := testDB(t)
	logger := slog.New(NewEventLogHandler(discardHandler{}, db))
	logger.Warn("webhook rejected",
		slog.Group("request", "method", "POST", slog.Group("headers", "signature", secret("abc"))),
		"", "ignored")

	events := listEvents(t, db)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventCategoryWebhook, events[0].Category)

	var meta map[string]string
	require.NoError(t, json.Unmarshal([]byte(events[0].Metadata), &meta))
	assert.Equal(t, map[string]string{
		"request.method":            "POST",
		"request.headers.signature": "[redacted]",
	}, meta)
}

func TestEventLogHandlerKeepsEventOfCanceledRequest(t *testing.T) {
	db := testDB(t)
	logger := slog.New(NewEventLogHandler(discardHandler{}, db))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	logger.ErrorContext(ctx, "order insert failed", AttrCategory, model.EventCategoryOrder)

	events := listEvents(t, db)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventCategoryOrder, events[0].Category)
}

func TestEventLogHandlerSiblingLoggersDoNotShareAttrs(t *testing.T) {
	db := testDB(t)
	base := slog.New(NewEventLogHandler(discardHandler{}, db)).With("component", "api")
	base.With("a", "1").Warn("first")
	base.With("b", "2").Warn("second")

	events := listEvents(t, db)
	require.Len(t, events, 2)
	for _, e := range events {
		var meta map[string]string
		require.NoError(t, json.Unmarshal([]byte(e.Metadata), &meta))
		assert.Len(t, meta, 2, e.Message)
	}
}
