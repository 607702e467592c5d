// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"slices"
	"time"
)

// Stored event levels. Debug and info records below the handler threshold
// are never stored.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories. Log calls attach one with logging.AttrCategory.
const (
	EventCategoryAuth     = "auth"
	EventCategoryUser     = "user"
	EventCategorySettings = "settings"
	EventCategoryTheme    = "theme"
	EventCategoryCatalog  = "catalog"
	EventCategoryOrder    = "order"
	EventCategorySystem   = "system"
	EventCategoryCache    = "cache"
	EventCategoryWebhook  = "webhook"
)

// EventLevels lists the stored levels, least severe first.
var EventLevels = []string{EventLevelInfo, EventLevelWarning, EventLevelError}

var EventCategories = []string{
	EventCategoryAuth,
	EventCategoryUser,
	EventCategorySettings,
	EventCategoryTheme,
	EventCategoryCatalog,
	EventCategoryOrder,
	EventCategorySystem,
	EventCategoryCache,
	EventCategoryWebhook,
}

func IsEventLevel(s string) bool { return slices.Contains(EventLevels, s) }

func IsEventCategory(s string) bool { return slices.Contains(EventCategories, s) }

// EventLevelOf maps a slog level to the stored level.
func EventLevelOf(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return EventLevelError
	case l >= slog.LevelWarn:
		return EventLevelWarning
	default:
		return EventLevelInfo
	}
}

// Event is one row of the admin event log. Metadata holds a JSON object of
// the record's attributes.
type Event struct {
	ID        int64
	Level     string
	Category  string
	Message   string
	UserID    sql.NullInt64
	Metadata  string
	CreatedAt time.Time
}

// MarshalJSON embeds Metadata as an object and renders a missing user as null.
func (e Event) MarshalJSON() ([]byte, error) {
	meta := json.RawMessage(e.Metadata)
	if !json.Valid(meta) {
		meta = json.RawMessage("{}")
	}
	var userID *int64
	if e.UserID.Valid {
		userID = &e.UserID.Int64
	}
	return json.Marshal(struct {
		ID        int64           `json:"id"`
		Level     string          `json:"level"`
		Category  string          `json:"category"`
		Message   string          `json:"message"`
		UserID    *int64          `json:"user_id"`
		Metadata  json.RawMessage `json:"metadata"`
		CreatedAt time.Time       `json:"created_at"`
	}{e.ID, e.Level, e.Category, e.Message, userID, meta, e.CreatedAt})
}
