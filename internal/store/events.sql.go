// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/olegiv/storefront/internal/model"
)

// CreateEventParams holds the columns of a new event.
type CreateEventParams struct {
	Level     string
	Category  string
	Message   string
	UserID    sql.NullInt64
	Metadata  string
	CreatedAt time.Time
}

const createEvent = `INSERT INTO events (level, category, message, user_id, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

// CreateEvent inserts an event log entry.
func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) error {
	if arg.Metadata == "" {
		arg.Metadata = "{}"
	}
	_, err := q.db.ExecContext(ctx, createEvent,
		arg.Level, arg.Category, arg.Message, arg.UserID, arg.Metadata, arg.CreatedAt)
	return err
}

const listEvents = `SELECT id, level, category, message, user_id, metadata, created_at FROM events
WHERE (? = '' OR level = ?) AND (? = '' OR category = ?)
ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

// ListEventsParams filters an event listing. Empty fields match all.
type ListEventsParams struct {
	Level    string
	Category string
	Limit    int64
	Offset   int64
}

// ListEvents returns a page of events, newest first.
func (q *Queries) ListEvents(ctx context.Context, arg ListEventsParams) ([]model.Event, error) {
	rows, err := q.db.QueryContext(ctx, listEvents,
		arg.Level, arg.Level, arg.Category, arg.Category, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &e.UserID, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const countEvents = `SELECT COUNT(*) FROM events WHERE (? = '' OR level = ?) AND (? = '' OR category = ?)`

// CountEvents counts events matching the filter of arg.
func (q *Queries) CountEvents(ctx context.Context, arg ListEventsParams) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countEvents, arg.Level, arg.Level, arg.Category, arg.Category).Scan(&n)
	return n, err
}

const deleteEventsBefore = `DELETE FROM events WHERE created_at < ?`

// DeleteEventsBefore prunes events older than cutoff and returns the number removed.
func (q *Queries) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteEventsBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
