// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/olegiv/storefront/internal/model"
)

const deliveryColumns = `id, url, event, payload, status, attempts, response_code, response_body,
error_message, next_retry_at, delivered_at, created_at, updated_at`

func scanDelivery(s scanner) (model.WebhookDelivery, error) {
	var d model.WebhookDelivery
	err := s.Scan(&d.ID, &d.URL, &d.Event, &d.Payload, &d.Status, &d.Attempts, &d.ResponseCode,
		&d.ResponseBody, &d.ErrorMessage, &d.NextRetryAt, &d.DeliveredAt, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

const createWebhookDelivery = `INSERT INTO webhook_deliveries (url, event, payload, status, created_at, updated_at)
VALUES (?, ?, ?, 'pending', ?, ?) RETURNING ` + deliveryColumns

// CreateWebhookDelivery records a pending delivery.
func (q *Queries) CreateWebhookDelivery(ctx context.Context, url, event, payload string, now time.Time) (model.WebhookDelivery, error) {
	return scanDelivery(q.db.QueryRowContext(ctx, createWebhookDelivery, url, event, payload, now, now))
}

const getWebhookDelivery = `SELECT ` + deliveryColumns + ` FROM webhook_deliveries WHERE id = ?`

// GetWebhookDelivery returns a delivery by id.
func (q *Queries) GetWebhookDelivery(ctx context.Context, id int64) (model.WebhookDelivery, error) {
	return scanDelivery(q.db.QueryRowContext(ctx, getWebhookDelivery, id))
}

const updateDeliverySuccess = `UPDATE webhook_deliveries
SET status = 'delivered', attempts = attempts + 1, response_code = ?, response_body = ?,
error_message = NULL, next_retry_at = NULL, delivered_at = ?, updated_at = ?
WHERE id = ?`

// UpdateDeliverySuccess marks a delivery as delivered.
func (q *Queries) UpdateDeliverySuccess(ctx context.Context, id int64, code int, body string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, updateDeliverySuccess, code, body, now, now, id)
	return err
}

// UpdateDeliveryRetryParams holds the outcome of a failed attempt.
type UpdateDeliveryRetryParams struct {
	ID           int64
	ResponseCode sql.NullInt64
	ResponseBody sql.NullString
	ErrorMessage sql.NullString
	NextRetryAt  time.Time
	UpdatedAt    time.Time
}

const updateDeliveryRetry = `UPDATE webhook_deliveries
SET attempts = attempts + 1, response_code = ?, response_body = ?, error_message = ?,
next_retry_at = ?, updated_at = ?
WHERE id = ?`

// UpdateDeliveryRetry records a failed attempt and schedules the next one.
func (q *Queries) UpdateDeliveryRetry(ctx context.Context, arg UpdateDeliveryRetryParams) error {
	_, err := q.db.ExecContext(ctx, updateDeliveryRetry,
		arg.ResponseCode, arg.ResponseBody, arg.ErrorMessage, arg.NextRetryAt, arg.UpdatedAt, arg.ID)
	return err
}

const updateDeliveryDead = `UPDATE webhook_deliveries
SET status = 'dead', attempts = attempts + 1, error_message = ?, next_retry_at = NULL, updated_at = ?
WHERE id = ?`

// UpdateDeliveryDead gives up on a delivery.
func (q *Queries) UpdateDeliveryDead(ctx context.Context, id int64, errMsg sql.NullString, now time.Time) error {
	_, err := q.db.ExecContext(ctx, updateDeliveryDead, errMsg, now, id)
	return err
}

const listDueDeliveries = `SELECT ` + deliveryColumns + ` FROM webhook_deliveries
WHERE status = 'pending'
AND ((next_retry_at IS NULL AND created_at <= ?) OR next_retry_at <= ?)
ORDER BY id LIMIT ?`

// ListDueDeliveries returns pending deliveries whose retry time has come.
// Never-attempted deliveries count as due once created before staleBefore.
func (q *Queries) ListDueDeliveries(ctx context.Context, now, staleBefore time.Time, limit int64) ([]model.WebhookDelivery, error) {
	return q.listDeliveries(ctx, listDueDeliveries, staleBefore, now, limit)
}

const listWebhookDeliveries = `SELECT ` + deliveryColumns + ` FROM webhook_deliveries
WHERE (? = '' OR status = ?)
ORDER BY id DESC LIMIT ? OFFSET ?`

// ListWebhookDeliveries returns a page of deliveries, newest first. An empty
// status matches all.
func (q *Queries) ListWebhookDeliveries(ctx context.Context, status string, limit, offset int64) ([]model.WebhookDelivery, error) {
	return q.listDeliveries(ctx, listWebhookDeliveries, status, status, limit, offset)
}

const countWebhookDeliveries = `SELECT COUNT(*) FROM webhook_deliveries WHERE (? = '' OR status = ?)`

// CountWebhookDeliveries counts deliveries with status.
func (q *Queries) CountWebhookDeliveries(ctx context.Context, status string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countWebhookDeliveries, status, status).Scan(&n)
	return n, err
}

const deleteDeliveriesBefore = `DELETE FROM webhook_deliveries WHERE status != 'pending' AND created_at < ?`

// DeleteDeliveriesBefore prunes finished deliveries older than cutoff.
func (q *Queries) DeleteDeliveriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteDeliveriesBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) listDeliveries(ctx context.Context, query string, args ...any) ([]model.WebhookDelivery, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []model.WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
