// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Webhook delivery statuses.
const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusDead      = "dead"
)

// WebhookDelivery is one attempt series of posting an event to an endpoint.
type WebhookDelivery struct {
	ID           int64          `json:"id"`
	URL          string         `json:"url"`
	Event        string         `json:"event"`
	Payload      string         `json:"payload"`
	Status       string         `json:"status"`
	Attempts     int64          `json:"attempts"`
	ResponseCode sql.NullInt64  `json:"-"`
	ResponseBody sql.NullString `json:"-"`
	ErrorMessage sql.NullString `json:"-"`
	NextRetryAt  sql.NullTime   `json:"-"`
	DeliveredAt  sql.NullTime   `json:"-"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}
