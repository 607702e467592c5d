// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/olegiv/storefront/internal/handler"
	"github.com/olegiv/storefront/internal/logging"
	"github.com/olegiv/storefront/internal/middleware"
	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/webhook"
)

// DeliveryView is a webhook delivery as shown in the back office.
type DeliveryView struct {
	ID           int64      `json:"id"`
	URL          string     `json:"url"`
	Event        string     `json:"event"`
	Status       string     `json:"status"`
	Attempts     int64      `json:"attempts"`
	ResponseCode int64      `json:"responseCode,omitempty"`
	Error        string     `json:"error,omitempty"`
	NextRetryAt  *time.Time `json:"nextRetryAt,omitempty"`
	DeliveredAt  *time.Time `json:"deliveredAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func newDeliveryView(d model.WebhookDelivery) DeliveryView {
	v := DeliveryView{
		ID:           d.ID,
		URL:          d.URL,
		Event:        d.Event,
		Status:       d.Status,
		Attempts:     d.Attempts,
		ResponseCode: d.ResponseCode.Int64,
		Error:        d.ErrorMessage.String,
		CreatedAt:    d.CreatedAt,
	}
	if d.NextRetryAt.Valid {
		t := d.NextRetryAt.Time
		v.NextRetryAt = &t
	}
	if d.DeliveredAt.Valid {
		t := d.DeliveredAt.Time
		v.DeliveredAt = &t
	}
	return v
}

func isDeliveryStatus(s string) bool {
	switch s {
	case model.DeliveryStatusPending, model.DeliveryStatusDelivered, model.DeliveryStatusDead:
		return true
	}
	return false
}

// ListWebhookDeliveries handles GET /api/admin/webhooks/deliveries. The
// status query parameter filters.
func (h *Handler) ListWebhookDeliveries(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !isDeliveryStatus(status) {
		writeValidationError(w, r, map[string]string{"status": "must be pending, delivered or dead"})
		return
	}
	p := handler.ParsePagination(r)
	items, total, err := handler.ListAndCount(
		func() ([]model.WebhookDelivery, error) {
			return h.queries.ListWebhookDeliveries(r.Context(), status, p.Limit(), p.Offset())
		},
		func() (int64, error) { return h.queries.CountWebhookDeliveries(r.Context(), status) },
	)
	if err != nil {
		h.writeInternalError(w, r, "failed to list webhook deliveries", err)
		return
	}
	views := make([]DeliveryView, 0, len(items))
	for _, d := range items {
		views = append(views, newDeliveryView(d))
	}
	meta := p.WithTotal(total)
	WriteSuccess(w, views, &meta)
}

// publishOrder queues an order event. Failures are logged; the order itself
// is already saved.
func (h *Handler) publishOrder(ctx context.Context, eventType string, data webhook.OrderEventData) {
	if h.webhooks == nil {
		return
	}
	if err := h.webhooks.DispatchEvent(ctx, eventType, data); err != nil {
		h.logger.Warn("failed to dispatch order webhook",
			logging.AttrCategory, model.EventCategoryWebhook,
			"event", eventType, "order_id", data.ID, "error", err)
	}
}

func (h *Handler) publishProduct(ctx context.Context, p model.Product, deleted bool) {
	if h.productHooks == nil {
		return
	}
	data := webhook.NewProductEventData(p)
	data.Deleted = deleted
	if err := h.productHooks.DispatchEvent(ctx, webhook.EventProductUpdated, data); err != nil {
		h.logger.Warn("failed to dispatch product webhook",
			logging.AttrCategory, model.EventCategoryWebhook,
			"product_id", p.ID, "error", err)
	}
}

// clientCountry resolves the request IP, or "" without a lookup.
func (h *Handler) clientCountry(r *http.Request) string {
	if h.geo == nil {
		return ""
	}
	return h.geo.Country(middleware.GetClientIP(r))
}
