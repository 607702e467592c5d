// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mileusna/useragent"
	"github.com/shopspring/decimal"

	"github.com/olegiv/storefront/internal/handler"
	"github.com/olegiv/storefront/internal/localize"
	"github.com/olegiv/storefront/internal/logging"
	"github.com/olegiv/storefront/internal/metrics"
	"github.com/olegiv/storefront/internal/middleware"
	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/store"
	"github.com/olegiv/storefront/internal/webhook"
)

// maxLineQuantity bounds the quantity of a single product in one order,
// after repeated lines are merged.
const maxLineQuantity = 99

// OrderItemRequest is one cart line of a checkout.
type OrderItemRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gte=1,lte=99"`
}

// CreateOrderRequest is the body of POST /api/orders.
type CreateOrderRequest struct {
	CustomerName  string             `json:"customerName" validate:"required,max=100"`
	Phone         string             `json:"phone" validate:"required,max=32"`
	Address       string             `json:"address" validate:"max=500"`
	DeliveryType  string             `json:"deliveryType" validate:"required,oneof=delivery pickup"`
	PaymentMethod string             `json:"paymentMethod" validate:"required,oneof=cash card"`
	Comment       string             `json:"comment" validate:"max=1000"`
	Items         []OrderItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
}

// OrderStatusRequest is the body of PUT /api/admin/orders/{id}/status.
type OrderStatusRequest struct {
	Status string `json:"status" validate:"required,orderstatus"`
}

// CreateOrder handles POST /api/orders. Prices and names are taken from the
// catalog at checkout; the client only sends product ids and quantities.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s := h.settings.Get(r.Context())
	lang, primary := h.languages(r)

	switch req.DeliveryType {
	case model.DeliveryTypeDelivery:
		if !s.DeliveryEnabled {
			writeError(w, r, http.StatusBadRequest, middleware.CodeValidation, "error.delivery_disabled")
			return
		}
		if strings.TrimSpace(req.Address) == "" {
			writeValidationError(w, r, map[string]string{"address": localizedMessage(r, "error.address_required")})
			return
		}
	case model.DeliveryTypePickup:
		if !s.PickupEnabled {
			writeError(w, r, http.StatusBadRequest, middleware.CodeValidation, "error.pickup_disabled")
			return
		}
	}

	lines := mergeOrderLines(req.Items)
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := h.queries.GetProductsByIDs(r.Context(), ids)
	if err != nil {
		h.writeInternalError(w, r, "failed to load order products", err)
		return
	}
	categoryIDs := make([]int64, 0, len(products))
	for _, p := range products {
		if !slices.Contains(categoryIDs, p.CategoryID) {
			categoryIDs = append(categoryIDs, p.CategoryID)
		}
	}
	activeCategories, err := h.queries.ActiveCategoryIDs(r.Context(), categoryIDs)
	if err != nil {
		h.writeInternalError(w, r, "failed to load order categories", err)
		return
	}

	order := model.Order{
		Number:        newOrderNumber(h.now()),
		Status:        model.OrderStatusPending,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		Phone:         strings.TrimSpace(req.Phone),
		DeliveryType:  req.DeliveryType,
		PaymentMethod: req.PaymentMethod,
		Comment:       strings.TrimSpace(req.Comment),
		Language:      lang,
		Device:        deviceOf(r.UserAgent()),
	}
	if req.DeliveryType == model.DeliveryTypeDelivery {
		order.Address = strings.TrimSpace(req.Address)
	}
	if userID := middleware.GetUserID(r); userID > 0 {
		order.UserID = sql.NullInt64{Int64: userID, Valid: true}
	}

	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			writeError(w, r, http.StatusConflict, middleware.CodeConflict, "error.product_unavailable",
				fmt.Sprintf("#%d", l.ProductID))
			return
		}
		name := localize.Resolve(p.Localizable(), model.FieldName, lang, primary)
		if !p.IsAvailable || !activeCategories[p.CategoryID] {
			writeError(w, r, http.StatusConflict, middleware.CodeConflict, "error.product_unavailable", name)
			return
		}
		if l.Quantity > maxLineQuantity {
			writeValidationError(w, r, map[string]string{
				"items": localizedMessage(r, "error.quantity_max", maxLineQuantity, name),
			})
			return
		}
		order.Items = append(order.Items, model.OrderItem{
			ProductID: p.ID,
			Name:      name,
			Price:     p.Price,
			Quantity:  l.Quantity,
		})
	}

	order.Subtotal = order.ComputeSubtotal()
	if s.MinOrderAmount.IsPositive() && order.Subtotal.LessThan(s.MinOrderAmount) {
		writeError(w, r, http.StatusBadRequest, middleware.CodeValidation, "error.min_order",
			formatMoney(s.MinOrderAmount, s.Currency))
		return
	}
	order.DeliveryFee = decimal.Zero
	if order.DeliveryType == model.DeliveryTypeDelivery {
		order.DeliveryFee = s.DeliveryFeeFor(order.Subtotal)
	}
	order.Total = order.Subtotal.Add(order.DeliveryFee)

	var created model.Order
	err = store.InTx(r.Context(), h.db, func(q *store.Queries) error {
		var err error
		created, err = q.CreateOrder(r.Context(), order, h.now().UTC())
		return err
	})
	if err != nil {
		h.writeInternalError(w, r, "failed to create order", err)
		return
	}

	metrics.RecordOrderCreated(created.DeliveryType, created.Language)
	args := []any{
		logging.AttrCategory, model.EventCategoryOrder,
		"order_id", created.ID, "number", created.Number,
		"total", created.Total.String(), "device", created.Device,
	}
	if created.UserID.Valid {
		args = append(args, logging.AttrUserID, created.UserID.Int64)
	}
	if country := h.clientCountry(r); country != "" {
		args = append(args, "country", country)
	}
	h.logger.Info("order created", args...)
	h.publishOrder(r.Context(), webhook.EventOrderCreated, webhook.NewOrderEventData(created))
	WriteCreated(w, created)
}

// MyOrders handles GET /api/orders/mine.
func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == 0 {
		writeError(w, r, http.StatusUnauthorized, middleware.CodeUnauthorized, "error.unauthorized")
		return
	}
	h.listOrders(w, r, store.ListOrdersParams{UserID: userID}, true)
}

// AdminListOrders handles GET /api/admin/orders. The status query parameter filters.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !model.IsValidOrderStatus(status) {
		writeValidationError(w, r, map[string]string{"status": "must be a valid order status"})
		return
	}
	h.listOrders(w, r, store.ListOrdersParams{Status: status}, false)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request, arg store.ListOrdersParams, withItems bool) {
	p := handler.ParsePagination(r)
	arg.Limit, arg.Offset = p.Limit(), p.Offset()
	orders, total, err := handler.ListAndCount(
		func() ([]model.Order, error) { return h.queries.ListOrders(r.Context(), arg) },
		func() (int64, error) { return h.queries.CountOrders(r.Context(), arg) },
	)
	if err != nil {
		h.writeInternalError(w, r, "failed to list orders", err)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	if withItems {
		for i := range orders {
			if orders[i].Items, err = h.queries.ListOrderItems(r.Context(), orders[i].ID); err != nil {
				h.writeInternalError(w, r, "failed to list order items", err, "order_id", orders[i].ID)
				return
			}
		}
	}
	meta := p.WithTotal(total)
	WriteSuccess(w, orders, &meta)
}

// AdminGetOrder handles GET /api/admin/orders/{id}.
func (h *Handler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := requireEntityByID(h, w, r, "order", func(id int64) (model.Order, error) {
		return h.queries.GetOrder(r.Context(), id)
	})
	if !ok {
		return
	}
	WriteSuccess(w, o, nil)
}

// UpdateOrderStatus handles PUT /api/admin/orders/{id}/status.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	o, ok := requireEntityByID(h, w, r, "order", func(id int64) (model.Order, error) {
		return h.queries.GetOrder(r.Context(), id)
	})
	if !ok {
		return
	}
	var req OrderStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	now := h.now().UTC()
	if err := h.queries.UpdateOrderStatus(r.Context(), o.ID, req.Status, now); err != nil {
		h.writeInternalError(w, r, "failed to update order status", err, "order_id", o.ID)
		return
	}
	h.logger.Info("order status changed",
		logging.AttrCategory, model.EventCategoryOrder,
		logging.AttrUserID, middleware.GetUserID(r),
		"order_id", o.ID, "from", o.Status, "to", req.Status)
	previous := o.Status
	o.Status = req.Status
	o.UpdatedAt = now
	if previous != o.Status {
		data := webhook.NewOrderEventData(o)
		data.PreviousStatus = previous
		h.publishOrder(r.Context(), webhook.EventOrderStatusChanged, data)
	}
	WriteSuccess(w, o, nil)
}

// DeleteOrder handles DELETE /api/admin/orders/{id}.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseIDParam(r)
	if err != nil {
		writeBadRequest(w, r)
		return
	}
	if _, err := h.queries.GetOrder(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeNotFound(w, r)
			return
		}
		h.writeInternalError(w, r, "failed to get order", err, "order_id", id)
		return
	}
	if err := h.queries.DeleteOrder(r.Context(), id); err != nil {
		h.writeInternalError(w, r, "failed to delete order", err, "order_id", id)
		return
	}
	h.logger.Info("order deleted",
		logging.AttrCategory, model.EventCategoryOrder,
		logging.AttrUserID, middleware.GetUserID(r),
		"order_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// mergeOrderLines sums the quantities of repeated products, keeping the
// order of first appearance.
func mergeOrderLines(items []OrderItemRequest) []OrderItemRequest {
	out := make([]OrderItemRequest, 0, len(items))
	for _, it := range items {
		if i := slices.IndexFunc(out, func(o OrderItemRequest) bool { return o.ProductID == it.ProductID }); i >= 0 {
			out[i].Quantity += it.Quantity
			continue
		}
		out = append(out, it)
	}
	return out
}

// deviceOf classifies a User-Agent header.
func deviceOf(ua string) string {
	parsed := useragent.Parse(ua)
	switch {
	case parsed.Bot:
		return model.DeviceBot
	case parsed.Tablet:
		return model.DeviceTablet
	case parsed.Mobile:
		return model.DeviceMobile
	default:
		return model.DeviceDesktop
	}
}

// newOrderNumber returns a short human-readable order number: the UTC date
// and the first eight hex digits of a random UUID.
func newOrderNumber(now time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return now.UTC().Format("060102") + "-" + id[:8]
}

func formatMoney(amount decimal.Decimal, currency string) string {
	return strings.TrimSpace(amount.StringFixed(2) + " " + currency)
}
