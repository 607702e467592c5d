// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package webhook posts signed store events to external endpoints, such as
// a kitchen display or a messenger bridge, with persisted retries.
package webhook

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/olegiv/storefront/internal/model"
)

// Event types.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventProductUpdated     = "product.updated"
)

// AllEvents lists every event type an endpoint can subscribe to.
var AllEvents = []string{EventOrderCreated, EventOrderStatusChanged, EventProductUpdated}

// Event is the JSON body posted to endpoints. ID is unique per event and
// shared by its deliveries, so receivers can drop duplicates.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

func NewEvent(eventType string, data any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// entity is event data about one stored record.
type entity interface {
	EntityID() int64
}

// OrderItemData is one line of an order event.
type OrderItemData struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
}

// OrderEventData contains data for order events.
type OrderEventData struct {
	ID             int64           `json:"id"`
	Number         string          `json:"number"`
	Status         string          `json:"status"`
	PreviousStatus string          `json:"previousStatus,omitempty"`
	CustomerName   string          `json:"customerName"`
	Phone          string          `json:"phone"`
	Address        string          `json:"address,omitempty"`
	DeliveryType   string          `json:"deliveryType"`
	PaymentMethod  string          `json:"paymentMethod"`
	Comment        string          `json:"comment,omitempty"`
	Language       string          `json:"language"`
	Total          decimal.Decimal `json:"total"`
	Items          []OrderItemData `json:"items,omitempty"`
}

func (d OrderEventData) EntityID() int64 { return d.ID }

// NewOrderEventData builds the payload of an order event.
func NewOrderEventData(o model.Order) OrderEventData {
	data := OrderEventData{
		ID:            o.ID,
		Number:        o.Number,
		Status:        o.Status,
		CustomerName:  o.CustomerName,
		Phone:         o.Phone,
		Address:       o.Address,
		DeliveryType:  o.DeliveryType,
		PaymentMethod: o.PaymentMethod,
		Comment:       o.Comment,
		Language:      o.Language,
		Total:         o.Total,
	}
	for _, it := range o.Items {
		data.Items = append(data.Items, OrderItemData{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
		})
	}
	return data
}

// ProductEventData contains data for product events.
type ProductEventData struct {
	ID          int64           `json:"id"`
	CategoryID  int64           `json:"categoryId"`
	Slug        string          `json:"slug"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	IsAvailable bool            `json:"isAvailable"`
	Deleted     bool            `json:"deleted,omitempty"`
}

func (d ProductEventData) EntityID() int64 { return d.ID }

// NewProductEventData builds the payload of a product event.
func NewProductEventData(p model.Product) ProductEventData {
	return ProductEventData{
		ID:          p.ID,
		CategoryID:  p.CategoryID,
		Slug:        p.Slug,
		Name:        p.Name,
		Price:       p.Price,
		IsAvailable: p.IsAvailable,
	}
}
