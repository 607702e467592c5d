// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusPreparing  = "preparing"
	OrderStatusDelivering = "delivering"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// OrderStatuses lists every order status in lifecycle order.
var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusDelivering,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Delivery types
const (
	DeliveryTypeDelivery = "delivery"
	DeliveryTypePickup   = "pickup"
)

// Payment methods
const (
	PaymentMethodCash = "cash"
	PaymentMethodCard = "card"
)

// Device kinds recorded on orders.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
)

// IsValidOrderStatus reports whether status is a known order status.
func IsValidOrderStatus(status string) bool {
	return slices.Contains(OrderStatuses, status)
}

// OrderItem is a product line of an order. Name and Price are captured at checkout.
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"orderId"`
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
}

// LineTotal returns Price * Quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(i.Quantity))
}

// Order is a customer checkout.
type Order struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	UserID        sql.NullInt64   `json:"-"`
	Status        string          `json:"status"`
	CustomerName  string          `json:"customerName"`
	Phone         string          `json:"phone"`
	Address       string          `json:"address"`
	DeliveryType  string          `json:"deliveryType"`
	PaymentMethod string          `json:"paymentMethod"`
	Comment       string          `json:"comment"`
	Language      string          `json:"language"`
	Device        string          `json:"device"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DeliveryFee   decimal.Decimal `json:"deliveryFee"`
	Total         decimal.Decimal `json:"total"`
	Items         []OrderItem     `json:"items"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// ComputeSubtotal sums the line totals of the order items.
func (o *Order) ComputeSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}
