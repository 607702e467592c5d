// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/storefront/internal/model"
)

const orderColumns = `id, number, user_id, status, customer_name, phone, address, delivery_type, payment_method,
comment, language, device, subtotal, delivery_fee, total, created_at, updated_at`

func scanOrder(s scanner) (model.Order, error) {
	var o model.Order
	err := s.Scan(&o.ID, &o.Number, &o.UserID, &o.Status, &o.CustomerName, &o.Phone, &o.Address,
		&o.DeliveryType, &o.PaymentMethod, &o.Comment, &o.Language, &o.Device,
		&o.Subtotal, &o.DeliveryFee, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

const createOrder = `INSERT INTO orders (number, user_id, status, customer_name, phone, address, delivery_type,
payment_method, comment, language, device, subtotal, delivery_fee, total, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + orderColumns

const createOrderItem = `INSERT INTO order_items (order_id, product_id, name, price, quantity)
VALUES (?, ?, ?, ?, ?) RETURNING id`

// CreateOrder inserts an order and its items. Run it inside InTx.
func (q *Queries) CreateOrder(ctx context.Context, o model.Order, now time.Time) (model.Order, error) {
	created, err := scanOrder(q.db.QueryRowContext(ctx, createOrder,
		o.Number, o.UserID, o.Status, o.CustomerName, o.Phone, o.Address, o.DeliveryType,
		o.PaymentMethod, o.Comment, o.Language, o.Device,
		o.Subtotal.String(), o.DeliveryFee.String(), o.Total.String(), now, now))
	if err != nil {
		return model.Order{}, fmt.Errorf("inserting order: %w", err)
	}
	for _, it := range o.Items {
		it.OrderID = created.ID
		if err := q.db.QueryRowContext(ctx, createOrderItem,
			it.OrderID, it.ProductID, it.Name, it.Price.String(), it.Quantity).Scan(&it.ID); err != nil {
			return model.Order{}, fmt.Errorf("inserting order item: %w", err)
		}
		created.Items = append(created.Items, it)
	}
	return created, nil
}

const getOrder = `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`

// GetOrder returns an order with its items.
func (q *Queries) GetOrder(ctx context.Context, id int64) (model.Order, error) {
	o, err := scanOrder(q.db.QueryRowContext(ctx, getOrder, id))
	if err != nil {
		return model.Order{}, err
	}
	if o.Items, err = q.ListOrderItems(ctx, o.ID); err != nil {
		return model.Order{}, err
	}
	return o, nil
}

const listOrderItems = `SELECT id, order_id, product_id, name, price, quantity FROM order_items WHERE order_id = ? ORDER BY id`

// ListOrderItems returns the items of an order.
func (q *Queries) ListOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	rows, err := q.db.QueryContext(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := []model.OrderItem{}
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Price, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListOrdersParams filters an order listing. Empty Status and zero UserID match all.
type ListOrdersParams struct {
	Status string
	UserID int64
	Limit  int64
	Offset int64
}

const orderFilter = `WHERE (? = '' OR status = ?) AND (? = 0 OR user_id = ?)`

const listOrders = `SELECT ` + orderColumns + ` FROM orders ` + orderFilter + `
ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

// ListOrders returns a page of orders, newest first, with their items.
func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]model.Order, error) {
	rows, err := q.db.QueryContext(ctx, listOrders,
		arg.Status, arg.Status, arg.UserID, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range orders {
		if orders[i].Items, err = q.ListOrderItems(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

const countOrders = `SELECT COUNT(*) FROM orders ` + orderFilter

// CountOrders counts orders matching the filter of arg.
func (q *Queries) CountOrders(ctx context.Context, arg ListOrdersParams) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countOrders, arg.Status, arg.Status, arg.UserID, arg.UserID).Scan(&n)
	return n, err
}

const updateOrderStatus = `UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`

// UpdateOrderStatus changes the status of an order.
func (q *Queries) UpdateOrderStatus(ctx context.Context, id int64, status string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, updateOrderStatus, status, now, id)
	return err
}

const deleteOrder = `DELETE FROM orders WHERE id = ?`

// DeleteOrder removes an order and its items.
func (q *Queries) DeleteOrder(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteOrder, id)
	return err
}
