// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"

	"github.com/olegiv/storefront/internal/model"
)

const userColumns = `id, email, password_hash, role, name, phone, last_login_at, created_at, updated_at`

func scanUser(s scanner) (model.User, error) {
	var u model.User
	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Name, &u.Phone,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUserParams holds the columns of a new user.
type CreateUserParams struct {
	Email        string
	PasswordHash string
	Role         string
	Name         string
	Phone        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const createUser = `INSERT INTO users (email, password_hash, role, name, phone, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + userColumns

// CreateUser inserts a user.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (model.User, error) {
	row := q.db.QueryRowContext(ctx, createUser,
		arg.Email, arg.PasswordHash, arg.Role, arg.Name, arg.Phone, arg.CreatedAt, arg.UpdatedAt)
	return scanUser(row)
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

// GetUserByID returns a user by id.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = ? COLLATE NOCASE`

// GetUserByEmail returns a user by email (case-insensitive).
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const listUsers = `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

// ListUsers returns a page of users, newest first.
func (q *Queries) ListUsers(ctx context.Context, limit, offset int64) ([]model.User, error) {
	rows, err := q.db.QueryContext(ctx, listUsers, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var items []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

const countUsers = `SELECT COUNT(*) FROM users`

// CountUsers returns the number of users.
func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countUsers).Scan(&n)
	return n, err
}

const countAdmins = `SELECT COUNT(*) FROM users WHERE role = 'admin'`

// CountAdmins returns the number of admin users.
func (q *Queries) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countAdmins).Scan(&n)
	return n, err
}

// UpdateUserParams holds the editable columns of a user.
type UpdateUserParams struct {
	ID        int64
	Email     string
	Role      string
	Name      string
	Phone     string
	UpdatedAt time.Time
}

const updateUser = `UPDATE users SET email = ?, role = ?, name = ?, phone = ?, updated_at = ?
WHERE id = ?
RETURNING ` + userColumns

// UpdateUser updates a user's profile and role.
func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (model.User, error) {
	row := q.db.QueryRowContext(ctx, updateUser, arg.Email, arg.Role, arg.Name, arg.Phone, arg.UpdatedAt, arg.ID)
	return scanUser(row)
}

const updateUserPassword = `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`

// UpdateUserPassword replaces a user's password hash.
func (q *Queries) UpdateUserPassword(ctx context.Context, id int64, hash string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, updateUserPassword, hash, now, id)
	return err
}

const updateUserLastLogin = `UPDATE users SET last_login_at = ? WHERE id = ?`

// UpdateUserLastLogin records a successful login.
func (q *Queries) UpdateUserLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := q.db.ExecContext(ctx, updateUserLastLogin, at, id)
	return err
}

const deleteUser = `DELETE FROM users WHERE id = ?`

// DeleteUser removes a user.
func (q *Queries) DeleteUser(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteUser, id)
	return err
}
