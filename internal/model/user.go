// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the storefront domain types: languages, store
// settings, themes, catalog entities, orders, users and audit events.
package model

import (
	"database/sql"
	"strings"
	"time"
)

// Account roles. Customers order; admins also manage the catalog, the
// settings and other accounts.
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// User is a storefront account. Emails are stored normalized.
type User struct {
	ID           int64        `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Role         string       `json:"role"`
	Name         string       `json:"name"`
	Phone        string       `json:"phone"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	LastLoginAt  sql.NullTime `json:"-"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DisplayName is the name shown in greetings and order forms, falling back
// to the local part of the email.
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// NormalizeEmail trims and lowercases an email address so that lookups and
// uniqueness checks ignore case.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
