// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session configures the cookie session manager backed by the
// sessions table and stores the signed-in user in it.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// Session keys.
const (
	KeyUserID   = "user_id"
	KeyUserRole = "user_role"
)

const (
	// Lifetime is the absolute session lifetime.
	Lifetime = 30 * 24 * time.Hour
	// IdleTimeout expires sessions unused for a week.
	IdleTimeout = 7 * 24 * time.Hour
	// CleanupInterval is how often expired rows are deleted.
	CleanupInterval = time.Hour
)

// hostCookie needs Secure, Path=/ and no Domain.
const hostCookie = "__Host-session"

// New returns a session manager on the SQLite store. Outside development the
// cookie is Secure and host-locked.
func New(db *sql.DB, isDev bool) *scs.SessionManager {
	sm := scs.New()
	sm.Store = sqlite3store.NewWithCleanupInterval(db, CleanupInterval)
	sm.Lifetime = Lifetime
	sm.IdleTimeout = IdleTimeout

	sm.Cookie.Path = "/"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Persist = true
	sm.Cookie.Secure = !isDev
	if !isDev {
		sm.Cookie.Name = hostCookie
	}
	return sm
}

// Login rotates the session token and records the user. The rotation keeps
// a pre-login token from being reused.
func Login(ctx context.Context, sm *scs.SessionManager, userID int64, role string) error {
	if err := sm.RenewToken(ctx); err != nil {
		return fmt.Errorf("renewing session token: %w", err)
	}
	sm.Put(ctx, KeyUserID, userID)
	sm.Put(ctx, KeyUserRole, role)
	return nil
}

// UserID returns the signed-in user, or 0.
func UserID(ctx context.Context, sm *scs.SessionManager) int64 {
	return sm.GetInt64(ctx, KeyUserID)
}

// Forget drops the user from a session whose account no longer exists.
func Forget(ctx context.Context, sm *scs.SessionManager) {
	sm.Remove(ctx, KeyUserID)
	sm.Remove(ctx, KeyUserRole)
}

// Logout destroys the session and returns the user it belonged to.
func Logout(ctx context.Context, sm *scs.SessionManager) (int64, error) {
	userID := UserID(ctx, sm)
	if err := sm.Destroy(ctx); err != nil {
		return userID, fmt.Errorf("destroying session: %w", err)
	}
	return userID, nil
}
