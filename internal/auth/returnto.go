// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/storefront/internal/langroute"
)

// Session keys for the post-login redirect target.
const (
	SessionKeyReturnTo          = "return_to"
	SessionKeyReturnToExpiresAt = "return_to_expires_at"
)

// ReturnToTTL is how long a stored return target stays valid.
const ReturnToTTL = 15 * time.Minute

// DefaultReturnTo is used when no safe target is stored.
const DefaultReturnTo = "/"

// AuthPath is the login page; it is never a valid return target.
const AuthPath = "/auth"

// SafeReturnTo reports whether target is an internal path that may be redirected to.
// Protocol-relative paths, absolute URLs and the auth page are rejected.
func SafeReturnTo(target string) bool {
	if target == "" || !strings.HasPrefix(target, "/") {
		return false
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return false
	}
	if strings.ContainsAny(target, "\\\r\n\t") {
		return false
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return false
	}
	_, clean := langroute.ExtractLanguage(u.Path, "")
	return langroute.Normalize(clean) != AuthPath
}

// ReturnTo stores the post-login target in the session.
type ReturnTo struct {
	sm  *scs.SessionManager
	ttl time.Duration
	now func() time.Time
}

// NewReturnTo creates a ReturnTo bound to sm.
func NewReturnTo(sm *scs.SessionManager) *ReturnTo {
	return &ReturnTo{sm: sm, ttl: ReturnToTTL, now: time.Now}
}

// WithClock replaces the clock used for expiry. Intended for tests.
func (r *ReturnTo) WithClock(now func() time.Time) *ReturnTo {
	r.now = now
	return r
}

// Set stores target when it is safe and reports whether it was stored.
func (r *ReturnTo) Set(ctx context.Context, target string) bool {
	if !SafeReturnTo(target) {
		r.Clear(ctx)
		return false
	}
	r.sm.Put(ctx, SessionKeyReturnTo, target)
	r.sm.Put(ctx, SessionKeyReturnToExpiresAt, r.now().Add(r.ttl).Unix())
	return true
}

// Peek returns the stored target without removing it, or DefaultReturnTo.
func (r *ReturnTo) Peek(ctx context.Context) string {
	target := r.sm.GetString(ctx, SessionKeyReturnTo)
	expires := r.sm.GetInt64(ctx, SessionKeyReturnToExpiresAt)
	if target == "" || r.now().Unix() >= expires || !SafeReturnTo(target) {
		return DefaultReturnTo
	}
	return target
}

// Pop returns the stored target and removes it from the session.
func (r *ReturnTo) Pop(ctx context.Context) string {
	target := r.Peek(ctx)
	r.Clear(ctx)
	return target
}

// Clear removes any stored target.
func (r *ReturnTo) Clear(ctx context.Context) {
	r.sm.Remove(ctx, SessionKeyReturnTo)
	r.sm.Remove(ctx, SessionKeyReturnToExpiresAt)
}
