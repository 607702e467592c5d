// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/storefront/internal/auth"
	"github.com/olegiv/storefront/internal/langroute"
	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/session"
	"github.com/olegiv/storefront/internal/store"
)

// ContextKeyUser is the context key of the signed-in user.
const ContextKeyUser ContextKey = "user"

// LoadUser loads the signed-in user into the request context. A session
// pointing at a deleted user is cleared; the request continues anonymously.
func LoadUser(sm *scs.SessionManager, db *sql.DB) func(http.Handler) http.Handler {
	queries := store.New(db)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := session.UserID(r.Context(), sm)
			if userID == 0 {
				next.ServeHTTP(w, r)
				return
			}

			user, err := queries.GetUserByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					session.Forget(r.Context(), sm)
				} else {
					slog.Error("failed to load session user", "error", err, "user_id", userID)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUser returns ctx carrying user.
func WithUser(ctx context.Context, user model.User) context.Context {
	return context.WithValue(ctx, ContextKeyUser, user)
}

// GetUser retrieves the current user from the request context.
// Returns nil if no user is in context.
func GetUser(r *http.Request) *model.User {
	user, ok := r.Context().Value(ContextKeyUser).(model.User)
	if !ok {
		return nil
	}
	return &user
}

// GetUserID returns the current user's ID from context, or 0 if not found.
func GetUserID(r *http.Request) int64 {
	if user := GetUser(r); user != nil {
		return user.ID
	}
	return 0
}

// RequireUser rejects anonymous API requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUser(r) == nil {
			WriteLocalizedError(w, r, http.StatusUnauthorized, CodeUnauthorized, "error.unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects anonymous API requests with 401 and non-admins with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r)
		if user == nil {
			WriteLocalizedError(w, r, http.StatusUnauthorized, CodeUnauthorized, "error.unauthorized")
			return
		}
		if !user.IsAdmin() {
			logAccessDenied(r, user)
			WriteLocalizedError(w, r, http.StatusForbidden, CodeForbidden, "error.forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUserPage guards a protected page. Anonymous visitors are sent to
// the login page in their language; the page they asked for is kept as
// the post-login target.
func RequireUserPage(rt *auth.ReturnTo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetUser(r) == nil {
				redirectToLogin(w, r, rt)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdminPage guards an admin page. Anonymous visitors go to the
// login page and signed-in customers to the home page.
func RequireAdminPage(rt *auth.ReturnTo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user == nil {
				redirectToLogin(w, r, rt)
				return
			}
			if !user.IsAdmin() {
				logAccessDenied(r, user)
				http.Redirect(w, r, localizedPath(r, "/"), http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, rt *auth.ReturnTo) {
	rt.Set(r.Context(), r.URL.RequestURI())
	http.Redirect(w, r, localizedPath(r, auth.AuthPath), http.StatusSeeOther)
}

// localizedPath returns clean in the language of the matched page route.
func localizedPath(r *http.Request, clean string) string {
	if m, ok := langroute.MatchFrom(r.Context()); ok {
		return m.URL(clean)
	}
	return clean
}

func logAccessDenied(r *http.Request, user *model.User) {
	slog.Warn("access denied",
		"category", model.EventCategoryAuth,
		"status", http.StatusForbidden,
		"method", r.Method,
		"path", r.URL.Path,
		"user_id", user.ID,
		"user_role", user.Role,
		"remote_addr", r.RemoteAddr,
	)
}
