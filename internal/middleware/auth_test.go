// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/storefront/internal/auth"
	"github.com/olegiv/storefront/internal/langroute"
	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/session"
	"github.com/olegiv/storefront/internal/store"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.NewDB(filepath.Join(t.TempDir(), "middleware-test.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createUser(t *testing.T, db *sql.DB, email, role string) model.User {
	t.Helper()
	now := time.Now().UTC()
	u, err := store.New(db).CreateUser(context.Background(), store.CreateUserParams{
		Email:        email,
		PasswordHash: "x",
		Role:         role,
		Name:         "Test",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	return u
}

// sessionCookie runs fn inside a session and returns the resulting cookie.
func sessionCookie(t *testing.T, sm *scs.SessionManager, fn func(ctx context.Context)) *http.Cookie {
	t.Helper()
	h := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fn(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func withUser(req *http.Request, u model.User) *http.Request {
	return req.WithContext(WithUser(req.Context(), u))
}

func TestGetUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, GetUser(req))
	assert.Equal(t, int64(0), GetUserID(req))

	req = withUser(req, model.User{ID: 123, Email: "test@example.com", Role: model.RoleAdmin})
	user := GetUser(req)
	require.NotNil(t, user)
	assert.Equal(t, int64(123), user.ID)
	assert.Equal(t, int64(123), GetUserID(req))
}

func TestLoadUser(t *testing.T) {
	db := testDB(t)
	sm := session.New(db, true)
	u := createUser(t, db, "buyer@example.com", model.RoleCustomer)

	var got *model.User
	h := sm.LoadAndSave(LoadUser(sm, db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetUser(r)
	})))

	t.Run("signed in", func(t *testing.T) {
		cookie := sessionCookie(t, sm, func(ctx context.Context) { sm.Put(ctx, session.KeyUserID, u.ID) })
		req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
		req.AddCookie(cookie)
		h.ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, got)
		assert.Equal(t, u.Email, got.Email)
	})

	t.Run("deleted user", func(t *testing.T) {
		cookie := sessionCookie(t, sm, func(ctx context.Context) { sm.Put(ctx, session.KeyUserID, int64(9999)) })
		req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
		req.AddCookie(cookie)
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.Nil(t, got)
	})

	t.Run("anonymous", func(t *testing.T) {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/auth/user", nil))
		assert.Nil(t, got)
	})
}

func TestRequireUserAndAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	customer := model.User{ID: 1, Role: model.RoleCustomer}
	admin := model.User{ID: 2, Role: model.RoleAdmin}

	tests := []struct {
		name     string
		guard    func(http.Handler) http.Handler
		user     *model.User
		wantCode int
		wantErr  string
	}{
		{"user anonymous", RequireUser, nil, http.StatusUnauthorized, CodeUnauthorized},
		{"user customer", RequireUser, &customer, http.StatusOK, ""},
		{"admin anonymous", RequireAdmin, nil, http.StatusUnauthorized, CodeUnauthorized},
		{"admin customer", RequireAdmin, &customer, http.StatusForbidden, CodeForbidden},
		{"admin admin", RequireAdmin, &admin, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/orders/mine", nil)
			if tt.user != nil {
				req = withUser(req, *tt.user)
			}
			rec := httptest.NewRecorder()
			tt.guard(ok).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantErr != "" {
				var body APIError
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, tt.wantErr, body.Error.Code)
				assert.NotEmpty(t, body.Error.Message)
			}
		})
	}
}

func TestRequireUserPage_RedirectsToLocalizedLogin(t *testing.T) {
	db := testDB(t)
	sm := session.New(db, true)
	rt := auth.NewReturnTo(sm)

	m := langroute.Match{Lang: "he", Primary: "ru", Enabled: allLanguages, CleanPath: "/profile", Prefixed: true}
	guarded := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(langroute.WithMatch(r.Context(), m))
		RequireUserPage(rt)(http.NotFoundHandler()).ServeHTTP(w, r)
	}))

	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/he/profile?tab=orders", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/he/auth", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	var stored string
	peek := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stored = rt.Peek(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/he/auth", nil)
	req.AddCookie(cookies[0])
	peek.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "/he/profile?tab=orders", stored)
}

func TestRequireAdminPage(t *testing.T) {
	db := testDB(t)
	sm := session.New(db, true)
	rt := auth.NewReturnTo(sm)
	m := langroute.Match{Lang: "ru", Primary: "ru", Enabled: allLanguages, CleanPath: "/admin"}

	tests := []struct {
		name     string
		user     *model.User
		wantCode int
		wantLoc  string
	}{
		{"anonymous", nil, http.StatusSeeOther, "/auth"},
		{"customer", &model.User{ID: 1, Role: model.RoleCustomer}, http.StatusSeeOther, "/"},
		{"admin", &model.User{ID: 2, Role: model.RoleAdmin}, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				r = r.WithContext(langroute.WithMatch(r.Context(), m))
				if tt.user != nil {
					r = withUser(r, *tt.user)
				}
				RequireAdminPage(rt)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				})).ServeHTTP(w, r)
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantLoc, rec.Header().Get("Location"))
		})
	}
}
