// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/storefront/internal/cache"
	"github.com/olegiv/storefront/internal/handler"
	"github.com/olegiv/storefront/internal/i18n"
	"github.com/olegiv/storefront/internal/middleware"
	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/session"
	"github.com/olegiv/storefront/internal/settings"
	"github.com/olegiv/storefront/internal/store"
	"github.com/olegiv/storefront/internal/theme"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestMain(m *testing.M) {
	if err := i18n.Init(discardLogger); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// testEnv is a fully wired API over a seeded temporary database.
type testEnv struct {
	t       *testing.T
	db      *sql.DB
	queries *store.Queries
	handler *Handler
	server  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := store.NewDB(filepath.Join(t.TempDir(), "api-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db))
	require.NoError(t, store.Seed(ctx, db))

	queries := store.New(db)
	sm := session.New(db, true)
	sc := settings.New(settings.NewStoreFetcher(queries), settings.WithLogger(discardLogger))
	at := theme.NewActiveTheme(theme.LoaderFunc(queries.GetActiveTheme), theme.NewApplier(),
		theme.WithActiveLogger(discardLogger))
	mem := cache.NewSimpleMemoryCache(time.Minute)
	t.Cleanup(func() { _ = mem.Close() })

	h := NewHandler(Config{
		DB:              db,
		Sessions:        sm,
		Settings:        sc,
		Theme:           at,
		Catalog:         cache.NewCatalogCache(mem, time.Minute),
		LoginProtection: middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig()),
		Logger:          discardLogger,
	})
	return &testEnv{
		t:       t,
		db:      db,
		queries: queries,
		handler: h,
		server:  sm.LoadAndSave(h.Routes(RouteOptions{})),
	}
}

// client is a browser stand-in that carries cookies between requests.
type client struct {
	env     *testEnv
	cookies map[string]*http.Cookie
	header  http.Header
}

func (e *testEnv) client() *client {
	return &client{env: e, cookies: map[string]*http.Cookie{}, header: http.Header{}}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.env.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.env.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	rr := httptest.NewRecorder()
	c.env.server.ServeHTTP(rr, req)

	for _, ck := range rr.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rr
}

func (c *client) login(email, password string) {
	c.env.t.Helper()
	rr := c.do(http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: password})
	require.Equal(c.env.t, http.StatusOK, rr.Code, rr.Body.String())
}

// adminClient returns a client signed in as the seeded admin.
func (e *testEnv) adminClient() *client {
	c := e.client()
	c.login(store.DefaultAdminEmail, store.DefaultAdminPassword)
	return c
}

// envelope is the decoded shape of every API response.
type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Meta  *handler.Pagination `json:"meta"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}

func decodeData[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	env := decode(t, rr)
	require.NoError(t, json.Unmarshal(env.Data, &v), string(env.Data))
	return v
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	env := decode(t, rr)
	require.NotNil(t, env.Error, rr.Body.String())
	return env.Error.Code
}

// seedCatalog creates an active category with two products and an
// inactive category, directly in the store.
func (e *testEnv) seedCatalog() (model.Category, model.Product, model.Product) {
	e.t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	cat, err := e.queries.CreateCategory(ctx, model.Category{
		Slug: "pizza", Name: "Пицца", IsActive: true,
		Translations: model.Fields{"name_en": "Pizza", "name_he": "פיצה"},
	}, now)
	require.NoError(e.t, err)
	_, err = e.queries.CreateCategory(ctx, model.Category{Slug: "hidden", Name: "Скрытая"}, now)
	require.NoError(e.t, err)

	margherita, err := e.queries.CreateProduct(ctx, model.Product{
		CategoryID: cat.ID, Slug: "margherita", Name: "Маргарита",
		Translations: model.Fields{"name_en": "Margherita"},
		Price:        decimal.RequireFromString("40.00"), IsAvailable: true, IsPopular: true,
	}, now)
	require.NoError(e.t, err)
	soldOut, err := e.queries.CreateProduct(ctx, model.Product{
		CategoryID: cat.ID, Slug: "sold-out", Name: "Закончилась",
		Price: decimal.NewFromInt(10), Position: 1,
	}, now)
	require.NoError(e.t, err)
	return cat, margherita, soldOut
}

// updateSettings changes the stored settings and refreshes the cache.
func (e *testEnv) updateSettings(fn func(*model.StoreSettings)) {
	e.t.Helper()
	ctx := context.Background()
	s, err := e.queries.GetStoreSettings(ctx)
	require.NoError(e.t, err)
	fn(&s)
	require.NoError(e.t, e.queries.UpsertStoreSettings(ctx, s, time.Now().UTC()))
	e.handler.settings.Refresh(ctx)
}
