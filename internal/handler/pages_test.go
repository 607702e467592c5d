// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/storefront/internal/auth"
	"github.com/olegiv/storefront/internal/i18n"
	"github.com/olegiv/storefront/internal/langroute"
	"github.com/olegiv/storefront/internal/middleware"
	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/session"
	"github.com/olegiv/storefront/internal/settings"
	"github.com/olegiv/storefront/internal/store"
	"github.com/olegiv/storefront/internal/theme"
	"github.com/olegiv/storefront/web"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestMain(m *testing.M) {
	if err := i18n.Init(discardLogger); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type pagesEnv struct {
	db       *sql.DB
	queries  *store.Queries
	settings *settings.Cache
	router   *langroute.Router
	server   http.Handler
	user     *model.User
}

func newPagesEnv(t *testing.T) *pagesEnv {
	t.Helper()
	ctx := context.Background()

	db, err := store.NewDB(filepath.Join(t.TempDir(), "pages-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db))
	require.NoError(t, store.Seed(ctx, db))

	env := &pagesEnv{db: db, queries: store.New(db)}

	head := theme.NewHead()
	env.settings = settings.New(settings.NewStoreFetcher(env.queries), settings.WithLogger(discardLogger))
	env.settings.OnChange(head.ApplySettings)
	at := theme.NewActiveTheme(theme.LoaderFunc(env.queries.GetActiveTheme), theme.NewApplier(),
		theme.WithActiveLogger(discardLogger))

	pages, err := NewPagesHandler(PagesConfig{
		Templates: web.Templates(),
		Settings:  env.settings,
		Theme:     at,
		Head:      head,
		Logger:    discardLogger,
	})
	require.NoError(t, err)

	sm := session.New(db, true)
	rt := auth.NewReturnTo(sm)
	s := env.settings.Get(ctx)

	// The signed-in user is injected directly instead of through a login.
	asUser := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if env.user != nil {
				r = r.WithContext(middleware.WithUser(r.Context(), *env.user))
			}
			next.ServeHTTP(w, r)
		})
	}
	env.router = langroute.NewRouter(pages.Routes(), langroute.Guards{
		langroute.Protected: middleware.RequireUserPage(rt),
		langroute.AdminOnly: middleware.RequireAdminPage(rt),
	}, s.Primary(), s.Enabled(),
		langroute.WithMiddleware(middleware.PageLanguage, asUser),
		langroute.WithSwitch(middleware.LanguageSwitch),
		langroute.WithLogger(discardLogger),
	)
	env.settings.OnChange(env.router.OnSettingsChange)

	mux := http.NewServeMux()
	mux.HandleFunc(ThemeCSSPath, pages.ThemeCSS)
	mux.Handle("/", env.router)
	env.server = sm.LoadAndSave(mux)
	return env
}

func (e *pagesEnv) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func (e *pagesEnv) updateSettings(t *testing.T, fn func(*model.StoreSettings)) {
	t.Helper()
	s, err := e.queries.GetStoreSettings(t.Context())
	require.NoError(t, err)
	fn(&s)
	require.NoError(t, e.queries.UpsertStoreSettings(t.Context(), s, time.Now().UTC().Add(time.Second)))
	e.settings.Refresh(t.Context())
}

func TestShellPrimaryLanguage(t *testing.T) {
	env := newPagesEnv(t)
	rr := env.get("/")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ru", rr.Header().Get("Content-Language"))

	body := rr.Body.String()
	assert.Contains(t, body, `<html lang="ru" dir="ltr">`)
	assert.Contains(t, body, "<title>Вкусная доставка</title>")
	assert.Contains(t, body, "--color-primary:")
	assert.Contains(t, body, `<link rel="manifest" href="/manifest.webmanifest">`)
	assert.Contains(t, body, `hreflang="he" href="/he"`)
	assert.Contains(t, body, `<meta name="theme-color" content="#f97316">`)
}

func TestShellPrefixedLanguage(t *testing.T) {
	env := newPagesEnv(t)
	rr := env.get("/he/category/5")
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, `<html lang="he" dir="rtl">`)
	assert.Contains(t, body, "משלוח טעים")
	assert.Contains(t, body, `href="/he/manifest.webmanifest"`)
	assert.Contains(t, body, `hreflang="ru" href="/category/5"`)
	assert.Contains(t, body, `hreflang="en" href="/en/category/5"`)
}

func TestShellBootstrap(t *testing.T) {
	env := newPagesEnv(t)
	env.updateSettings(t, func(s *model.StoreSettings) {
		s.Text["welcomeTitle_en"] = "</script><script>alert(1)</script>"
	})

	body := env.get("/en/cart").Body.String()
	assert.NotContains(t, body, "<script>alert(1)")
	assert.Contains(t, body, `"path":"/cart"`)
	assert.Contains(t, body, `"language":"en"`)
}

func TestShellBootstrapUser(t *testing.T) {
	env := newPagesEnv(t)
	assert.NotContains(t, env.get("/en").Body.String(), `"user"`)

	env.user = &model.User{ID: 7, Email: "dana@example.com", Role: model.RoleCustomer, PasswordHash: "argon2id-secret-hash"}
	body := env.get("/en").Body.String()
	assert.Contains(t, body, `"user":{"id":7,"email":"dana@example.com","name":"dana","admin":false}`)
	assert.NotContains(t, body, "argon2id-secret-hash")
}

func TestShellUnknownPageServesShell(t *testing.T) {
	env := newPagesEnv(t)

	rr := env.get("/xx/somewhere")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `<html lang="ru"`, "unknown prefix belongs to the primary language")

	rr = env.get("/ar/unknown/page")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `<html lang="ar" dir="rtl">`)
}

func TestHomeHonoursStoredPreference(t *testing.T) {
	env := newPagesEnv(t)

	rr := env.get("/", &http.Cookie{Name: middleware.LanguageCookieName, Value: "en"})
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/en", rr.Header().Get("Location"))

	// Only the unprefixed home page redirects.
	rr = env.get("/cart", &http.Cookie{Name: middleware.LanguageCookieName, Value: "en"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestPrimaryPrefixIsCanonicalized(t *testing.T) {
	env := newPagesEnv(t)
	rr := env.get("/ru/cart?x=1")
	assert.Equal(t, http.StatusMovedPermanently, rr.Code)
	assert.Equal(t, "/cart?x=1", rr.Header().Get("Location"))
}

func TestPageAccess(t *testing.T) {
	env := newPagesEnv(t)
	customer := &model.User{ID: 7, Email: "c@example.com", Role: model.RoleCustomer}
	admin := &model.User{ID: 1, Email: store.DefaultAdminEmail, Role: model.RoleAdmin}

	tests := []struct {
		name     string
		user     *model.User
		path     string
		status   int
		location string
	}{
		{"anonymous orders", nil, "/orders", http.StatusSeeOther, "/auth"},
		{"anonymous prefixed orders", nil, "/he/orders", http.StatusSeeOther, "/he/auth"},
		{"customer orders", customer, "/en/orders", http.StatusOK, ""},
		{"anonymous admin", nil, "/admin/products", http.StatusSeeOther, "/auth"},
		{"customer admin", customer, "/he/admin", http.StatusSeeOther, "/he"},
		{"admin", admin, "/ar/admin/orders", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.user = tt.user
			rr := env.get(tt.path)
			assert.Equal(t, tt.status, rr.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, rr.Header().Get("Location"))
			}
		})
	}
}

func TestRoutesAccessLevels(t *testing.T) {
	env := newPagesEnv(t)
	access := map[string]langroute.Access{}
	for _, v := range env.router.Variants() {
		access[v.Pattern] = v.Route.Access
	}
	assert.Equal(t, langroute.Public, access["/"])
	assert.Equal(t, langroute.Public, access["/he/product/{id}"])
	assert.Equal(t, langroute.Protected, access["/orders"])
	assert.Equal(t, langroute.Protected, access["/ar/orders"])
	assert.Equal(t, langroute.AdminOnly, access["/en/admin/*"])
	assert.NotContains(t, access, "/ru/cart", "the primary language has no prefixed variant")
}

func TestManifest(t *testing.T) {
	env := newPagesEnv(t)

	tests := []struct {
		path  string
		lang  string
		dir   string
		name  string
		start string
	}{
		{ManifestPath, "ru", "ltr", "Вкусная доставка", "/"},
		{"/he" + ManifestPath, "he", "rtl", "משלוח טעים", "/he"},
		{"/en" + ManifestPath, "en", "ltr", "Tasty Delivery", "/en"},
	}
	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			rr := env.get(tt.path)
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "application/manifest+json", rr.Header().Get("Content-Type"))

			var m WebManifest
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
			assert.Equal(t, tt.lang, m.Lang)
			assert.Equal(t, tt.dir, m.Dir)
			assert.Equal(t, tt.name, m.Name)
			assert.Equal(t, tt.start, m.StartURL)
			assert.Equal(t, "#f97316", m.ThemeColor)
		})
	}
}

func TestManifestFollowsEnabledLanguages(t *testing.T) {
	env := newPagesEnv(t)
	env.updateSettings(t, func(s *model.StoreSettings) {
		s.EnabledLanguages = []string{"ru", "en"}
	})

	// Hebrew is no longer routed; the path falls through to the primary catch-all.
	rr := env.get("/he" + ManifestPath)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, []string{"ru", "en"}, env.router.Enabled())
}

func TestThemeCSS(t *testing.T) {
	env := newPagesEnv(t)
	rr := env.get(ThemeCSSPath)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/css; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), ":root{")
	assert.Contains(t, rr.Body.String(), "--radius:0.5rem;")
}

func TestHexOrEmpty(t *testing.T) {
	assert.Equal(t, "#fff", hexOrEmpty("#fff"))
	assert.Empty(t, hexOrEmpty("hsl(0 0% 0%)"))
	assert.Empty(t, hexOrEmpty(""))
}
