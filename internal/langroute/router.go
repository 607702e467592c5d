// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package langroute

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/storefront/internal/model"
)

// Guards maps an access level to the middleware enforcing it.
type Guards map[Access]func(http.Handler) http.Handler

// SwitchFunc persists an explicit language choice before the switch redirect.
type SwitchFunc func(w http.ResponseWriter, r *http.Request, lang string)

// Router serves the language-expanded route table. The table is rebuilt
// and swapped atomically when the primary or enabled languages change.
type Router struct {
	routes      []Route
	guards      Guards
	middlewares []func(http.Handler) http.Handler
	onSwitch    SwitchFunc
	logger      *slog.Logger

	current atomic.Pointer[table]
}

type table struct {
	mux      *chi.Mux
	primary  string
	enabled  []string
	variants []Variant
}

// Option configures a Router.
type Option func(*Router)

// WithMiddleware adds middleware run inside the Match context and before the access guard.
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(rt *Router) { rt.middlewares = append(rt.middlewares, mw...) }
}

// WithSwitch sets the callback used by the language switch endpoint.
func WithSwitch(fn SwitchFunc) Option {
	return func(rt *Router) { rt.onSwitch = fn }
}

// WithLogger sets the router logger.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Router) { rt.logger = l }
}

// NewRouter creates a Router for routes and builds its first table.
func NewRouter(routes []Route, guards Guards, primary string, enabled []string, opts ...Option) *Router {
	rt := &Router{
		routes: routes,
		guards: guards,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.Rebuild(primary, enabled)
	return rt
}

// ServeHTTP dispatches to the current table. Non-canonical paths are
// redirected first so every page is reached through its guarded pattern.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t := rt.current.Load()
	if target, ok := t.canonical(r.URL.Path); ok {
		redirect(w, r, target)
		return
	}
	t.mux.ServeHTTP(w, r)
}

// canonical returns the redirect target of a path with repeated or trailing
// slashes or with the prefix of a known but disabled language.
func (t *table) canonical(p string) (string, bool) {
	target := Normalize(p)
	if lang, clean := ExtractLanguage(target, t.primary); lang != t.primary && !slices.Contains(t.enabled, lang) {
		target = Normalize(clean)
	}
	return target, target != p
}

// redirect keeps the query. Unsafe methods get 308 so they are replayed
// with their body.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	code := http.StatusMovedPermanently
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		code = http.StatusPermanentRedirect
	}
	http.Redirect(w, r, target, code)
}

// Primary returns the primary language of the current table.
func (rt *Router) Primary() string {
	return rt.current.Load().primary
}

// Enabled returns the enabled languages of the current table.
func (rt *Router) Enabled() []string {
	return slices.Clone(rt.current.Load().enabled)
}

// Variants returns the registered variants of the current table.
func (rt *Router) Variants() []Variant {
	return slices.Clone(rt.current.Load().variants)
}

// OnSettingsChange rebuilds the table when the language configuration changed.
func (rt *Router) OnSettingsChange(s model.StoreSettings) {
	primary, enabled := s.Primary(), s.Enabled()
	cur := rt.current.Load()
	if cur != nil && cur.primary == primary && slices.Equal(cur.enabled, enabled) {
		return
	}
	rt.Rebuild(primary, enabled)
}

// Rebuild builds a new table and swaps it in.
func (rt *Router) Rebuild(primary string, enabled []string) {
	if !slices.Contains(enabled, primary) {
		enabled = append([]string{primary}, enabled...)
	}
	variants := Expand(rt.routes, enabled, primary)

	mux := chi.NewRouter()
	for _, v := range variants {
		mux.Handle(v.Pattern, rt.wrap(v, primary, enabled))
	}

	// The primary language is canonical without a prefix.
	canonical := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, clean := ExtractLanguage(r.URL.Path, primary)
		redirect(w, r, Normalize(clean))
	})
	mux.Handle("/"+primary, canonical)
	mux.Handle("/"+primary+"/*", canonical)

	mux.Get("/lang/{code}", rt.switchHandler(primary, enabled))

	rt.current.Store(&table{mux: mux, primary: primary, enabled: slices.Clone(enabled), variants: variants})
	rt.logger.Info("language routes rebuilt",
		"primary", primary,
		"enabled", strings.Join(enabled, ","),
		"variants", len(variants))
}

func (rt *Router) wrap(v Variant, primary string, enabled []string) http.Handler {
	h := v.Route.Handler
	if guard := rt.guards[v.Route.Access]; guard != nil {
		h = guard(h)
	}
	for i := len(rt.middlewares) - 1; i >= 0; i-- {
		h = rt.middlewares[i](h)
	}
	enabledCopy := slices.Clone(enabled)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := r.URL.Path
		if v.Prefixed {
			_, clean = ExtractLanguage(r.URL.Path, primary)
		}
		m := Match{
			Lang:      v.Lang,
			Primary:   primary,
			Enabled:   enabledCopy,
			CleanPath: Normalize(clean),
			Prefixed:  v.Prefixed,
			Access:    v.Route.Access,
		}
		h.ServeHTTP(w, r.WithContext(WithMatch(r.Context(), m)))
	})
}

// switchHandler serves GET /lang/{code}?path=/clean/path. The choice is
// persisted before the redirect is written.
func (rt *Router) switchHandler(primary string, enabled []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToLower(chi.URLParam(r, "code"))

		current := r.URL.Query().Get("path")
		if !isLocalPath(current) {
			current = "/"
		}
		if !slices.Contains(enabled, code) {
			code = primary
		} else if rt.onSwitch != nil {
			rt.onSwitch(w, r, code)
		}

		http.Redirect(w, r, Switch(current, code, primary), http.StatusSeeOther)
	}
}

func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") &&
		!strings.HasPrefix(p, "//") &&
		!strings.HasPrefix(p, "/\\") &&
		!strings.ContainsAny(p, "\r\n")
}
