// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the page-level HTTP handlers: the SPA shell for
// every language-prefixed page route, the localized web manifest, the
// theme stylesheet and health checks. The JSON API lives in handler/api.
package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/olegiv/storefront/internal/i18n"
	"github.com/olegiv/storefront/internal/langroute"
	"github.com/olegiv/storefront/internal/localize"
	"github.com/olegiv/storefront/internal/middleware"
	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/settings"
	"github.com/olegiv/storefront/internal/theme"
)

// Page paths shared with the router setup.
const (
	ManifestPath = "/manifest.webmanifest"
	ThemeCSSPath = "/theme.css"
	shellName    = "shell.html"
)

// PagesConfig holds the dependencies of the page handlers.
type PagesConfig struct {
	Templates fs.FS
	Settings  *settings.Cache
	Theme     *theme.ActiveTheme
	Head      *theme.Head
	Logger    *slog.Logger
}

// PagesHandler renders the SPA shell and its companion documents.
type PagesHandler struct {
	tmpl     *template.Template
	settings *settings.Cache
	theme    *theme.ActiveTheme
	head     *theme.Head
	logger   *slog.Logger
}

// NewPagesHandler parses the shell template and creates the handler.
func NewPagesHandler(cfg PagesConfig) (*PagesHandler, error) {
	tmpl, err := template.ParseFS(cfg.Templates, shellName)
	if err != nil {
		return nil, fmt.Errorf("parsing shell template: %w", err)
	}
	h := &PagesHandler{
		tmpl:     tmpl,
		settings: cfg.Settings,
		theme:    cfg.Theme,
		head:     cfg.Head,
		logger:   cfg.Logger,
	}
	if h.head == nil {
		h.head = theme.NewHead()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h, nil
}

// Routes returns the logical page routes. Every route serves the shell
// except the manifest; the SPA renders the page itself.
func (h *PagesHandler) Routes() []langroute.Route {
	shell := http.HandlerFunc(h.Shell)
	return []langroute.Route{
		{Pattern: "/", Access: langroute.Public, Handler: shell},
		{Pattern: "/category/{id}", Access: langroute.Public, Handler: shell},
		{Pattern: "/product/{id}", Access: langroute.Public, Handler: shell},
		{Pattern: "/cart", Access: langroute.Public, Handler: shell},
		{Pattern: "/checkout", Access: langroute.Public, Handler: shell},
		{Pattern: "/auth", Access: langroute.Public, Handler: shell},
		{Pattern: "/orders", Access: langroute.Protected, Handler: shell},
		{Pattern: "/admin", Access: langroute.AdminOnly, Handler: shell},
		{Pattern: "/admin/*", Access: langroute.AdminOnly, Handler: shell},
		{Pattern: ManifestPath, Access: langroute.Public, Handler: http.HandlerFunc(h.Manifest)},
		// Unknown pages still get the shell; the SPA shows its own not-found view.
		{Pattern: "/*", Access: langroute.Public, Handler: shell},
	}
}

type shellData struct {
	Lang        string
	Dir         string
	Title       string
	HasTitle    bool
	Head        template.HTML
	ThemeCSS    template.CSS
	ThemeColor  string
	ManifestURL string
	Alternates  []alternate
	Bootstrap   shellBootstrap
	Noscript    string
	Loading     string
}

type alternate struct {
	Lang string
	URL  string
}

// shellBootstrap is embedded as JSON so the SPA starts without a settings round trip.
type shellBootstrap struct {
	Language         string            `json:"language"`
	Direction        string            `json:"direction"`
	PrimaryLanguage  string            `json:"primaryLanguage"`
	EnabledLanguages []string          `json:"enabledLanguages"`
	Path             string            `json:"path"`
	Currency         string            `json:"currency"`
	Text             map[string]string `json:"text"`
	User             *shellUser        `json:"user,omitempty"`
}

// shellUser is the part of the signed-in account the SPA needs.
type shellUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Admin bool   `json:"admin"`
}

func newShellUser(u *model.User) *shellUser {
	if u == nil {
		return nil
	}
	return &shellUser{ID: u.ID, Email: u.Email, Name: u.DisplayName(), Phone: u.Phone, Admin: u.IsAdmin()}
}

// Shell renders the SPA shell in the request language.
func (h *PagesHandler) Shell(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := h.settings.Get(ctx)
	active := h.theme.Get(ctx)

	primary := s.Primary()
	lang := middleware.GetLanguageCode(r)
	if !s.IsEnabled(lang) {
		lang = primary
	}
	clean := r.URL.Path
	if m, ok := langroute.MatchFrom(ctx); ok {
		clean = m.CleanPath
	}

	alternates := make([]alternate, 0, len(s.Enabled()))
	for _, code := range s.Enabled() {
		alternates = append(alternates, alternate{Lang: code, URL: langroute.BuildURL(clean, code, primary)})
	}

	data := shellData{
		Lang:        lang,
		Dir:         model.DirectionOf(lang),
		Title:       localize.Resolve(s.Text, model.SettingStoreName, lang, primary),
		HasTitle:    h.head.HasTitle(lang),
		Head:        h.head.Render(lang),
		ThemeCSS:    template.CSS(h.theme.Applier().CSS()),
		ThemeColor:  hexOrEmpty(active.PrimaryColor),
		ManifestURL: langroute.BuildURL(ManifestPath, lang, primary),
		Alternates:  alternates,
		Bootstrap: shellBootstrap{
			Language:         lang,
			Direction:        model.DirectionOf(lang),
			PrimaryLanguage:  primary,
			EnabledLanguages: s.Enabled(),
			Path:             clean,
			Currency:         s.Currency,
			Text:             localize.Localize(s.Text, model.TranslatableSettingKeys, lang, primary),
			User:             newShellUser(middleware.GetUser(r)),
		},
		Noscript: i18n.T(lang, "shell.noscript"),
		Loading:  i18n.T(lang, "shell.loading"),
	}

	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, shellName, data); err != nil {
		h.logger.Error("failed to render shell", "error", err, "path", r.URL.Path)
		middleware.RenderErrorPage(w, r, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Vary", "Cookie, Accept-Language")
	_, _ = buf.WriteTo(w)
}

// WebManifest is the PWA manifest document.
type WebManifest struct {
	Name            string         `json:"name"`
	ShortName       string         `json:"short_name"`
	Description     string         `json:"description,omitempty"`
	Lang            string         `json:"lang"`
	Dir             string         `json:"dir"`
	StartURL        string         `json:"start_url"`
	Scope           string         `json:"scope"`
	Display         string         `json:"display"`
	BackgroundColor string         `json:"background_color,omitempty"`
	ThemeColor      string         `json:"theme_color,omitempty"`
	Icons           []ManifestIcon `json:"icons,omitempty"`
}

// ManifestIcon is one manifest icon entry.
type ManifestIcon struct {
	Src   string `json:"src"`
	Sizes string `json:"sizes"`
}

// Manifest serves the web manifest for the request language.
func (h *PagesHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s := h.settings.Get(ctx)
	active := h.theme.Get(ctx)

	primary := s.Primary()
	lang := middleware.GetLanguageCode(r)
	if !s.IsEnabled(lang) {
		lang = primary
	}
	name := localize.Resolve(s.Text, model.SettingStoreName, lang, primary)
	start := langroute.BuildURL("/", lang, primary)

	m := WebManifest{
		Name:            name,
		ShortName:       name,
		Description:     localize.Resolve(s.Text, model.SettingStoreDescription, lang, primary),
		Lang:            lang,
		Dir:             model.DirectionOf(lang),
		StartURL:        start,
		Scope:           start,
		Display:         "standalone",
		BackgroundColor: hexOrEmpty(active.BackgroundColor),
		ThemeColor:      hexOrEmpty(active.PrimaryColor),
	}
	for _, src := range []string{s.LogoURL, s.FaviconURL} {
		if src != "" {
			m.Icons = append(m.Icons, ManifestIcon{Src: src, Sizes: "any"})
		}
	}

	w.Header().Set("Content-Type", "application/manifest+json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(m); err != nil {
		h.logger.Error("failed to encode manifest", "error", err)
	}
}

// ThemeCSS serves the active theme variables as a stylesheet.
func (h *PagesHandler) ThemeCSS(w http.ResponseWriter, r *http.Request) {
	h.theme.Get(r.Context())
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(h.theme.Applier().CSS()))
}

// hexOrEmpty returns c when it is a hex color, which is all the manifest
// and theme-color meta accept.
func hexOrEmpty(c string) string {
	if _, ok := theme.HexToHSL(c); ok {
		return c
	}
	return ""
}
