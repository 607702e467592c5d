// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/olegiv/storefront/internal/i18n"
	"github.com/olegiv/storefront/internal/langroute"
	"github.com/olegiv/storefront/internal/model"
)

var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}" dir="{{.Dir}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="robots" content="noindex">
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;display:flex;min-height:100vh;align-items:center;justify-content:center;margin:0;background:#f8fafc;color:#0f172a}
main{max-width:28rem;padding:2rem;text-align:center}
button,a{display:inline-block;margin:.25rem;padding:.6rem 1.2rem;border-radius:.5rem;font:inherit;text-decoration:none}
button{border:0;background:#f97316;color:#fff;cursor:pointer}
a{border:1px solid #e2e8f0;color:inherit}
</style>
</head>
<body>
<main>
<h1>{{.Title}}</h1>
<p>{{.Description}}</p>
<button type="button" onclick="window.location.reload()">{{.Reload}}</button>
<a href="{{.Home}}">{{.HomeLabel}}</a>
</main>
</body>
</html>
`))

type errorPageData struct {
	Lang        string
	Dir         string
	Title       string
	Description string
	Reload      string
	Home        string
	HomeLabel   string
}

// Recover is the error boundary. A panic is logged with its stack and
// answered with a localized JSON error for API calls or a localized error
// page with a reload action for pages.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					"error", fmt.Sprint(rec),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				if IsAPIRequest(r) {
					WriteAPIError(w, http.StatusInternalServerError, CodeInternal,
						i18n.T(errorLanguage(r), "error.internal"), nil)
					return
				}
				RenderErrorPage(w, r, http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RenderErrorPage writes the localized error page with status.
func RenderErrorPage(w http.ResponseWriter, r *http.Request, status int) {
	lang := errorLanguage(r)
	home := "/"
	if m, ok := langroute.MatchFrom(r.Context()); ok {
		home = m.URL("/")
	} else if l, _ := langroute.ExtractLanguage(r.URL.Path, ""); l != "" {
		home = "/" + l
	}

	data := errorPageData{
		Lang:        lang,
		Dir:         model.DirectionOf(lang),
		Title:       i18n.T(lang, "error.title"),
		Description: i18n.T(lang, "error.description"),
		Reload:      i18n.T(lang, "error.reload"),
		Home:        home,
		HomeLabel:   i18n.T(lang, "error.home"),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := errorPage.Execute(w, data); err != nil {
		slog.Error("failed to render error page", "error", err)
	}
}

// errorLanguage picks the language of an error response. The boundary
// runs outside language detection, so the URL prefix and cookie are
// consulted directly.
func errorLanguage(r *http.Request) string {
	if info := GetLanguage(r); info != nil {
		return info.Code
	}
	if l, _ := langroute.ExtractLanguage(r.URL.Path, ""); l != "" {
		return l
	}
	if cookie, err := r.Cookie(LanguageCookieName); err == nil && model.IsKnownLanguage(cookie.Value) {
		return cookie.Value
	}
	return model.DefaultLanguage
}
