// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/text/language"

	"github.com/olegiv/storefront/internal/langroute"
	"github.com/olegiv/storefront/internal/model"
)

// ContextKeyLanguage is the context key of the request LanguageInfo.
const ContextKeyLanguage ContextKey = "language"

// LanguageCookieName is the cookie name for language preference.
const LanguageCookieName = "sf_lang"

// LanguageCookieMaxAge keeps the preference for one year.
const LanguageCookieMaxAge = 365 * 24 * 60 * 60

// LanguageInfo holds language data for the request context.
type LanguageInfo struct {
	Code       string
	Name       string
	NativeName string
	Flag       string
	Direction  string
	IsPrimary  bool
}

// IsRTL reports whether the language is written right to left.
func (l LanguageInfo) IsRTL() bool {
	return l.Direction == model.DirectionRTL
}

// SettingsGetter returns the current store settings.
type SettingsGetter interface {
	Get(ctx context.Context) model.StoreSettings
}

// PageLanguage sets the request language of a page route from its URL
// match. The unprefixed home page honours the stored preference first:
// cookie, then Accept-Language, redirecting to the preferred prefix when
// it is not the primary language.
func PageLanguage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, ok := langroute.MatchFrom(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		if isHomeRequest(r, m) {
			if pref := preferredLanguage(r, m.Enabled); pref != "" && pref != m.Primary {
				target := langroute.BuildURL("/", pref, m.Primary)
				if r.URL.RawQuery != "" {
					target += "?" + r.URL.RawQuery
				}
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
		}

		w.Header().Set("Content-Language", m.Lang)
		next.ServeHTTP(w, r.WithContext(setLanguageContext(r.Context(), m.Lang, m.Primary)))
	})
}

func isHomeRequest(r *http.Request, m langroute.Match) bool {
	return !m.Prefixed && m.CleanPath == "/" &&
		(r.Method == http.MethodGet || r.Method == http.MethodHead)
}

// APILanguage sets the request language of an API call. Priority order:
// ?lang=XX, the language cookie, Accept-Language, the primary language.
// Only enabled languages are accepted.
func APILanguage(src SettingsGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := src.Get(r.Context())
			primary, enabled := s.Primary(), s.Enabled()

			code := primary
			if q := strings.ToLower(r.URL.Query().Get("lang")); q != "" && slices.Contains(enabled, q) {
				code = q
			} else if pref := preferredLanguage(r, enabled); pref != "" {
				code = pref
			}

			w.Header().Set("Content-Language", code)
			next.ServeHTTP(w, r.WithContext(setLanguageContext(r.Context(), code, primary)))
		})
	}
}

// preferredLanguage returns the cookie language or the best
// Accept-Language match among enabled, or "" when neither applies.
func preferredLanguage(r *http.Request, enabled []string) string {
	if cookie, err := r.Cookie(LanguageCookieName); err == nil {
		code := strings.ToLower(cookie.Value)
		if slices.Contains(enabled, code) {
			return code
		}
	}
	if lang, ok := MatchAcceptLanguage(r.Header.Get("Accept-Language"), enabled); ok {
		return lang
	}
	return ""
}

// MatchAcceptLanguage returns the best match for an Accept-Language header
// among the enabled language codes.
func MatchAcceptLanguage(header string, enabled []string) (string, bool) {
	if header == "" || len(enabled) == 0 {
		return "", false
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return "", false
	}

	supported := make([]language.Tag, 0, len(enabled))
	for _, code := range enabled {
		tag, err := language.Parse(code)
		if err != nil {
			continue
		}
		supported = append(supported, tag)
	}
	if len(supported) == 0 {
		return "", false
	}

	_, idx, conf := language.NewMatcher(supported).Match(tags...)
	if conf == language.No {
		return "", false
	}
	base, _ := supported[idx].Base()
	return base.String(), true
}

func setLanguageContext(ctx context.Context, code, primary string) context.Context {
	info := LanguageInfo{Code: code, Direction: model.DirectionLTR, IsPrimary: code == primary}
	if l, ok := model.LookupLanguage(code); ok {
		info.Name = l.Name
		info.NativeName = l.NativeName
		info.Flag = l.Flag
		info.Direction = l.Direction
	}
	return context.WithValue(ctx, ContextKeyLanguage, info)
}

// WithLanguage returns ctx carrying code as the request language.
func WithLanguage(ctx context.Context, code, primary string) context.Context {
	return setLanguageContext(ctx, code, primary)
}

// GetLanguage retrieves the current language from the request context.
// Returns nil if no language is in context.
func GetLanguage(r *http.Request) *LanguageInfo {
	info, ok := r.Context().Value(ContextKeyLanguage).(LanguageInfo)
	if !ok {
		return nil
	}
	return &info
}

// GetLanguageCode returns the request language code, or the default
// language when none was detected.
func GetLanguageCode(r *http.Request) string {
	if info := GetLanguage(r); info != nil {
		return info.Code
	}
	return model.DefaultLanguage
}

// SetLanguageCookie sets the language preference cookie.
func SetLanguageCookie(w http.ResponseWriter, langCode string) {
	http.SetCookie(w, &http.Cookie{
		Name:     LanguageCookieName,
		Value:    langCode,
		Path:     "/",
		MaxAge:   LanguageCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// LanguageSwitch persists the choice made through the language switch
// endpoint. It matches langroute.SwitchFunc.
func LanguageSwitch(w http.ResponseWriter, _ *http.Request, lang string) {
	SetLanguageCookie(w, lang)
}
