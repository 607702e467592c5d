// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Hosts of the Facebook pixel and Yandex Metrica snippets the storefront
// head injects when the corresponding settings are filled.
var (
	analyticsScriptHosts  = []string{"https://connect.facebook.net", "https://mc.yandex.ru", "https://mc.yandex.com"}
	analyticsConnectHosts = []string{"https://www.facebook.com", "https://mc.yandex.ru", "https://mc.yandex.com"}
)

// CSPDirective is one Content-Security-Policy directive.
type CSPDirective struct {
	Name    string
	Sources []string
}

func (d CSPDirective) String() string {
	if len(d.Sources) == 0 {
		return d.Name
	}
	return d.Name + " " + strings.Join(d.Sources, " ")
}

// SecurityHeadersConfig describes the headers added to every response.
type SecurityHeadersConfig struct {
	// CSP directives in output order. Empty disables the header.
	CSP []CSPDirective
	// HSTSMaxAge of zero disables Strict-Transport-Security.
	HSTSMaxAge            time.Duration
	HSTSIncludeSubDomains bool
	FrameOptions          string
	ReferrerPolicy        string
	// Permissions maps a feature to its allow list, e.g. "(self)".
	Permissions map[string]string
}

// DefaultSecurityHeadersConfig returns the storefront policy. Development
// mode allows the SPA dev server (eval source maps, HMR websocket) and
// turns HSTS off.
func DefaultSecurityHeadersConfig(isDev bool) SecurityHeadersConfig {
	self := "'self'"
	script := append([]string{self, "'unsafe-inline'"}, analyticsScriptHosts...)
	connect := append([]string{self}, analyticsConnectHosts...)

	cfg := SecurityHeadersConfig{
		HSTSMaxAge:            365 * 24 * time.Hour,
		HSTSIncludeSubDomains: true,
		FrameOptions:          "SAMEORIGIN",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		Permissions: map[string]string{
			"accelerometer":   "()",
			"browsing-topics": "()",
			"camera":          "()",
			"geolocation":     "(self)",
			"gyroscope":       "()",
			"magnetometer":    "()",
			"microphone":      "()",
			"payment":         "()",
			"usb":             "()",
		},
	}
	if isDev {
		script = append(script, "'unsafe-eval'")
		connect = append(connect, "ws:", "http://localhost:*")
		cfg.HSTSMaxAge = 0
		cfg.HSTSIncludeSubDomains = false
	}

	cfg.CSP = []CSPDirective{
		{"default-src", []string{self}},
		{"script-src", script},
		{"style-src", []string{self, "'unsafe-inline'"}},
		{"img-src", []string{self, "data:", "blob:", "https:"}},
		{"font-src", []string{self, "data:"}},
		{"connect-src", connect},
		{"frame-src", []string{self, "https://www.facebook.com"}},
		{"manifest-src", []string{self}},
		{"worker-src", []string{self}},
		{"object-src", []string{"'none'"}},
		{"base-uri", []string{self}},
		{"form-action", []string{self}},
	}
	return cfg
}

// Header renders cfg as response headers.
func (cfg SecurityHeadersConfig) Header() http.Header {
	h := make(http.Header)
	h.Set("X-Content-Type-Options", "nosniff")

	if len(cfg.CSP) > 0 {
		parts := make([]string, len(cfg.CSP))
		for i, d := range cfg.CSP {
			parts[i] = d.String()
		}
		h.Set("Content-Security-Policy", strings.Join(parts, "; "))
	}
	if cfg.HSTSMaxAge > 0 {
		v := "max-age=" + strconv.FormatInt(int64(cfg.HSTSMaxAge/time.Second), 10)
		if cfg.HSTSIncludeSubDomains {
			v += "; includeSubDomains"
		}
		h.Set("Strict-Transport-Security", v)
	}
	if cfg.FrameOptions != "" {
		h.Set("X-Frame-Options", cfg.FrameOptions)
	}
	if cfg.ReferrerPolicy != "" {
		h.Set("Referrer-Policy", cfg.ReferrerPolicy)
	}
	if len(cfg.Permissions) > 0 {
		features := slices.Sorted(maps.Keys(cfg.Permissions))
		parts := make([]string, len(features))
		for i, f := range features {
			parts[i] = f + "=" + cfg.Permissions[f]
		}
		h.Set("Permissions-Policy", strings.Join(parts, ", "))
	}
	return h
}

// SecurityHeaders adds the headers of cfg to every response.
func SecurityHeaders(cfg SecurityHeadersConfig) func(http.Handler) http.Handler {
	headers := cfg.Header()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dst := w.Header()
			for k, v := range headers {
				dst[k] = slices.Clone(v)
			}
			next.ServeHTTP(w, r)
		})
	}
}
