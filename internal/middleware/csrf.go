// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"filippo.io/csrf"

	"github.com/olegiv/storefront/internal/logging"
	"github.com/olegiv/storefront/internal/model"
)

// CSRFConfig configures cross-origin protection. Browsers label every
// request with Sec-Fetch-Site or Origin, so the SPA sends no token.
type CSRFConfig struct {
	// TrustedOrigins may send unsafe requests cross-origin, such as the SPA
	// dev server. Values are scheme://host[:port].
	TrustedOrigins []string
	Logger         *slog.Logger
}

// DefaultCSRFConfig trusts the CORS origins and, in development, the local
// server on both loopback names.
func DefaultCSRFConfig(isDev bool, corsOrigins []string) CSRFConfig {
	var cfg CSRFConfig
	if isDev {
		cfg.TrustedOrigins = []string{"http://localhost:8080", "http://127.0.0.1:8080"}
	}
	for _, o := range corsOrigins {
		if origin := normalizeOrigin(o); origin != "" {
			cfg.TrustedOrigins = append(cfg.TrustedOrigins, origin)
		}
	}
	return cfg
}

// normalizeOrigin reduces a URL to scheme://host[:port]. Wildcards and
// values without a scheme yield "".
func normalizeOrigin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// CSRF rejects cross-origin unsafe requests with a localized 403. It fails
// when a trusted origin is malformed.
func CSRF(cfg CSRFConfig) (func(http.Handler) http.Handler, error) {
	p := csrf.New()
	for _, origin := range cfg.TrustedOrigins {
		if err := p.AddTrustedOrigin(origin); err != nil {
			return nil, fmt.Errorf("trusted origin %q: %w", origin, err)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := p.Check(r); err != nil {
				logger.Warn("cross-origin request rejected",
					logging.AttrCategory, model.EventCategoryAuth,
					"reason", err.Error(),
					"method", r.Method,
					"path", r.URL.Path,
					"origin", r.Header.Get("Origin"),
					"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"))
				WriteLocalizedError(w, r, http.StatusForbidden, CodeCSRF, "error.forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}
