// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides the HTTP middleware of the storefront:
// language detection, authentication guards, CSRF, security headers,
// login throttling and the error boundary.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/olegiv/storefront/internal/i18n"
)

// ContextKey types the context keys of this package.
type ContextKey string

// API error codes.
const (
	CodeBadRequest   = "bad_request"
	CodeValidation   = "validation_error"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeRateLimited  = "rate_limit_exceeded"
	CodeInternal     = "internal_error"
	CodeCSRF         = "csrf_failed"
)

// ErrorBody is the "error" member of an API error response.
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// APIError is the JSON envelope of every API error response.
type APIError struct {
	Error ErrorBody `json:"error"`
}

// WriteAPIError writes a JSON error response. Details carries per-field
// messages for validation errors.
func WriteAPIError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIError{Error: ErrorBody{Code: code, Message: message, Details: details}})
}

// WriteLocalizedError writes a JSON error whose message is the catalog
// entry key in the request language.
func WriteLocalizedError(w http.ResponseWriter, r *http.Request, statusCode int, code, key string, args ...any) {
	WriteAPIError(w, statusCode, code, i18n.T(GetLanguageCode(r), key, args...), nil)
}

// IsAPIRequest reports whether r expects a JSON response.
func IsAPIRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

// RateLimitExceeded is the httprate limit handler: a localized JSON 429.
func RateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	WriteLocalizedError(w, r, http.StatusTooManyRequests, CodeRateLimited, "error.rate_limited")
}
