// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// ImmutableMaxAge is used for fingerprinted build assets.
const ImmutableMaxAge = 365 * 24 * time.Hour

// StaticCache sets Cache-Control on successful static responses. A max-age
// of ImmutableMaxAge or more marks them immutable. Error responses get
// no-store so a missing asset is not cached for its max-age.
func StaticCache(maxAge time.Duration) func(http.Handler) http.Handler {
	value := "public, max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10)
	if maxAge >= ImmutableMaxAge {
		value += ", immutable"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(&cacheControlWriter{ResponseWriter: w, value: value}, r)
		})
	}
}

// cacheControlWriter decides Cache-Control when the status is known.
type cacheControlWriter struct {
	http.ResponseWriter
	value       string
	wroteHeader bool
}

func (w *cacheControlWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		if code < http.StatusBadRequest {
			w.Header().Set("Cache-Control", w.value)
		} else {
			w.Header().Set("Cache-Control", "no-store")
		}
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *cacheControlWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *cacheControlWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// NoCache makes clients revalidate every response. The SPA shell and
// theme CSS change with settings.
func NoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}
