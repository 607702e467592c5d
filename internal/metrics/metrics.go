// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics defines the Prometheus instruments of the storefront.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Settings cache
	SettingsCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_settings_cache_requests_total",
			Help: "Settings cache reads by result",
		},
		[]string{"result"}, // "fresh", "stale", "miss", "fallback"
	)

	SettingsFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_settings_fetches_total",
			Help: "Settings fetches by outcome",
		},
		[]string{"outcome"}, // "ok", "error", "discarded"
	)

	SettingsFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storefront_settings_fetch_duration_seconds",
			Help:    "Duration of settings fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Theme
	ThemeRootMutations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_theme_root_mutations_total",
			Help: "Number of theme custom properties changed on the document root",
		},
	)

	// Catalog cache
	CatalogCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_catalog_cache_requests_total",
			Help: "Catalog response cache reads by result",
		},
		[]string{"result"}, // "hit", "miss"
	)

	// Orders
	OrdersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Orders created by delivery type and language",
		},
		[]string{"delivery_type", "language"},
	)

	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route"},
	)
)

// RecordSettingsRead records a settings cache read result.
func RecordSettingsRead(result string) {
	SettingsCacheRequests.WithLabelValues(result).Inc()
}

// RecordSettingsFetch records a settings fetch outcome and its duration.
func RecordSettingsFetch(outcome string, duration time.Duration) {
	SettingsFetches.WithLabelValues(outcome).Inc()
	SettingsFetchDuration.Observe(duration.Seconds())
}

// RecordThemeMutations adds n root mutations.
func RecordThemeMutations(n int) {
	if n > 0 {
		ThemeRootMutations.Add(float64(n))
	}
}

// RecordCatalogCache records a catalog cache hit or miss.
func RecordCatalogCache(hit bool) {
	if hit {
		CatalogCacheRequests.WithLabelValues("hit").Inc()
		return
	}
	CatalogCacheRequests.WithLabelValues("miss").Inc()
}

// RecordOrderCreated counts a new order.
func RecordOrderCreated(deliveryType, language string) {
	OrdersCreated.WithLabelValues(deliveryType, language).Inc()
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware records request count and latency labelled by the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordHTTPRequest(r.Method, route, status, time.Since(start))
	})
}
