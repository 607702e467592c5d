// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/olegiv/storefront/internal/middleware"
)

// RouteOptions configures the API router.
type RouteOptions struct {
	// CSRF protects unsafe methods. Nil disables it.
	CSRF func(http.Handler) http.Handler
	// Requests per minute per client IP. Zero disables the limit.
	AdminRateLimit int
	OrderRateLimit int
}

// Routes returns the API router, to be mounted at /api. The session must
// already be loaded by the caller.
func (h *Handler) Routes(opts RouteOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.NoCache)
	r.Use(middleware.APILanguage(h.settings))
	r.Use(middleware.LoadUser(h.sm, h.db))
	if opts.CSRF != nil {
		r.Use(opts.CSRF)
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) { writeNotFound(w, r) })
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, middleware.CodeBadRequest, "error.bad_request")
	})

	r.Get("/settings", h.GetSettings)
	r.Get("/themes/active", h.GetActiveTheme)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/user", h.CurrentUser)
		login := http.Handler(http.HandlerFunc(h.Login))
		if h.loginProtection != nil {
			login = h.loginProtection.Middleware()(login)
		}
		r.Method(http.MethodPost, "/login", login)
		r.Post("/logout", h.Logout)
		r.Post("/register", h.Register)
		r.With(middleware.RequireUser).Put("/user", h.UpdateProfile)
	})

	r.Get("/categories", h.ListCategories)
	r.Get("/categories/{id}", h.GetCategory)
	r.Get("/products", h.ListProducts)
	r.Get("/products/{id}", h.GetProduct)

	r.Route("/orders", func(r chi.Router) {
		r.With(rateLimit(opts.OrderRateLimit)).Post("/", h.CreateOrder)
		r.With(middleware.RequireUser).Get("/mine", h.MyOrders)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Use(rateLimit(opts.AdminRateLimit))

		r.Put("/settings", h.UpdateSettings)
		r.Put("/settings/text", h.UpdateSettingsText)
		r.Post("/settings/text/copy", h.CopySettingsText)

		r.Route("/themes", func(r chi.Router) {
			r.Get("/", h.ListThemes)
			r.Post("/", h.CreateTheme)
			r.Get("/{id}", h.GetTheme)
			r.Put("/{id}", h.UpdateTheme)
			r.Delete("/{id}", h.DeleteTheme)
			r.Post("/{id}/activate", h.ActivateTheme)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.AdminListCategories)
			r.Post("/", h.CreateCategory)
			r.Get("/{id}", h.AdminGetCategory)
			r.Put("/{id}", h.UpdateCategory)
			r.Delete("/{id}", h.DeleteCategory)
			r.Put("/{id}/text", h.UpdateCategoryText)
			r.Post("/{id}/copy-from-default", h.CopyCategoryText)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.AdminListProducts)
			r.Post("/", h.CreateProduct)
			r.Get("/{id}", h.AdminGetProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
			r.Put("/{id}/text", h.UpdateProductText)
			r.Post("/{id}/copy-from-default", h.CopyProductText)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.AdminListOrders)
			r.Get("/{id}", h.AdminGetOrder)
			r.Put("/{id}/status", h.UpdateOrderStatus)
			r.Delete("/{id}", h.DeleteOrder)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
			r.Put("/{id}", h.UpdateUser)
			r.Delete("/{id}", h.DeleteUser)
		})

		r.Get("/events", h.ListEvents)
		r.Get("/webhooks/deliveries", h.ListWebhookDeliveries)

		r.Route("/transfer", func(r chi.Router) {
			r.Get("/export", h.ExportStore)
			r.Post("/validate", h.ValidateImport)
			r.Post("/import", h.ImportStore)
		})

		r.Get("/cache", h.CacheStats)
		r.Post("/cache/clear", h.ClearCache)

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", h.ListJobs)
			r.Put("/{name}", h.UpdateJobSchedule)
			r.Delete("/{name}", h.ResetJobSchedule)
			r.Post("/{name}/run", h.TriggerJob)
		})
	})

	return r
}

// rateLimit limits requests per minute by client IP, answering with the
// localized 429 envelope.
func rateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(middleware.RateLimitExceeded),
	)
}
