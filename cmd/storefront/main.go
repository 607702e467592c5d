// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olegiv/storefront/internal/auth"
	"github.com/olegiv/storefront/internal/cache"
	"github.com/olegiv/storefront/internal/config"
	"github.com/olegiv/storefront/internal/geoip"
	"github.com/olegiv/storefront/internal/handler"
	"github.com/olegiv/storefront/internal/handler/api"
	"github.com/olegiv/storefront/internal/i18n"
	"github.com/olegiv/storefront/internal/langroute"
	"github.com/olegiv/storefront/internal/logging"
	"github.com/olegiv/storefront/internal/metrics"
	"github.com/olegiv/storefront/internal/middleware"
	"github.com/olegiv/storefront/internal/scheduler"
	"github.com/olegiv/storefront/internal/seo"
	"github.com/olegiv/storefront/internal/session"
	"github.com/olegiv/storefront/internal/settings"
	"github.com/olegiv/storefront/internal/store"
	"github.com/olegiv/storefront/internal/theme"
	"github.com/olegiv/storefront/internal/version"
	"github.com/olegiv/storefront/internal/webhook"
	"github.com/olegiv/storefront/web"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = version.DevVersion
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func buildInfo() version.Info {
	return version.Info{Version: appVersion, GitCommit: appGitCommit, BuildTime: appBuildTime}
}

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "storefront - multilingual food delivery store\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SHOP_SESSION_SECRET    Session encryption key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SHOP_DB_PATH           SQLite database path (default: ./data/storefront.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SHOP_SERVER_PORT       Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SHOP_ENV               Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SHOP_REDIS_URL         Redis URL for the catalog cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SHOP_CORS_ORIGINS      Comma separated SPA dev origins (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SHOP_SEED_DEMO         Seed the demo menu (default: false)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SHOP_SITE_URL          Public base URL for the sitemap (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SHOP_WEBHOOK_URLS      Comma separated order/product webhook endpoints (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SHOP_GEOIP_DB_PATH     GeoLite2-Country database for order tagging (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Println(buildInfo().String())
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	versionInfo := buildInfo()

	logLevel := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := i18n.Init(logger); err != nil {
		return fmt.Errorf("initializing i18n: %w", err)
	}
	slog.Info("i18n system initialized", "languages", i18n.Languages())

	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	applied, err := store.ApplyMigrations(context.Background(), db)
	if err != nil {
		return err
	}
	for _, m := range applied {
		slog.Info("migration applied", "version", m.Version, "duration", m.Duration)
	}

	// WARN and ERROR records are mirrored into the event log from here on.
	logger = slog.New(logging.NewEventLogHandler(
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}), db))
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	ctx := context.Background()
	if cfg.DoSeed {
		if err := store.Seed(ctx, db); err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
	}
	if cfg.SeedDemo {
		if err := store.SeedDemo(ctx, db); err != nil {
			return fmt.Errorf("seeding demo menu: %w", err)
		}
	}
	queries := store.New(db)

	sessionManager := session.New(db, cfg.IsDevelopment())
	returnTo := auth.NewReturnTo(sessionManager)

	cacheCfg := cache.CacheConfig{
		RedisURL:          cfg.RedisURL,
		RedisClusterAddrs: cfg.RedisClusterAddrs,
		Prefix:            cfg.CachePrefix,
		DefaultTTL:        cfg.CacheTTL,
		MaxSize:           cfg.CacheMaxSize,
		CleanupInterval:   time.Minute,
		FallbackToMemory:  true,
	}
	cacheResult, err := cache.NewCacheWithInfo(context.Background(), cacheCfg, logger)
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer func() { _ = cacheResult.Cache.Close() }()
	catalogCache := cache.NewCatalogCache(cacheResult.Cache, cfg.CacheTTL)
	switch {
	case cacheResult.BackendType == cache.CacheBackendRedis:
		logger.Info("catalog cache initialized", "backend", "redis", "target", cacheCfg.RedisTarget())
	case cacheResult.IsFallback:
		logger.Warn("catalog cache initialized", "backend", "memory", "note", "Redis unavailable, using fallback")
	default:
		logger.Info("catalog cache initialized", "backend", "memory")
	}

	// Store settings, head metadata and the active theme.
	head := theme.NewHead()
	settingsCache := settings.New(settings.NewStoreFetcher(queries),
		settings.WithTTL(cfg.SettingsTTL), settings.WithLogger(logger))
	settingsCache.OnChange(head.ApplySettings)
	activeTheme := theme.NewActiveTheme(theme.LoaderFunc(queries.GetActiveTheme), theme.NewApplier(),
		theme.WithActiveTTL(cfg.ThemeTTL), theme.WithActiveLogger(logger))

	initial := settingsCache.Get(ctx)
	activeTheme.Get(ctx)

	// Outgoing webhooks. Product events are debounced so bursts of admin
	// edits reach the endpoints once.
	dispatcher := webhook.NewDispatcher(db, logger, webhook.Config{
		Workers:   cfg.WebhookWorkers,
		Endpoints: webhookEndpoints(cfg),
	})
	var orderHooks, productHooks api.EventPublisher
	if dispatcher.Enabled() {
		dispatcher.Start(ctx)
		defer dispatcher.Stop()
		debouncer := webhook.NewDebouncer(dispatcher, webhook.DefaultDebounceConfig())
		defer debouncer.Stop()
		orderHooks, productHooks = dispatcher, debouncer
	}

	geo, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		slog.Warn("geoip database unavailable, orders are not tagged by country",
			"path", cfg.GeoIPDBPath, "error", err)
	}
	defer func() { _ = geo.Close() }()

	sched := scheduler.New(db, settingsCache, activeTheme, cfg.EventRetention, logger)
	if dispatcher.Enabled() {
		sched.SetWebhooks(dispatcher)
	}
	if cfg.GeoIPDBPath != "" {
		sched.SetGeoIP(geo)
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	pagesHandler, err := handler.NewPagesHandler(handler.PagesConfig{
		Templates: web.Templates(),
		Settings:  settingsCache,
		Theme:     activeTheme,
		Head:      head,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("initializing pages handler: %w", err)
	}
	healthHandler := handler.NewHealthHandler(db, dataDir, versionInfo)
	if p, ok := cacheResult.Cache.(cache.Pinger); ok {
		healthHandler.SetCache(p)
	}
	seoHandler := handler.NewSEOHandler(handler.SEOConfig{
		Queries:  queries,
		Settings: settingsCache,
		SiteURL:  cfg.SiteURL,
		NoIndex:  cfg.NoIndex,
		TTL:      cfg.SitemapTTL,
		Logger:   logger,
	})

	loadUser := middleware.LoadUser(sessionManager, db)
	pageRouter := langroute.NewRouter(pagesHandler.Routes(), langroute.Guards{
		langroute.Protected: middleware.RequireUserPage(returnTo),
		langroute.AdminOnly: middleware.RequireAdminPage(returnTo),
	}, initial.Primary(), initial.Enabled(),
		langroute.WithMiddleware(middleware.PageLanguage, loadUser),
		langroute.WithSwitch(middleware.LanguageSwitch),
		langroute.WithLogger(logger),
	)
	settingsCache.OnChange(pageRouter.OnSettingsChange)
	settingsCache.OnChange(seoHandler.OnSettingsChange)

	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig(),
		middleware.WithLoginLogger(logger))
	if err := sched.Registry().Add("login-sweep", "Forget expired login lockouts",
		"*/10 * * * *", func() { loginProtection.Sweep() }); err != nil {
		return fmt.Errorf("registering login sweep: %w", err)
	}
	lpCfg := loginProtection.Config()
	logger.Info("login protection initialized",
		"ip_rate_limit", lpCfg.IPRateLimit,
		"max_failed_attempts", lpCfg.MaxFailedAttempts,
		"lockout_duration", lpCfg.LockoutDuration.String(),
	)

	csrfCfg := middleware.DefaultCSRFConfig(cfg.IsDevelopment(), cfg.CORSOrigins)
	csrfCfg.Logger = logger
	csrfMiddleware, err := middleware.CSRF(csrfCfg)
	if err != nil {
		return fmt.Errorf("configuring CSRF protection: %w", err)
	}

	apiHandler := api.NewHandler(api.Config{
		DB:              db,
		Sessions:        sessionManager,
		Settings:        settingsCache,
		Theme:           activeTheme,
		Catalog:         catalogCache,
		LoginProtection: loginProtection,
		ReturnTo:        returnTo,
		Jobs:            sched.Registry(),
		Webhooks:        orderHooks,
		ProductWebhooks: productHooks,
		GeoIP:           geo,
		OnCatalogChange: seoHandler.Invalidate,
		Logger:          logger,
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover(logger))
	r.Use(metrics.Middleware)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "Accept-Language"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		slog.Info("CORS enabled", "origins", cfg.CORSOrigins)
	}
	r.Use(sessionManager.LoadAndSave)

	r.With(loadUser).Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())
	r.Get(handler.ThemeCSSPath, pagesHandler.ThemeCSS)
	r.Get(seo.RobotsPath, seoHandler.Robots)
	r.Get(seo.SitemapPath, seoHandler.Sitemap)

	r.Mount("/api", apiHandler.Routes(api.RouteOptions{
		CSRF:           csrfMiddleware,
		AdminRateLimit: cfg.AdminRateLimit,
		OrderRateLimit: cfg.OrderRateLimit,
	}))

	r.Handle(web.StaticPrefix+"*", middleware.StaticCache(middleware.ImmutableMaxAge)(
		http.StripPrefix(web.StaticPrefix, http.FileServer(http.FS(web.Static())))))

	// Everything else is a language-prefixed page.
	r.Mount("/", pageRouter)

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", versionInfo.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func webhookEndpoints(cfg *config.Config) []webhook.Endpoint {
	endpoints := make([]webhook.Endpoint, 0, len(cfg.WebhookURLs))
	for _, u := range cfg.WebhookURLs {
		endpoints = append(endpoints, webhook.Endpoint{
			URL:    u,
			Secret: cfg.WebhookSecret,
			Events: cfg.WebhookEvents,
		})
	}
	return endpoints
}
