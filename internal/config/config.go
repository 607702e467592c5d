// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the storefront configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// weakSecrets are the example secrets from the documentation.
var weakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config is the storefront configuration. Every field maps to one SHOP_*
// variable; validation errors name the variable.
type Config struct {
	DBPath        string `env:"SHOP_DB_PATH" envDefault:"./data/storefront.db" validate:"required"`
	SessionSecret string `env:"SHOP_SESSION_SECRET,required" validate:"min=32,notweak"`
	ServerHost    string `env:"SHOP_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"SHOP_SERVER_PORT" envDefault:"8080" validate:"min=1,max=65535"`
	Env           string `env:"SHOP_ENV" envDefault:"development" validate:"oneof=development staging production"`
	LogLevel      string `env:"SHOP_LOG_LEVEL" envDefault:"info"`

	// Public base URL used in the sitemap. Derived from the request when empty.
	SiteURL    string        `env:"SHOP_SITE_URL" validate:"omitempty,http_url"`
	NoIndex    bool          `env:"SHOP_NO_INDEX"`
	SitemapTTL time.Duration `env:"SHOP_SITEMAP_TTL" envDefault:"1h" validate:"gt=0"`

	// Origins allowed to call the API from the SPA dev server.
	CORSOrigins []string `env:"SHOP_CORS_ORIGINS" envSeparator:"," validate:"dive,http_url"`

	RedisURL string `env:"SHOP_REDIS_URL" validate:"omitempty,url"`
	// Cluster seed nodes. Take precedence over RedisURL.
	RedisClusterAddrs []string      `env:"SHOP_REDIS_CLUSTER_ADDRS" envSeparator:"," validate:"dive,hostname_port"`
	CachePrefix       string        `env:"SHOP_CACHE_PREFIX" envDefault:"storefront:"`
	CacheTTL          time.Duration `env:"SHOP_CACHE_TTL" envDefault:"5m" validate:"gt=0"`
	CacheMaxSize      int           `env:"SHOP_CACHE_MAX_SIZE" envDefault:"10000" validate:"min=0"`
	SettingsTTL       time.Duration `env:"SHOP_SETTINGS_TTL" envDefault:"5m" validate:"gt=0"`
	ThemeTTL          time.Duration `env:"SHOP_THEME_TTL" envDefault:"1m" validate:"gt=0"`

	// Requests per minute per IP.
	AdminRateLimit int `env:"SHOP_ADMIN_RATE_LIMIT" envDefault:"120" validate:"min=1"`
	OrderRateLimit int `env:"SHOP_ORDER_RATE_LIMIT" envDefault:"10" validate:"min=1"`

	EventRetention time.Duration `env:"SHOP_EVENT_RETENTION" envDefault:"720h" validate:"gt=0"`

	// Every URL receives the subscribed events, signed with WebhookSecret
	// when set. No events means all of them.
	WebhookURLs    []string `env:"SHOP_WEBHOOK_URLS" envSeparator:"," validate:"dive,http_url"`
	WebhookSecret  string   `env:"SHOP_WEBHOOK_SECRET"`
	WebhookEvents  []string `env:"SHOP_WEBHOOK_EVENTS" envSeparator:","`
	WebhookWorkers int      `env:"SHOP_WEBHOOK_WORKERS" envDefault:"3" validate:"min=1,max=32"`

	// GeoLite2-Country database; empty disables country lookup.
	GeoIPDBPath string `env:"SHOP_GEOIP_DB_PATH"`

	DoSeed   bool `env:"SHOP_DO_SEED" envDefault:"true"`
	SeedDemo bool `env:"SHOP_SEED_DEMO"`
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns host:port.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom reads the configuration from vars instead of the environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.SiteURL = strings.TrimSuffix(cfg.SiteURL, "/")
	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("SHOP_SESSION_SECRET has low character diversity; " +
			"generate a random one with: openssl rand -base64 32")
	}
	return &cfg, nil
}

// Validate checks every field and reports all problems at once.
func (c Config) Validate() error {
	err := configValidator().Struct(c)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, fieldError(fe))
	}
	return errors.Join(errs...)
}

// fieldError describes fe without echoing the value, which may be a secret.
func fieldError(fe validator.FieldError) error {
	name := fe.Field()
	switch fe.Tag() {
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Errorf("%s must be at least %s bytes long; generate one with: openssl rand -base64 32", name, fe.Param())
		}
		return fmt.Errorf("%s must be at least %s", name, fe.Param())
	case "max":
		return fmt.Errorf("%s must be at most %s", name, fe.Param())
	case "gt":
		return fmt.Errorf("%s must be positive", name)
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", name, fe.Param())
	case "http_url":
		return fmt.Errorf("%s must hold absolute http(s) URLs, got %q", name, fe.Value())
	case "url":
		return fmt.Errorf("%s must be a URL", name)
	case "hostname_port":
		return fmt.Errorf("%s must hold host:port addresses, got %q", name, fe.Value())
	case "notweak":
		return fmt.Errorf("%s is a documented example value and must not be used", name)
	default:
		return fmt.Errorf("%s is invalid (%s)", name, fe.Tag())
	}
}

// configValidator names fields by their environment variable.
var configValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("env"), ",")
		return name
	})
	_ = v.RegisterValidation("notweak", func(fl validator.FieldLevel) bool {
		return !slices.Contains(weakSecrets, fl.Field().String())
	})
	return v
})

// hasMinimumEntropy reports whether s mixes at least three character
// classes out of lower, upper, digits and punctuation.
func hasMinimumEntropy(s string) bool {
	classes := []string{
		"abcdefghijklmnopqrstuvwxyz",
		"ABCDEFGHIJKLMNOPQRSTUVWXYZ",
		"0123456789",
		"!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\",
	}
	n := 0
	for _, class := range classes {
		if strings.ContainsAny(s, class) {
			n++
		}
	}
	return n >= 3
}
