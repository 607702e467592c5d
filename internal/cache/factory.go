// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// Backend names.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// CacheConfig selects and configures a backend. Redis is used when RedisURL
// or RedisClusterAddrs is set.
type CacheConfig struct {
	RedisURL          string
	RedisClusterAddrs []string
	Prefix            string
	FallbackToMemory  bool
	DefaultTTL        time.Duration
	MaxSize           int
	CleanupInterval   time.Duration
}

// UsesRedis reports whether cfg asks for a Redis backend.
func (cfg CacheConfig) UsesRedis() bool {
	return cfg.RedisURL != "" || len(cfg.RedisClusterAddrs) > 0
}

// RedisTarget describes the Redis endpoint for logs, without credentials.
func (cfg CacheConfig) RedisTarget() string {
	if len(cfg.RedisClusterAddrs) > 0 {
		return "cluster " + strings.Join(cfg.RedisClusterAddrs, ",")
	}
	return SanitizeRedisURL(cfg.RedisURL)
}

// CacheResult describes the backend that was actually created.
type CacheResult struct {
	Cache       Cacher
	BackendType string
	IsFallback  bool
}

// NewCacheWithInfo creates the configured backend. When Redis is requested
// but unreachable and FallbackToMemory is set, a memory cache is returned.
func NewCacheWithInfo(ctx context.Context, cfg CacheConfig, logger *slog.Logger) (CacheResult, error) {
	if !cfg.UsesRedis() {
		return CacheResult{Cache: newMemoryFromConfig(cfg), BackendType: CacheBackendMemory}, nil
	}

	opts := DefaultRedisOptions()
	opts.URL = cfg.RedisURL
	opts.ClusterAddrs = cfg.RedisClusterAddrs
	if cfg.Prefix != "" {
		opts.Prefix = cfg.Prefix
	}
	if cfg.DefaultTTL > 0 {
		opts.DefaultTTL = cfg.DefaultTTL
	}

	rc, err := NewRedisCache(ctx, opts)
	if err == nil {
		return CacheResult{Cache: rc, BackendType: CacheBackendRedis}, nil
	}
	if !cfg.FallbackToMemory {
		return CacheResult{}, fmt.Errorf("connecting to redis %s: %w", cfg.RedisTarget(), err)
	}
	logger.Warn("redis unavailable, falling back to memory cache",
		"target", cfg.RedisTarget(), "error", err)
	return CacheResult{Cache: newMemoryFromConfig(cfg), BackendType: CacheBackendMemory, IsFallback: true}, nil
}

func newMemoryFromConfig(cfg CacheConfig) *MemoryCache {
	return NewMemoryCache(MemoryCacheOptions{
		DefaultTTL:      cfg.DefaultTTL,
		MaxSize:         cfg.MaxSize,
		CleanupInterval: cfg.CleanupInterval,
	})
}

// SanitizeRedisURL masks the password of a Redis URL for logging.
func SanitizeRedisURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[invalid URL]"
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), "***")
	return u.String()
}
