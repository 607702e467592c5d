// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache provides the byte-oriented cache backends (memory, Redis)
// and the typed catalog cache built on top of them.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss means the key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")
	// ErrCacheClosed is returned by every call after Close.
	ErrCacheClosed = errors.New("cache closed")
)

// Cacher stores opaque values under string keys. Implementations are safe
// for concurrent use.
type Cacher interface {
	// Get returns ErrCacheMiss when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value; a zero ttl uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) (bool, error)
	Close() error
}

// Pinger is implemented by backends that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsProvider is implemented by backends that count their traffic.
type StatsProvider interface {
	Stats() Stats
	ResetStats()
}

// Stats are the counters of one cache instance.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Sets      int64   `json:"sets"`
	Evictions int64   `json:"evictions"`
	Items     int     `json:"items"`
	HitRate   float64 `json:"hitRate"`
	Size      int64   `json:"sizeBytes,omitempty"`
}

// hitRate is the hit percentage, zero before the first lookup.
func hitRate(hits, misses int64) float64 {
	if total := hits + misses; total > 0 {
		return float64(hits) / float64(total) * 100
	}
	return 0
}
