// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"syscall"
	"time"

	"github.com/olegiv/storefront/internal/cache"
	"github.com/olegiv/storefront/internal/middleware"
	"github.com/olegiv/storefront/internal/version"
)

// Health check states.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// minFreeDisk is the free space below which the data directory is reported degraded.
const minFreeDisk = 100 * 1024 * 1024

// HealthHandler handles health check requests.
type HealthHandler struct {
	db        *sql.DB
	cache     cache.Pinger
	dataDir   string
	version   version.Info
	startTime time.Time
}

// NewHealthHandler creates a new health handler. dataDir is the directory
// holding the database file.
func NewHealthHandler(db *sql.DB, dataDir string, info version.Info) *HealthHandler {
	return &HealthHandler{
		db:        db,
		dataDir:   dataDir,
		version:   info,
		startTime: time.Now(),
	}
}

// SetCache adds a check of the catalog cache backend. A failing cache only
// degrades the status because pages still load from the database.
func (h *HealthHandler) SetCache(p cache.Pinger) {
	h.cache = p
}

// HealthStatusPublic is the minimal health response for anonymous callers.
type HealthStatusPublic struct {
	Status string `json:"status"`
}

// HealthStatus is the detailed health response shown to admins.
type HealthStatus struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Commit    string           `json:"commit,omitempty"`
	Checks    map[string]Check `json:"checks"`
	System    *SystemInfo      `json:"system,omitempty"`
}

// Check represents a single health check result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// SystemInfo contains runtime information.
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutines"`
	NumCPU       int    `json:"num_cpus"`
	MemAlloc     string `json:"mem_alloc"`
	MemSys       string `json:"mem_sys"`
}

// Health handles GET /health. Anonymous callers and customers get the
// overall status only; admins get the individual checks.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]Check{
		"database": h.checkDatabase(r.Context()),
		"disk":     h.checkDiskSpace(),
	}
	if h.cache != nil {
		checks["cache"] = h.checkCache(r.Context())
	}

	overall := StatusHealthy
	for _, c := range checks {
		switch c.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}

	status := http.StatusOK
	if overall == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	user := middleware.GetUser(r)
	if user == nil || !user.IsAdmin() {
		writeHealthJSON(w, status, HealthStatusPublic{Status: overall})
		return
	}

	resp := HealthStatus{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version.Version,
		Commit:    h.version.GitCommit,
		Checks:    checks,
	}
	if r.URL.Query().Get("verbose") == "true" {
		resp.System = systemInfo()
	}
	writeHealthJSON(w, status, resp)
}

// Liveness handles GET /health/live.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeHealthJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Readiness handles GET /health/ready.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if c := h.checkDatabase(r.Context()); c.Status != StatusHealthy {
		writeHealthJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeHealthJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.db.PingContext(ctx)
	latency := time.Since(start)
	if err != nil {
		return Check{Status: StatusUnhealthy, Message: err.Error(), Latency: latency.String()}
	}
	return Check{Status: StatusHealthy, Message: "Connected", Latency: latency.String()}
}

func (h *HealthHandler) checkCache(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	start := time.Now()
	err := h.cache.Ping(ctx)
	latency := time.Since(start)
	if err != nil {
		return Check{Status: StatusDegraded, Message: err.Error(), Latency: latency.String()}
	}
	return Check{Status: StatusHealthy, Latency: latency.String()}
}

// checkDiskSpace reports the free space of the data directory.
func (h *HealthHandler) checkDiskSpace() Check {
	if h.dataDir == "" {
		return Check{Status: StatusHealthy, Message: "No data directory configured"}
	}
	if _, err := os.Stat(h.dataDir); os.IsNotExist(err) {
		return Check{Status: StatusUnhealthy, Message: "Data directory does not exist"}
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(h.dataDir, &stat); err != nil {
		return Check{Status: StatusDegraded, Message: "Failed to check disk space: " + err.Error()}
	}

	available := stat.Bavail * uint64(stat.Bsize)
	if available < minFreeDisk {
		return Check{Status: StatusDegraded, Message: "Low disk space: " + formatBytes(available) + " available"}
	}
	return Check{Status: StatusHealthy, Message: formatBytes(available) + " available"}
}

func systemInfo() *SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &SystemInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     formatBytes(m.Alloc),
		MemSys:       formatBytes(m.Sys),
	}
}

func writeHealthJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// formatBytes converts bytes to a human-readable string.
func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
