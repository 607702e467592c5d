// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/storefront/internal/middleware"
	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/store"
	"github.com/olegiv/storefront/internal/version"
)

func newHealthHandler(t *testing.T) *HealthHandler {
	t.Helper()
	dir := t.TempDir()
	db, err := store.NewDB(filepath.Join(dir, "health.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewHealthHandler(db, dir, version.Info{Version: "v1.2.3", GitCommit: "abc1234"})
}

func TestHealthPublic(t *testing.T) {
	h := newHealthHandler(t)
	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Len(t, got, 1, "anonymous callers only see the status")
	assert.Contains(t, []any{StatusHealthy, StatusDegraded}, got["status"])
}

func TestHealthAdminDetails(t *testing.T) {
	h := newHealthHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/health?verbose=true", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), model.User{ID: 1, Role: model.RoleAdmin}))
	rr := httptest.NewRecorder()
	h.Health(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got HealthStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "v1.2.3", got.Version)
	assert.Equal(t, StatusHealthy, got.Checks["database"].Status)
	assert.Contains(t, got.Checks, "disk")
	require.NotNil(t, got.System)
	assert.NotEmpty(t, got.System.GoVersion)
}

func TestHealthDatabaseDown(t *testing.T) {
	h := newHealthHandler(t)
	require.NoError(t, h.db.Close())

	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	h.Readiness(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "not_ready")
}

func TestLivenessAndReadiness(t *testing.T) {
	h := newHealthHandler(t)

	rr := httptest.NewRecorder()
	h.Liveness(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "alive")

	rr = httptest.NewRecorder()
	h.Readiness(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ready"`)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatBytes(tt.in))
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealthCacheCheck(t *testing.T) {
	h := newHealthHandler(t)
	admin := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		return req.WithContext(middleware.WithUser(req.Context(), model.User{ID: 1, Role: model.RoleAdmin}))
	}

	h.SetCache(fakePinger{})
	rr := httptest.NewRecorder()
	h.Health(rr, admin())
	var got HealthStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, StatusHealthy, got.Checks["cache"].Status)

	h.SetCache(fakePinger{err: errors.New("dial tcp: connection refused")})
	rr = httptest.NewRecorder()
	h.Health(rr, admin())
	assert.Equal(t, http.StatusOK, rr.Code, "a cache outage does not take the store down")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, StatusDegraded, got.Status)
	assert.Equal(t, "dial tcp: connection refused", got.Checks["cache"].Message)
}
