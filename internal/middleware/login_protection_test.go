// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLoginProtection(clock *fakeClock, maxAttempts int) *LoginProtection {
	return NewLoginProtection(LoginProtectionConfig{
		IPRateLimit:       100,
		IPBurst:           100,
		MaxFailedAttempts: maxAttempts,
		LockoutDuration:   time.Minute,
		AttemptWindow:     10 * time.Minute,
	}, WithLoginClock(clock.now))
}

func TestNewLoginProtectionDefaults(t *testing.T) {
	lp := NewLoginProtection(LoginProtectionConfig{MaxFailedAttempts: 3})
	cfg := lp.Config()
	assert.Equal(t, 3, cfg.MaxFailedAttempts)
	assert.Equal(t, 0.5, cfg.IPRateLimit)
	assert.Equal(t, 5, cfg.IPBurst)
	assert.Equal(t, 15*time.Minute, cfg.LockoutDuration)
	assert.Equal(t, 15*time.Minute, cfg.AttemptWindow)
}

func TestLoginProtectionLocksAfterMaxFailures(t *testing.T) {
	clock := newFakeClock()
	lp := newTestLoginProtection(clock, 3)
	const email = "buyer@example.com"

	for i := range 2 {
		locked, _ := lp.RecordFailedAttempt(email)
		require.False(t, locked, "attempt %d", i+1)
	}
	assert.Equal(t, 1, lp.RemainingAttempts(email))

	locked, d := lp.RecordFailedAttempt(email)
	require.True(t, locked)
	assert.Equal(t, time.Minute, d)

	clock.advance(20 * time.Second)
	locked, remaining := lp.IsAccountLocked(email)
	assert.True(t, locked)
	assert.Equal(t, 40*time.Second, remaining)

	clock.advance(41 * time.Second)
	locked, _ = lp.IsAccountLocked(email)
	assert.False(t, locked)
}

func TestLoginProtectionLockoutDoubles(t *testing.T) {
	clock := newFakeClock()
	lp := newTestLoginProtection(clock, 1)
	const email = "buyer@example.com"

	want := []time.Duration{time.Minute, 2 * time.Minute, 4 * time.Minute, 8 * time.Minute}
	for _, w := range want {
		locked, d := lp.RecordFailedAttempt(email)
		require.True(t, locked)
		assert.Equal(t, w, d)
		clock.advance(d + time.Second)
	}
}

func TestLoginProtectionLockoutCapped(t *testing.T) {
	lp := newTestLoginProtection(newFakeClock(), 1)
	assert.Equal(t, maxLockout, lp.lockoutFor(20))
	assert.Equal(t, 16*time.Minute, lp.lockoutFor(4))
}

func TestLoginProtectionWindowExpires(t *testing.T) {
	clock := newFakeClock()
	lp := newTestLoginProtection(clock, 3)
	const email = "buyer@example.com"

	lp.RecordFailedAttempt(email)
	lp.RecordFailedAttempt(email)
	assert.Equal(t, 1, lp.RemainingAttempts(email))

	clock.advance(11 * time.Minute)
	assert.Equal(t, 3, lp.RemainingAttempts(email))

	locked, _ := lp.RecordFailedAttempt(email)
	assert.False(t, locked)
	assert.Equal(t, 2, lp.RemainingAttempts(email))
}

func TestLoginProtectionSuccessClears(t *testing.T) {
	lp := newTestLoginProtection(newFakeClock(), 3)
	const email = "buyer@example.com"

	lp.RecordFailedAttempt(email)
	lp.RecordFailedAttempt(email)
	lp.RecordSuccessfulLogin(email)
	assert.Equal(t, 3, lp.RemainingAttempts(email))
}

func TestLoginProtectionEmailCaseInsensitive(t *testing.T) {
	lp := newTestLoginProtection(newFakeClock(), 2)

	lp.RecordFailedAttempt("Buyer@Example.com")
	locked, _ := lp.RecordFailedAttempt("buyer@example.com ")
	require.True(t, locked)

	locked, _ = lp.IsAccountLocked("BUYER@EXAMPLE.COM")
	assert.True(t, locked)
}

func TestLoginProtectionSweep(t *testing.T) {
	clock := newFakeClock()
	lp := newTestLoginProtection(clock, 1)

	lp.RecordFailedAttempt("locked@example.com")
	clock.advance(5 * time.Minute)
	lp.RecordFailedAttempt("recent@example.com")
	assert.Zero(t, lp.Sweep())

	// The lockout of the first account ended, but its window has not.
	clock.advance(4 * time.Minute)
	assert.Zero(t, lp.Sweep())

	clock.advance(2 * time.Minute)
	assert.Equal(t, 1, lp.Sweep())
	assert.Len(t, lp.accounts, 1)

	clock.advance(10 * time.Minute)
	assert.Equal(t, 1, lp.Sweep())
	assert.Empty(t, lp.accounts)
}

func TestLoginProtectionAllowIP(t *testing.T) {
	lp := NewLoginProtection(LoginProtectionConfig{IPRateLimit: 0.001, IPBurst: 3})

	for i := range 3 {
		assert.True(t, lp.AllowIP("198.51.100.1"), "request %d", i+1)
	}
	assert.False(t, lp.AllowIP("198.51.100.1"))
	assert.True(t, lp.AllowIP("198.51.100.2"))
}

func TestIPLimiters(t *testing.T) {
	l := &ipLimiters{limit: 1, burst: 1}
	assert.Same(t, l.get("a"), l.get("a"))
	assert.NotSame(t, l.get("a"), l.get("b"))

	assert.False(t, l.resetAbove(5))
	assert.True(t, l.resetAbove(1))
	assert.Empty(t, l.byIP)
	assert.NotNil(t, l.get("a"))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		realIP     string
		want       string
	}{
		{name: "remote addr", remoteAddr: "192.168.1.1:12345", want: "192.168.1.1"},
		{name: "remote addr without port", remoteAddr: "192.168.1.1", want: "192.168.1.1"},
		{name: "forwarded chain", remoteAddr: "127.0.0.1:8080", forwarded: " 10.0.0.1 , 10.0.0.2", want: "10.0.0.1"},
		{name: "real ip", remoteAddr: "127.0.0.1:8080", realIP: "10.0.0.5", want: "10.0.0.5"},
		{name: "forwarded wins", remoteAddr: "127.0.0.1:8080", forwarded: "10.0.0.1", realIP: "10.0.0.5", want: "10.0.0.1"},
		{name: "ipv6", remoteAddr: "[2001:db8::1]:443", want: "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, GetClientIP(req))
		})
	}
}

func TestLoginProtectionMiddleware(t *testing.T) {
	lp := NewLoginProtection(LoginProtectionConfig{IPRateLimit: 0.001, IPBurst: 1})
	wrapped := lp.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(method string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/api/auth/login", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		rr := httptest.NewRecorder()
		wrapped.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusOK, send(http.MethodPost).Code)

	rr := send(http.MethodPost)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusOK, send(http.MethodGet).Code)
}
