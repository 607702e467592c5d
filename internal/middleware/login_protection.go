// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/olegiv/storefront/internal/logging"
	"github.com/olegiv/storefront/internal/model"
)

// maxLockout caps the doubling lockout.
const maxLockout = 24 * time.Hour

// maxTrackedIPs is the limiter count above which Sweep starts over.
const maxTrackedIPs = 10000

// LoginProtectionConfig holds limits for the login endpoint.
type LoginProtectionConfig struct {
	// IPRateLimit is login POSTs per second per client IP.
	IPRateLimit float64
	// IPBurst is the per-IP burst.
	IPBurst int
	// MaxFailedAttempts within AttemptWindow locks the account.
	MaxFailedAttempts int
	// LockoutDuration is the first lockout; each later one doubles it.
	LockoutDuration time.Duration
	AttemptWindow   time.Duration
}

// DefaultLoginProtectionConfig returns the production limits.
func DefaultLoginProtectionConfig() LoginProtectionConfig {
	return LoginProtectionConfig{
		IPRateLimit:       0.5,
		IPBurst:           5,
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		AttemptWindow:     15 * time.Minute,
	}
}

// withDefaults fills unset fields from DefaultLoginProtectionConfig.
func (c LoginProtectionConfig) withDefaults() LoginProtectionConfig {
	d := DefaultLoginProtectionConfig()
	if c.IPRateLimit <= 0 {
		c.IPRateLimit = d.IPRateLimit
	}
	if c.IPBurst <= 0 {
		c.IPBurst = d.IPBurst
	}
	if c.MaxFailedAttempts <= 0 {
		c.MaxFailedAttempts = d.MaxFailedAttempts
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = d.LockoutDuration
	}
	if c.AttemptWindow <= 0 {
		c.AttemptWindow = d.AttemptWindow
	}
	return c
}

// ipLimiters holds one token bucket per client IP.
type ipLimiters struct {
	limit rate.Limit
	burst int

	mu   sync.Mutex
	byIP map[string]*rate.Limiter
}

func (l *ipLimiters) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.byIP[ip]; ok {
		return lim
	}
	if l.byIP == nil {
		l.byIP = make(map[string]*rate.Limiter)
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.byIP[ip] = lim
	return lim
}

// resetAbove forgets every limiter once more than n IPs are tracked.
func (l *ipLimiters) resetAbove(n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.byIP) <= n {
		return false
	}
	l.byIP = nil
	return true
}

// accountState is the failure history of one login email.
type accountState struct {
	failures    int
	windowStart time.Time
	lockedUntil time.Time
	lockouts    int
}

// LoginProtection rate limits login requests per IP and locks accounts
// after repeated wrong passwords. State is in memory; stale entries are
// removed by Sweep.
type LoginProtection struct {
	cfg      LoginProtectionConfig
	limiters *ipLimiters
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.Mutex
	accounts map[string]*accountState
}

// LoginProtectionOption customizes a LoginProtection.
type LoginProtectionOption func(*LoginProtection)

// WithLoginClock replaces the clock used for lockouts.
func WithLoginClock(now func() time.Time) LoginProtectionOption {
	return func(lp *LoginProtection) { lp.now = now }
}

// WithLoginLogger sets the logger. The default is slog.Default().
func WithLoginLogger(logger *slog.Logger) LoginProtectionOption {
	return func(lp *LoginProtection) { lp.logger = logger }
}

// NewLoginProtection creates login protection with cfg. Zero fields take
// their default values.
func NewLoginProtection(cfg LoginProtectionConfig, opts ...LoginProtectionOption) *LoginProtection {
	cfg = cfg.withDefaults()
	lp := &LoginProtection{
		cfg:      cfg,
		limiters: &ipLimiters{limit: rate.Limit(cfg.IPRateLimit), burst: cfg.IPBurst},
		now:      time.Now,
		logger:   slog.Default(),
		accounts: make(map[string]*accountState),
	}
	for _, opt := range opts {
		opt(lp)
	}
	return lp
}

// Config returns the effective limits.
func (lp *LoginProtection) Config() LoginProtectionConfig {
	return lp.cfg
}

// AllowIP reports whether another login request from ip is within its rate.
func (lp *LoginProtection) AllowIP(ip string) bool {
	return lp.limiters.get(ip).Allow()
}

// IsAccountLocked reports whether email is locked and for how much longer.
func (lp *LoginProtection) IsAccountLocked(email string) (bool, time.Duration) {
	key := lockoutKey(email)
	now := lp.now()

	lp.mu.Lock()
	defer lp.mu.Unlock()
	st, ok := lp.accounts[key]
	if !ok || !now.Before(st.lockedUntil) {
		return false, 0
	}
	return true, st.lockedUntil.Sub(now)
}

// RecordFailedAttempt counts a wrong password for email. When the count
// reaches the limit the account is locked and the lockout is returned.
func (lp *LoginProtection) RecordFailedAttempt(email string) (bool, time.Duration) {
	key := lockoutKey(email)
	now := lp.now()

	lp.mu.Lock()
	defer lp.mu.Unlock()

	st, ok := lp.accounts[key]
	if !ok {
		st = &accountState{}
		lp.accounts[key] = st
	}
	if st.failures == 0 || now.Sub(st.windowStart) > lp.cfg.AttemptWindow {
		st.failures = 0
		st.windowStart = now
	}
	st.failures++

	if st.failures < lp.cfg.MaxFailedAttempts {
		lp.logger.Debug("failed login counted", "email", key, "failures", st.failures)
		return false, 0
	}

	lockout := lp.lockoutFor(st.lockouts)
	st.lockedUntil = now.Add(lockout)
	st.lockouts++
	st.failures = 0

	lp.logger.Warn("account locked after failed logins",
		logging.AttrCategory, model.EventCategoryAuth,
		"email", key,
		"lockouts", st.lockouts,
		"duration", lockout.String())
	return true, lockout
}

// lockoutFor doubles the base lockout for every previous lockout.
func (lp *LoginProtection) lockoutFor(previous int) time.Duration {
	d := lp.cfg.LockoutDuration
	for range previous {
		d *= 2
		if d >= maxLockout {
			return maxLockout
		}
	}
	return min(d, maxLockout)
}

// RecordSuccessfulLogin forgets the failure history of email.
func (lp *LoginProtection) RecordSuccessfulLogin(email string) {
	key := lockoutKey(email)
	lp.mu.Lock()
	delete(lp.accounts, key)
	lp.mu.Unlock()
}

// RemainingAttempts returns how many more wrong passwords email may send
// before it is locked.
func (lp *LoginProtection) RemainingAttempts(email string) int {
	key := lockoutKey(email)
	now := lp.now()

	lp.mu.Lock()
	defer lp.mu.Unlock()
	st, ok := lp.accounts[key]
	if !ok || now.Sub(st.windowStart) > lp.cfg.AttemptWindow {
		return lp.cfg.MaxFailedAttempts
	}
	return max(lp.cfg.MaxFailedAttempts-st.failures, 0)
}

// Sweep drops expired account state and resets the IP limiters when they
// grow past maxTrackedIPs. It returns the number of accounts dropped.
func (lp *LoginProtection) Sweep() int {
	if lp.limiters.resetAbove(maxTrackedIPs) {
		lp.logger.Info("login IP limiters reset", "limit", maxTrackedIPs)
	}

	now := lp.now()
	lp.mu.Lock()
	defer lp.mu.Unlock()
	dropped := 0
	for key, st := range lp.accounts {
		if now.Before(st.lockedUntil) || now.Sub(st.windowStart) <= lp.cfg.AttemptWindow {
			continue
		}
		delete(lp.accounts, key)
		dropped++
	}
	return dropped
}

// Middleware limits POST requests per client IP. Other methods pass.
func (lp *LoginProtection) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				if ip := GetClientIP(r); !lp.AllowIP(ip) {
					lp.logger.Warn("login rate limit exceeded",
						logging.AttrCategory, model.EventCategoryAuth, "ip", ip)
					WriteLocalizedError(w, r, http.StatusTooManyRequests, CodeRateLimited, "error.rate_limited")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClientIP returns the first X-Forwarded-For address, then X-Real-IP,
// then the host of RemoteAddr.
func GetClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func lockoutKey(email string) string {
	return model.NormalizeEmail(email)
}
