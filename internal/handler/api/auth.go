// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/olegiv/storefront/internal/auth"
	"github.com/olegiv/storefront/internal/logging"
	"github.com/olegiv/storefront/internal/middleware"
	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/session"
	"github.com/olegiv/storefront/internal/store"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
	ReturnTo string `json:"returnTo" validate:"max=2048"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
	Name     string `json:"name" validate:"required,max=100"`
	Phone    string `json:"phone" validate:"max=32"`
}

// ProfileRequest is the body of PUT /api/auth/user.
type ProfileRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Phone string `json:"phone" validate:"max=32"`
}

// AuthResponse is returned by login and register. ReturnTo is always a
// safe internal path.
type AuthResponse struct {
	User     model.User `json:"user"`
	ReturnTo string     `json:"returnTo"`
}

// CurrentUser handles GET /api/auth/user. Anonymous callers get a 401
// envelope, which the SPA treats as signed out.
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		writeError(w, r, http.StatusUnauthorized, middleware.CodeUnauthorized, "error.unauthorized")
		return
	}
	WriteSuccess(w, user, nil)
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email := model.NormalizeEmail(req.Email)
	clientIP := middleware.GetClientIP(r)

	if h.loginProtection != nil {
		if locked, remaining := h.loginProtection.IsAccountLocked(email); locked {
			h.logger.Warn("login attempt on locked account",
				logging.AttrCategory, model.EventCategoryAuth,
				"email", email, "ip", clientIP)
			writeError(w, r, http.StatusTooManyRequests, middleware.CodeRateLimited,
				"error.login_locked", formatDuration(remaining))
			return
		}
	}

	user, err := h.queries.GetUserByEmail(r.Context(), email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			h.writeInternalError(w, r, "database error during login", err)
			return
		}
		// Same cost as a real check so unknown emails cannot be told apart.
		auth.CheckDummy(req.Password)
		h.loginFailed(w, r, email, clientIP, 0)
		return
	}

	valid, err := auth.CheckPassword(req.Password, user.PasswordHash)
	if err != nil {
		h.logger.Error("password check error", "error", err, logging.AttrUserID, user.ID)
	}
	if !valid {
		h.loginFailed(w, r, email, clientIP, user.ID)
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccessfulLogin(email)
	}

	now := h.now().UTC()
	if auth.NeedsRehash(user.PasswordHash) {
		if newHash, err := auth.HashPassword(req.Password); err == nil {
			if err := h.queries.UpdateUserPassword(r.Context(), user.ID, newHash, now); err != nil {
				h.logger.Error("failed to re-hash password", "error", err, logging.AttrUserID, user.ID)
			}
		}
	}
	if err := h.queries.UpdateUserLastLogin(r.Context(), user.ID, now); err != nil {
		h.logger.Error("failed to update last login time", "error", err, logging.AttrUserID, user.ID)
	}

	if !h.startSession(w, r, user) {
		return
	}

	target := h.returnTo.Pop(r.Context())
	if req.ReturnTo != "" && auth.SafeReturnTo(req.ReturnTo) {
		target = req.ReturnTo
	}

	h.logger.Info("user logged in",
		logging.AttrCategory, model.EventCategoryAuth,
		logging.AttrUserID, user.ID,
		"ip", clientIP)
	WriteSuccess(w, AuthResponse{User: user, ReturnTo: target}, nil)
}

// loginFailed records a failed attempt and writes the 401 (or 429 once the
// account locks). userID is 0 for unknown emails.
func (h *Handler) loginFailed(w http.ResponseWriter, r *http.Request, email, clientIP string, userID int64) {
	args := []any{logging.AttrCategory, model.EventCategoryAuth, "email", email, "ip", clientIP}
	if userID > 0 {
		args = append(args, logging.AttrUserID, userID)
	}
	h.logger.Warn("login failed", args...)

	if h.loginProtection != nil {
		if locked, lockDuration := h.loginProtection.RecordFailedAttempt(email); locked {
			writeError(w, r, http.StatusTooManyRequests, middleware.CodeRateLimited,
				"error.login_locked", formatDuration(lockDuration))
			return
		}
	}
	writeError(w, r, http.StatusUnauthorized, middleware.CodeUnauthorized, "error.invalid_credentials")
}

// Register handles POST /api/auth/register. New accounts are customers and
// are signed in immediately.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validatePasswordField(w, r, req.Password) {
		return
	}
	email := model.NormalizeEmail(req.Email)

	if _, err := h.queries.GetUserByEmail(r.Context(), email); err == nil {
		writeConflict(w, r, "error.email_taken")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		h.writeInternalError(w, r, "failed to check email", err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.writeInternalError(w, r, "failed to hash password", err)
		return
	}
	now := h.now().UTC()
	user, err := h.queries.CreateUser(r.Context(), store.CreateUserParams{
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleCustomer,
		Name:         strings.TrimSpace(req.Name),
		Phone:        strings.TrimSpace(req.Phone),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		h.writeInternalError(w, r, "failed to create user", err)
		return
	}

	if !h.startSession(w, r, user) {
		return
	}
	h.logger.Info("user registered",
		logging.AttrCategory, model.EventCategoryUser,
		logging.AttrUserID, user.ID)
	WriteJSON(w, http.StatusCreated, Response{Data: AuthResponse{User: user, ReturnTo: h.returnTo.Pop(r.Context())}})
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, err := session.Logout(r.Context(), h.sm)
	if err != nil {
		h.logger.Error("logout failed", "error", err)
	}
	if userID > 0 {
		h.logger.Info("user logged out",
			logging.AttrCategory, model.EventCategoryAuth,
			logging.AttrUserID, userID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateProfile handles PUT /api/auth/user.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		writeError(w, r, http.StatusUnauthorized, middleware.CodeUnauthorized, "error.unauthorized")
		return
	}
	var req ProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := h.queries.UpdateUser(r.Context(), store.UpdateUserParams{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		Name:      strings.TrimSpace(req.Name),
		Phone:     strings.TrimSpace(req.Phone),
		UpdatedAt: h.now().UTC(),
	})
	if err != nil {
		h.writeInternalError(w, r, "failed to update profile", err, logging.AttrUserID, user.ID)
		return
	}
	WriteSuccess(w, updated, nil)
}

// startSession renews the session token and stores the user in it.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, user model.User) bool {
	if err := session.Login(r.Context(), h.sm, user.ID, user.Role); err != nil {
		h.writeInternalError(w, r, "starting session", err)
		return false
	}
	return true
}

// formatDuration formats a lockout duration for error messages.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", mins)
	}
	hours := int(d.Hours())
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
