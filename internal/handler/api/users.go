// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/olegiv/storefront/internal/auth"
	"github.com/olegiv/storefront/internal/handler"
	"github.com/olegiv/storefront/internal/logging"
	"github.com/olegiv/storefront/internal/middleware"
	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/store"
)

// CreateUserRequest is the body of POST /api/admin/users.
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
	Role     string `json:"role" validate:"required,oneof=admin customer"`
	Name     string `json:"name" validate:"required,max=100"`
	Phone    string `json:"phone" validate:"max=32"`
}

// UpdateUserRequest is the body of PUT /api/admin/users/{id}. An empty
// password keeps the current one.
type UpdateUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"max=1024"`
	Role     string `json:"role" validate:"required,oneof=admin customer"`
	Name     string `json:"name" validate:"required,max=100"`
	Phone    string `json:"phone" validate:"max=32"`
}

// ListUsers handles GET /api/admin/users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p := handler.ParsePagination(r)
	users, total, err := handler.ListAndCount(
		func() ([]model.User, error) { return h.queries.ListUsers(r.Context(), p.Limit(), p.Offset()) },
		func() (int64, error) { return h.queries.CountUsers(r.Context()) },
	)
	if err != nil {
		h.writeInternalError(w, r, "failed to list users", err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	meta := p.WithTotal(total)
	WriteSuccess(w, users, &meta)
}

// GetUser handles GET /api/admin/users/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := requireEntityByID(h, w, r, "user", func(id int64) (model.User, error) {
		return h.queries.GetUserByID(r.Context(), id)
	})
	if !ok {
		return
	}
	WriteSuccess(w, user, nil)
}

// CreateUser handles POST /api/admin/users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validatePasswordField(w, r, req.Password) {
		return
	}
	email := model.NormalizeEmail(req.Email)
	if !h.emailAvailable(w, r, email, 0) {
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
		Role:         req.Role,
		Name:         strings.TrimSpace(req.Name),
		Phone:        strings.TrimSpace(req.Phone),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		h.writeInternalError(w, r, "failed to create user", err)
		return
	}
	h.logger.Info("user created",
		logging.AttrCategory, model.EventCategoryUser,
		logging.AttrUserID, middleware.GetUserID(r),
		"created_user_id", user.ID, "role", user.Role)
	WriteCreated(w, user)
}

// UpdateUser handles PUT /api/admin/users/{id}. The last admin cannot be
// demoted.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := requireEntityByID(h, w, r, "user", func(id int64) (model.User, error) {
		return h.queries.GetUserByID(r.Context(), id)
	})
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Password != "" && !validatePasswordField(w, r, req.Password) {
		return
	}
	email := model.NormalizeEmail(req.Email)
	if email != user.Email && !h.emailAvailable(w, r, email, user.ID) {
		return
	}
	if user.IsAdmin() && req.Role != model.RoleAdmin && !h.otherAdminExists(w, r) {
		return
	}

	now := h.now().UTC()
	var updated model.User
	err := store.InTx(r.Context(), h.db, func(q *store.Queries) error {
		var err error
		updated, err = q.UpdateUser(r.Context(), store.UpdateUserParams{
			ID:        user.ID,
			Email:     email,
			Role:      req.Role,
			Name:      strings.TrimSpace(req.Name),
			Phone:     strings.TrimSpace(req.Phone),
			UpdatedAt: now,
		})
		if err != nil || req.Password == "" {
			return err
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			return err
		}
		return q.UpdateUserPassword(r.Context(), user.ID, hash, now)
	})
	if err != nil {
		h.writeInternalError(w, r, "failed to update user", err, "target_user_id", user.ID)
		return
	}
	h.logger.Info("user updated",
		logging.AttrCategory, model.EventCategoryUser,
		logging.AttrUserID, middleware.GetUserID(r),
		"target_user_id", user.ID, "role", updated.Role)
	WriteSuccess(w, updated, nil)
}

// DeleteUser handles DELETE /api/admin/users/{id}. Admins cannot delete
// themselves and the last admin cannot be deleted.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user, ok := requireEntityByID(h, w, r, "user", func(id int64) (model.User, error) {
		return h.queries.GetUserByID(r.Context(), id)
	})
	if !ok {
		return
	}
	if user.ID == middleware.GetUserID(r) {
		writeError(w, r, http.StatusForbidden, middleware.CodeForbidden, "error.forbidden")
		return
	}
	if user.IsAdmin() && !h.otherAdminExists(w, r) {
		return
	}
	if err := h.queries.DeleteUser(r.Context(), user.ID); err != nil {
		h.writeInternalError(w, r, "failed to delete user", err, "target_user_id", user.ID)
		return
	}
	h.logger.Info("user deleted",
		logging.AttrCategory, model.EventCategoryUser,
		logging.AttrUserID, middleware.GetUserID(r),
		"target_user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

// emailAvailable writes a 409 when another account uses email.
func (h *Handler) emailAvailable(w http.ResponseWriter, r *http.Request, email string, selfID int64) bool {
	existing, err := h.queries.GetUserByEmail(r.Context(), email)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return true
	case err != nil:
		h.writeInternalError(w, r, "failed to check email", err)
		return false
	case existing.ID == selfID:
		return true
	default:
		writeConflict(w, r, "error.email_taken")
		return false
	}
}

// otherAdminExists writes a 409 when the store would be left without an admin.
func (h *Handler) otherAdminExists(w http.ResponseWriter, r *http.Request) bool {
	n, err := h.queries.CountAdmins(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to count admins", err)
		return false
	}
	if n <= 1 {
		writeConflict(w, r, "error.last_admin")
		return false
	}
	return true
}

func validatePasswordField(w http.ResponseWriter, r *http.Request, password string) bool {
	if err := auth.ValidatePassword(password); err != nil {
		writeValidationError(w, r, map[string]string{
			"password": localizedMessage(r, "error.password_too_short", auth.MinPasswordLength),
		})
		return false
	}
	return true
}
