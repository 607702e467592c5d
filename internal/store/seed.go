// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/storefront/internal/auth"
	"github.com/olegiv/storefront/internal/model"
)

// First-run administrator. The password must be changed after the first login.
const (
	DefaultAdminEmail    = "admin@example.com"
	DefaultAdminPassword = "changeme"
	DefaultAdminName     = "Administrator"
)

// seeder creates one piece of first-run data and reports whether it did.
type seeder struct {
	name string
	run  func(ctx context.Context, q *Queries, now time.Time) (bool, error)
}

const adminSeeder = "admin user"

var seeders = []seeder{
	{adminSeeder, seedAdmin},
	{"store settings", seedSettings},
	{"default theme", seedTheme},
}

// Seed creates the admin user, store settings and default theme when they
// are missing. It runs in one transaction and is safe to repeat. Logging
// waits for the commit since WARN records are written to the same database.
func Seed(ctx context.Context, db *sql.DB) error {
	now := time.Now().UTC()
	var created []string
	err := InTx(ctx, db, func(q *Queries) error {
		for _, s := range seeders {
			ok, err := s.run(ctx, q, now)
			if err != nil {
				return fmt.Errorf("seeding %s: %w", s.name, err)
			}
			if ok {
				created = append(created, s.name)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, name := range created {
		slog.Info("seeded", "item", name)
		if name == adminSeeder {
			slog.Warn("default admin created; change its password after the first login",
				"email", DefaultAdminEmail)
		}
	}
	return nil
}

func seedAdmin(ctx context.Context, q *Queries, now time.Time) (bool, error) {
	admins, err := q.CountAdmins(ctx)
	if err != nil || admins > 0 {
		return false, err
	}

	hash, err := auth.HashPassword(DefaultAdminPassword)
	if err != nil {
		return false, err
	}
	_, err = q.CreateUser(ctx, CreateUserParams{
		Email:        DefaultAdminEmail,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		Name:         DefaultAdminName,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func seedSettings(ctx context.Context, q *Queries, now time.Time) (bool, error) {
	_, err := q.GetStoreSettings(ctx)
	if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	s := model.DefaultStoreSettings()
	s.Text = model.Fields{
		"storeName":       "Вкусная доставка",
		"storeName_en":    "Tasty Delivery",
		"storeName_he":    "משלוח טעים",
		"storeName_ar":    "توصيل لذيذ",
		"welcomeTitle":    "Добро пожаловать!",
		"welcomeTitle_en": "Welcome!",
		"welcomeTitle_he": "ברוכים הבאים!",
		"welcomeTitle_ar": "أهلا بكم!",
		"footerText":      "© Вкусная доставка",
	}
	s.WorkingHours = map[string]string{
		"mon": "10:00-22:00", "tue": "10:00-22:00", "wed": "10:00-22:00",
		"thu": "10:00-22:00", "fri": "10:00-15:00", "sat": "", "sun": "10:00-22:00",
	}
	if err := q.UpsertStoreSettings(ctx, s, now); err != nil {
		return false, err
	}
	return true, nil
}

func seedTheme(ctx context.Context, q *Queries, now time.Time) (bool, error) {
	count, err := q.CountThemes(ctx)
	if err != nil || count > 0 {
		return false, err
	}
	theme, err := q.CreateTheme(ctx, model.DefaultTheme(), now)
	if err != nil {
		return false, err
	}
	if err := q.ActivateTheme(ctx, theme.ID, now); err != nil {
		return false, fmt.Errorf("activating theme %d: %w", theme.ID, err)
	}
	return true, nil
}
