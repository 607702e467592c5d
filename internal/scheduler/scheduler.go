// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the periodic maintenance jobs: cache refreshes,
// webhook retries and log pruning.
package scheduler

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/storefront/internal/settings"
	"github.com/olegiv/storefront/internal/store"
	"github.com/olegiv/storefront/internal/theme"
)

// Job names.
const (
	JobSettingsRefresh = "settings-refresh"
	JobThemeRefresh    = "theme-refresh"
	JobPruneEvents     = "prune-events"
	JobWebhookRetry    = "webhook-retry"
	JobPruneWebhooks   = "prune-webhooks"
	JobGeoIPReload     = "geoip-reload"
)

// Default schedules. The settings refresh runs inside the 5 minute window
// so readers rarely see a stale entry.
const (
	ScheduleSettingsRefresh = "*/4 * * * *"
	ScheduleThemeRefresh    = "* * * * *"
	SchedulePruneEvents     = "0 3 * * *"
	ScheduleWebhookRetry    = "* * * * *"
	SchedulePruneWebhooks   = "30 3 * * *"
	ScheduleGeoIPReload     = "0 4 * * 0"
)

const jobTimeout = 30 * time.Second

// DeliveryRetrier re-queues webhook deliveries whose retry time has come.
type DeliveryRetrier interface {
	RetryDue(ctx context.Context) (int, error)
}

// Reloader reopens a file-backed resource when it changed on disk.
type Reloader interface {
	Reload() error
}

// Scheduler handles the background maintenance jobs.
type Scheduler struct {
	cron      *cron.Cron
	registry  *Registry
	queries   *store.Queries
	settings  *settings.Cache
	theme     *theme.ActiveTheme
	retention time.Duration
	webhooks  DeliveryRetrier
	geoip     Reloader
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a new scheduler instance. Events older than retention are
// pruned; a non-positive retention disables pruning.
func New(db *sql.DB, sc *settings.Cache, at *theme.ActiveTheme, retention time.Duration, logger *slog.Logger) *Scheduler {
	c := cron.New()
	return &Scheduler{
		cron:      c,
		registry:  NewRegistry(c, logger),
		queries:   store.New(db),
		settings:  sc,
		theme:     at,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

// SetWebhooks enables the retry and pruning jobs for webhook deliveries.
// Call before Start.
func (s *Scheduler) SetWebhooks(r DeliveryRetrier) {
	s.webhooks = r
}

// SetGeoIP enables the weekly GeoIP database reload. Call before Start.
func (s *Scheduler) SetGeoIP(r Reloader) {
	s.geoip = r
}

// Registry exposes the job registry for the admin API.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.settings != nil {
		if err := s.registry.Add(JobSettingsRefresh, "Reload store settings into the cache",
			ScheduleSettingsRefresh, s.refreshSettings); err != nil {
			return err
		}
	}
	if s.theme != nil {
		if err := s.registry.Add(JobThemeRefresh, "Re-apply the active theme when it changed",
			ScheduleThemeRefresh, s.refreshTheme); err != nil {
			return err
		}
	}
	if s.retention > 0 {
		if err := s.registry.Add(JobPruneEvents, "Delete event log entries past retention",
			SchedulePruneEvents, s.pruneEvents); err != nil {
			return err
		}
	}

	if s.webhooks != nil {
		if err := s.registry.Add(JobWebhookRetry, "Retry failed webhook deliveries",
			ScheduleWebhookRetry, s.retryWebhooks); err != nil {
			return err
		}
		if s.retention > 0 {
			if err := s.registry.Add(JobPruneWebhooks, "Delete finished webhook deliveries past retention",
				SchedulePruneWebhooks, s.pruneWebhooks); err != nil {
				return err
			}
		}
	}
	if s.geoip != nil {
		if err := s.registry.Add(JobGeoIPReload, "Reload the GeoIP database when the file changed",
			ScheduleGeoIPReload, s.reloadGeoIP); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop waits for running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) refreshSettings() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	st := s.settings.Refresh(ctx)
	s.logger.Debug("settings refreshed", "primary", st.Primary())
}

func (s *Scheduler) refreshTheme() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	t := s.theme.Get(ctx)
	s.logger.Debug("active theme checked", "theme_id", t.ID)
}

func (s *Scheduler) pruneEvents() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	cutoff := s.now().Add(-s.retention).UTC()
	n, err := s.queries.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to prune event log", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("pruned event log", "deleted", n, "cutoff", cutoff.Format(time.RFC3339))
	}
}

func (s *Scheduler) retryWebhooks() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	n, err := s.webhooks.RetryDue(ctx)
	if err != nil {
		s.logger.Error("failed to retry webhook deliveries", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("queued webhook retries", "count", n)
	}
}

func (s *Scheduler) pruneWebhooks() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	cutoff := s.now().Add(-s.retention).UTC()
	n, err := s.queries.DeleteDeliveriesBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to prune webhook deliveries", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("pruned webhook deliveries", "deleted", n, "cutoff", cutoff.Format(time.RFC3339))
	}
}

func (s *Scheduler) reloadGeoIP() {
	if err := s.geoip.Reload(); err != nil {
		s.logger.Warn("failed to reload geoip database", "error", err)
	}
}
