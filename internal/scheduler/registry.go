// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts standard five-field expressions and descriptors.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Registry errors.
var (
	ErrJobNotFound     = errors.New("job not found")
	ErrInvalidSchedule = errors.New("invalid cron expression")
)

// registeredJob holds metadata about a registered cron job.
type registeredJob struct {
	name            string
	description     string
	defaultSchedule string
	schedule        string // effective schedule
	entryID         cron.EntryID
	jobFunc         func()
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	DefaultSchedule string    `json:"defaultSchedule"`
	Schedule        string    `json:"schedule"`
	IsOverridden    bool      `json:"isOverridden"`
	LastRun         time.Time `json:"lastRun"`
	NextRun         time.Time `json:"nextRun"`
}

// Registry tracks the jobs of one cron instance. Schedule overrides live
// in memory and reset on restart.
type Registry struct {
	cron   *cron.Cron
	logger *slog.Logger
	mu     sync.RWMutex
	jobs   map[string]*registeredJob
}

// NewRegistry creates a registry for c.
func NewRegistry(c *cron.Cron, logger *slog.Logger) *Registry {
	return &Registry{
		cron:   c,
		logger: logger,
		jobs:   make(map[string]*registeredJob),
	}
}

// Add schedules fn and records it under name.
func (r *Registry) Add(name, description, schedule string, fn func()) error {
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidSchedule, schedule, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[name]; exists {
		return fmt.Errorf("job already registered: %s", name)
	}
	entryID, err := r.cron.AddFunc(schedule, fn)
	if err != nil {
		return fmt.Errorf("adding job %s: %w", name, err)
	}
	r.jobs[name] = &registeredJob{
		name:            name,
		description:     description,
		defaultSchedule: schedule,
		schedule:        schedule,
		entryID:         entryID,
		jobFunc:         fn,
	}
	r.logger.Debug("registered scheduled job", "name", name, "schedule", schedule)
	return nil
}

// List returns all registered jobs sorted by name.
func (r *Registry) List() []JobInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]JobInfo, 0, len(r.jobs))
	for _, job := range r.jobs {
		entry := r.cron.Entry(job.entryID)
		result = append(result, JobInfo{
			Name:            job.name,
			Description:     job.description,
			DefaultSchedule: job.defaultSchedule,
			Schedule:        job.schedule,
			IsOverridden:    job.schedule != job.defaultSchedule,
			LastRun:         entry.Prev,
			NextRun:         entry.Next,
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// TriggerNow runs a job synchronously.
func (r *Registry) TriggerNow(name string) error {
	r.mu.RLock()
	job, ok := r.jobs[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	r.logger.Info("manually triggering job", "name", name)
	job.jobFunc()
	return nil
}

// UpdateSchedule replaces the cron entry of a job with a new schedule.
func (r *Registry) UpdateSchedule(name, schedule string) error {
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidSchedule, schedule, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if err := r.reschedule(job, schedule); err != nil {
		return err
	}
	r.logger.Info("updated job schedule", "name", name, "schedule", schedule)
	return nil
}

// ResetSchedule restores the default schedule of a job.
func (r *Registry) ResetSchedule(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if job.schedule == job.defaultSchedule {
		return nil
	}
	return r.reschedule(job, job.defaultSchedule)
}

func (r *Registry) reschedule(job *registeredJob, schedule string) error {
	r.cron.Remove(job.entryID)
	entryID, err := r.cron.AddFunc(schedule, job.jobFunc)
	if err != nil {
		// Restore the previous entry.
		fallbackID, fallbackErr := r.cron.AddFunc(job.schedule, job.jobFunc)
		if fallbackErr != nil {
			return fmt.Errorf("critical: failed to restore schedule after update failure: %w (original: %w)", fallbackErr, err)
		}
		job.entryID = fallbackID
		return fmt.Errorf("failed to apply new schedule: %w", err)
	}
	job.entryID = entryID
	job.schedule = schedule
	return nil
}
