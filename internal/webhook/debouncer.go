// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// DebounceConfig holds debouncer configuration.
type DebounceConfig struct {
	// Interval is the quiet period after the last edit of an entity.
	Interval time.Duration
	// MaxWait caps the delay since the first held edit.
	MaxWait time.Duration
}

// DefaultDebounceConfig returns default debounce configuration.
func DefaultDebounceConfig() DebounceConfig {
	return DebounceConfig{
		Interval: time.Second,
		MaxWait:  5 * time.Second,
	}
}

// held is the latest event for one entity waiting to be released.
type held struct {
	event    *Event
	deadline time.Time
	timer    *time.Timer
}

// Debouncer holds back product edits so a product saved several times in a
// row (fields, then each translation) is posted once, with its final state.
// After Stop, events pass straight through to the dispatcher.
type Debouncer struct {
	dispatcher *Dispatcher
	config     DebounceConfig
	now        func() time.Time

	mu      sync.Mutex
	pending map[string]*held
	stopped bool
	wg      sync.WaitGroup
}

// NewDebouncer creates a new event debouncer.
func NewDebouncer(dispatcher *Dispatcher, config DebounceConfig) *Debouncer {
	if config.Interval <= 0 {
		config.Interval = DefaultDebounceConfig().Interval
	}
	if config.MaxWait < config.Interval {
		config.MaxWait = config.Interval
	}
	return &Debouncer{
		dispatcher: dispatcher,
		config:     config,
		now:        time.Now,
		pending:    make(map[string]*held),
	}
}

// eventKey groups events by type and entity id. Events without an entity
// are grouped by type alone.
func eventKey(event *Event) string {
	if e, ok := event.Data.(entity); ok {
		return event.Type + ":" + strconv.FormatInt(e.EntityID(), 10)
	}
	return event.Type
}

// DispatchEvent implements the API event publisher.
func (d *Debouncer) DispatchEvent(ctx context.Context, eventType string, data any) error {
	return d.Dispatch(ctx, NewEvent(eventType, data))
}

// Dispatch holds event until its entity has been quiet for Interval, or
// MaxWait has passed since the first held edit. A newer event for the same
// entity replaces the held one.
func (d *Debouncer) Dispatch(ctx context.Context, event *Event) error {
	key := eventKey(event)
	now := d.now()

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return d.dispatcher.Dispatch(ctx, event)
	}

	if h, ok := d.pending[key]; ok {
		h.event = event
		wait := min(d.config.Interval, h.deadline.Sub(now))
		if wait > 0 {
			h.timer.Reset(wait)
			d.mu.Unlock()
			return nil
		}
		h.timer.Stop()
		delete(d.pending, key)
		d.mu.Unlock()
		d.forward(event)
		return nil
	}

	h := &held{event: event, deadline: now.Add(d.config.MaxWait)}
	h.timer = time.AfterFunc(d.config.Interval, func() { d.release(key, h) })
	d.pending[key] = h
	d.mu.Unlock()

	d.dispatcher.logger.Debug("webhook event held", "key", key)
	return nil
}

func (d *Debouncer) release(key string, h *held) {
	d.mu.Lock()
	if d.pending[key] != h {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	event := h.event
	d.mu.Unlock()

	d.forward(event)
}

// forward hands event to the dispatcher in the background, detached from the
// request that produced it.
func (d *Debouncer) forward(event *Event) {
	d.wg.Go(func() {
		if err := d.dispatcher.Dispatch(context.Background(), event); err != nil {
			d.dispatcher.logger.Error("failed to dispatch held webhook event",
				"event_type", event.Type, "error", err)
		}
	})
}

// Stop releases every held event and waits until they are queued.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	waiting := d.pending
	d.pending = make(map[string]*held)
	d.mu.Unlock()

	for _, h := range waiting {
		h.timer.Stop()
		d.forward(h.event)
	}
	d.wg.Wait()
}

// PendingCount returns the number of held events.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
