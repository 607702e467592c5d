// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/olegiv/storefront/internal/store"
)

// Config holds dispatcher settings. Zero values take the defaults.
type Config struct {
	Workers   int
	QueueSize int
	Endpoints []Endpoint
	Client    *http.Client
}

// DefaultConfig returns the worker and queue defaults.
func DefaultConfig() Config {
	return Config{Workers: 3, QueueSize: 100}
}

// QueuedDelivery is a recorded delivery waiting for a worker.
type QueuedDelivery struct {
	DeliveryID int64
	Event      string
	Payload    []byte
	URL        string
	Secret     string
}

// Dispatcher records one delivery per subscribed endpoint and posts them
// from a pool of workers. The database row is the source of truth: a
// delivery that misses the queue stays pending until RetryDue picks it up.
type Dispatcher struct {
	queries   *store.Queries
	logger    *slog.Logger
	endpoints []Endpoint
	byURL     map[string]Endpoint
	client    *http.Client
	now       func() time.Time
	workers   int
	queue     chan *QueuedDelivery

	mu     sync.RWMutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a stopped dispatcher for cfg.Endpoints.
func NewDispatcher(db *sql.DB, logger *slog.Logger, cfg Config) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Client == nil {
		cfg.Client = httpClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	byURL := make(map[string]Endpoint, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		byURL[ep.URL] = ep
	}
	return &Dispatcher{
		queries:   store.New(db),
		logger:    logger.With("component", "webhooks"),
		endpoints: cfg.Endpoints,
		byURL:     byURL,
		client:    cfg.Client,
		now:       time.Now,
		workers:   cfg.Workers,
		queue:     make(chan *QueuedDelivery, cfg.QueueSize),
	}
}

// Enabled reports whether any endpoint is configured.
func (d *Dispatcher) Enabled() bool {
	return len(d.endpoints) > 0
}

// Start launches the workers. They run until Stop or until ctx ends.
// Calling Start on a running dispatcher does nothing.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)

	for id := range d.workers {
		d.wg.Go(func() { d.work(ctx, id) })
	}
	d.logger.Info("webhook dispatcher started", "workers", d.workers, "endpoints", len(d.endpoints))
}

// Stop cancels in-flight requests and waits for the workers. Interrupted and
// queued deliveries stay pending for RetryDue.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	d.wg.Wait()
	d.logger.Info("webhook dispatcher stopped")
}

func (d *Dispatcher) running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cancel != nil
}

func (d *Dispatcher) work(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("webhook worker exiting", "worker", id)
			return
		case qd := <-d.queue:
			d.processDelivery(ctx, qd)
		}
	}
}

// Dispatch records a delivery of event for every subscribed endpoint and
// queues it. A failure to record one endpoint does not stop the others.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) error {
	var targets []Endpoint
	for _, ep := range d.endpoints {
		if ep.Subscribes(event.Type) {
			targets = append(targets, ep)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event.Type, err)
	}

	now := d.now().UTC()
	for _, ep := range targets {
		rec, err := d.queries.CreateWebhookDelivery(ctx, ep.URL, event.Type, string(payload), now)
		if err != nil {
			d.logger.Error("recording webhook delivery", "url", ep.URL, "event", event.Type, "error", err)
			continue
		}
		d.enqueue(&QueuedDelivery{
			DeliveryID: rec.ID,
			Event:      event.Type,
			Payload:    payload,
			URL:        ep.URL,
			Secret:     ep.Secret,
		})
	}
	return nil
}

// DispatchEvent wraps data in an event of eventType and dispatches it.
func (d *Dispatcher) DispatchEvent(ctx context.Context, eventType string, data any) error {
	return d.Dispatch(ctx, NewEvent(eventType, data))
}

// RetryDue queues pending deliveries whose retry time has come, together with
// first attempts that never ran. Deliveries for endpoints that were removed
// from the configuration are marked dead. It returns the number queued.
func (d *Dispatcher) RetryDue(ctx context.Context) (int, error) {
	now := d.now().UTC()
	due, err := d.queries.ListDueDeliveries(ctx, now, now.Add(-2*RequestTimeout), int64(cap(d.queue)))
	if err != nil {
		return 0, fmt.Errorf("listing due webhook deliveries: %w", err)
	}

	queued := 0
	for _, rec := range due {
		ep, ok := d.byURL[rec.URL]
		if !ok {
			reason := sql.NullString{String: "endpoint no longer configured", Valid: true}
			if err := d.queries.UpdateDeliveryDead(ctx, rec.ID, reason, now); err != nil {
				d.logger.Error("dropping webhook delivery", "delivery_id", rec.ID, "error", err)
			}
			continue
		}
		if d.enqueue(&QueuedDelivery{
			DeliveryID: rec.ID,
			Event:      rec.Event,
			Payload:    []byte(rec.Payload),
			URL:        rec.URL,
			Secret:     ep.Secret,
		}) {
			queued++
		}
	}
	return queued, nil
}

// enqueue hands qd to a worker without blocking.
func (d *Dispatcher) enqueue(qd *QueuedDelivery) bool {
	if !d.running() {
		return false
	}
	select {
	case d.queue <- qd:
		return true
	default:
		d.logger.Warn("webhook queue full, delivery left pending", "delivery_id", qd.DeliveryID)
		return false
	}
}
