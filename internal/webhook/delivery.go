// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/olegiv/storefront/internal/logging"
	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/store"
)

const (
	MaxAttempts    = 5
	InitialBackoff = time.Minute
	MaxBackoff     = 24 * time.Hour
	RequestTimeout = 30 * time.Second
	// MaxResponseLen bounds the stored response body.
	MaxResponseLen = 10 * 1024
	UserAgent      = "Storefront/1.0"
)

// Request headers set on every delivery.
const (
	HeaderSignature  = "X-Webhook-Signature"
	HeaderEvent      = "X-Webhook-Event"
	HeaderDeliveryID = "X-Webhook-Delivery-ID"
)

// outcome is what one POST to an endpoint means for the delivery record.
type outcome int

const (
	outcomeDelivered outcome = iota
	outcomeRetry
	outcomeDead
)

func (o outcome) String() string {
	switch o {
	case outcomeDelivered:
		return "delivered"
	case outcomeRetry:
		return "retry"
	default:
		return "dead"
	}
}

// attempt is the result of one POST.
type attempt struct {
	outcome    outcome
	statusCode int
	body       string
	err        error
	// retryAfter is the delay the endpoint asked for, zero when absent.
	retryAfter time.Duration
}

func (a attempt) errorMessage() sql.NullString {
	if a.err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: a.err.Error(), Valid: true}
}

var httpClient = &http.Client{
	Timeout: RequestTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// processDelivery posts a queued delivery and stores the outcome. Records
// that are no longer pending were handled by another worker and are skipped.
func (d *Dispatcher) processDelivery(ctx context.Context, qd *QueuedDelivery) {
	log := d.logger.With("delivery_id", qd.DeliveryID, "event", qd.Event)

	record, err := d.queries.GetWebhookDelivery(ctx, qd.DeliveryID)
	if err != nil {
		log.Error("loading webhook delivery", "error", err)
		return
	}
	if record.Status != model.DeliveryStatusPending {
		log.Debug("webhook delivery already settled", "status", record.Status)
		return
	}

	res := d.post(ctx, qd)
	now := d.now().UTC()
	attempts := record.Attempts + 1
	if res.outcome == outcomeRetry && attempts >= MaxAttempts {
		res.outcome = outcomeDead
	}

	switch res.outcome {
	case outcomeDelivered:
		err = d.queries.UpdateDeliverySuccess(ctx, qd.DeliveryID, res.statusCode, res.body, now)
		if err == nil {
			log.Info("webhook delivered", "status_code", res.statusCode, "attempts", attempts)
		}
	case outcomeDead:
		err = d.queries.UpdateDeliveryDead(ctx, qd.DeliveryID, res.errorMessage(), now)
		if err == nil {
			log.Warn("webhook delivery failed permanently",
				logging.AttrCategory, model.EventCategoryWebhook,
				"url", qd.URL,
				"attempts", attempts,
				"reason", res.errorMessage().String)
		}
	case outcomeRetry:
		wait := max(calculateBackoff(attempts), min(res.retryAfter, MaxBackoff))
		next := now.Add(wait)
		err = d.queries.UpdateDeliveryRetry(ctx, store.UpdateDeliveryRetryParams{
			ID:           qd.DeliveryID,
			ResponseCode: sql.NullInt64{Int64: int64(res.statusCode), Valid: res.statusCode > 0},
			ResponseBody: sql.NullString{String: res.body, Valid: res.body != ""},
			ErrorMessage: res.errorMessage(),
			NextRetryAt:  next,
			UpdatedAt:    now,
		})
		if err == nil {
			log.Info("webhook delivery will be retried",
				"attempt", attempts,
				"next_retry_at", next.Format(time.RFC3339),
				"wait", wait.String())
		}
	}
	if err != nil {
		log.Error("storing webhook delivery outcome", "outcome", res.outcome.String(), "error", err)
	}
}

// post sends the payload of qd, signed when the endpoint has a secret.
func (d *Dispatcher) post(ctx context.Context, qd *QueuedDelivery) attempt {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, qd.URL, bytes.NewReader(qd.Payload))
	if err != nil {
		return attempt{outcome: outcomeDead, err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set(HeaderEvent, qd.Event)
	req.Header.Set(HeaderDeliveryID, strconv.FormatInt(qd.DeliveryID, 10))
	if qd.Secret != "" {
		req.Header.Set(HeaderSignature, GenerateSignature(qd.Payload, qd.Secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return attempt{outcome: outcomeRetry, err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseLen))
	res := attempt{
		outcome:    classifyStatus(resp.StatusCode),
		statusCode: resp.StatusCode,
		body:       string(body),
	}
	if res.outcome != outcomeDelivered {
		res.err = fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if res.outcome == outcomeRetry {
		res.retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), d.now())
	}
	return res
}

// classifyStatus maps a response status to an outcome. Client errors are
// final except 408 and 429.
func classifyStatus(code int) outcome {
	switch {
	case code >= 200 && code < 300:
		return outcomeDelivered
	case code >= 500, code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return outcomeRetry
	default:
		return outcomeDead
	}
}

// parseRetryAfter reads a Retry-After value given in seconds or as an HTTP
// date. Invalid and past values yield zero.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(min(secs, int(MaxBackoff/time.Second))) * time.Second
	}
	t, err := http.ParseTime(v)
	if err != nil || !t.After(now) {
		return 0
	}
	return t.Sub(now)
}

// calculateBackoff doubles InitialBackoff for every attempt after the first,
// up to MaxBackoff.
func calculateBackoff(n int64) time.Duration {
	if n <= 1 {
		return InitialBackoff
	}
	// 2^11 minutes already exceeds a day.
	if n > 12 {
		return MaxBackoff
	}
	return min(InitialBackoff<<(n-1), MaxBackoff)
}
