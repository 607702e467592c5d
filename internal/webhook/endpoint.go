// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"slices"
)

// Endpoint is a configured webhook receiver.
type Endpoint struct {
	URL    string
	Secret string
	// Events the endpoint subscribes to. Empty means all.
	Events []string
}

// Subscribes reports whether the endpoint wants event.
func (e Endpoint) Subscribes(event string) bool {
	return len(e.Events) == 0 || slices.Contains(e.Events, event)
}

// GenerateSignature returns the hex HMAC-SHA256 of payload keyed by secret.
// Receivers recompute it to authenticate a delivery.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares signature with the expected one in constant time.
func VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(signature), []byte(GenerateSignature(payload, secret)))
}
