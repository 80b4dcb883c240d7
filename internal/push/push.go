// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

// Package push delivers notification summaries to offline profiles through
// the Web Push protocol.
//
// WebPushSender performs the VAPID-signed, encrypted request to the browser's
// push service. BreakerSender wraps any Sender in a circuit breaker so an
// unavailable push service fails fast instead of stalling dispatch.
// Delivery is never retried here; a failed send is a failure for that one
// target.
package push

import (
	"context"
	"errors"

	"github.com/tomtom215/castline/internal/config"
	"github.com/tomtom215/castline/internal/models"
)

var (
	// ErrSubscriptionGone is returned when the push service reports the
	// subscription expired or unsubscribed (404 or 410).
	ErrSubscriptionGone = errors.New("push: subscription gone")

	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("push: service unavailable")
)

// Payload is the JSON body delivered to the service worker.
type Payload struct {
	Title string `json:"title"`
}

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub models.WebPushSubscription, payload Payload) error
}

// New builds the configured sender chain. It returns nil when push delivery
// is disabled.
func New(cfg *config.PushConfig) Sender {
	if !cfg.Enabled {
		return nil
	}
	return NewBreakerSender(NewWebPushSender(cfg), cfg)
}
