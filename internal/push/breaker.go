// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package push

import (
	"context"
	"errors"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/castline/internal/config"
	"github.com/tomtom215/castline/internal/logging"
	"github.com/tomtom215/castline/internal/metrics"
	"github.com/tomtom215/castline/internal/models"
)

const breakerName = "webpush"

// BreakerSender wraps a Sender with a circuit breaker. The circuit opens
// after a run of consecutive failures; an expired subscription is not a
// failure of the push service and does not count.
type BreakerSender struct {
	next Sender
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerSender wraps next using the breaker settings in cfg.
func NewBreakerSender(next Sender, cfg *config.PushConfig) *BreakerSender {
	threshold := cfg.BreakerFailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= threshold
			if trip {
				logging.Warn().
					Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Msg("[CIRCUIT BREAKER] Opening web push circuit")
			}
			return trip
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrSubscriptionGone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &BreakerSender{next: next, cb: cb}
}

// Send delivers through the wrapped sender unless the circuit is open.
func (b *BreakerSender) Send(ctx context.Context, sub models.WebPushSubscription, payload Payload) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Send(ctx, sub, payload)
	})
	if err == nil {
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(0)
		return nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).
		Set(float64(b.cb.Counts().ConsecutiveFailures))
	return err
}

// State returns the current breaker state name.
func (b *BreakerSender) State() string {
	return b.cb.State().String()
}

// Ensure interfaces are satisfied.
var (
	_ Sender = (*WebPushSender)(nil)
	_ Sender = (*BreakerSender)(nil)
)
