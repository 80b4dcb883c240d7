// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package eventprocessor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/castline/internal/apperrors"
	"github.com/tomtom215/castline/internal/logging"
	"github.com/tomtom215/castline/internal/metrics"
	"github.com/tomtom215/castline/internal/models"
	"github.com/tomtom215/castline/internal/notify"
)

// Dispatcher is the notification pipeline the handler feeds.
type Dispatcher interface {
	Dispatch(ctx context.Context, n models.Notification) (*notify.Result, error)
}

// NotificationHandler turns NATS messages into notification dispatches.
//
// Messages that can never succeed (malformed envelopes, invalid
// notifications) are acked and dropped. Persistence failures are returned
// so the router retries them and eventually routes them to the poison
// queue.
type NotificationHandler struct {
	dispatcher Dispatcher
	serializer *Serializer

	received   atomic.Int64
	dispatched atomic.Int64
	duplicates atomic.Int64
	rejected   atomic.Int64
	failed     atomic.Int64
}

// HandlerStats is a snapshot of handler counters.
type HandlerStats struct {
	Received   int64 `json:"received"`
	Dispatched int64 `json:"dispatched"`
	Duplicates int64 `json:"duplicates"`
	Rejected   int64 `json:"rejected"`
	Failed     int64 `json:"failed"`
}

// NewNotificationHandler creates a handler for d.
func NewNotificationHandler(d Dispatcher) (*NotificationHandler, error) {
	if d == nil {
		return nil, errors.New("dispatcher required")
	}
	return &NotificationHandler{
		dispatcher: d,
		serializer: NewSerializer(),
	}, nil
}

// Handle processes one message. It satisfies message.NoPublishHandlerFunc.
func (h *NotificationHandler) Handle(msg *message.Message) error {
	start := time.Now()
	h.received.Add(1)
	metrics.RecordNATSConsume()

	event, err := h.serializer.Unmarshal(msg.Payload)
	if err != nil {
		h.rejected.Add(1)
		metrics.RecordNATSParseFailed()
		logging.Warn().Err(err).
			Str("message_uuid", msg.UUID).
			Msg("Dropping malformed notification event")
		return nil
	}

	ctx := logging.ContextWithCorrelationID(msg.Context(), event.EventID)
	n := event.NotificationWithID()

	result, err := h.dispatcher.Dispatch(ctx, n)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindValidation {
			h.rejected.Add(1)
			logging.Ctx(ctx).Warn().Err(err).
				Str("source", event.Source).
				Msg("Dropping invalid notification event")
			return nil
		}
		h.failed.Add(1)
		logging.Ctx(ctx).Error().Err(err).
			Str("source", event.Source).
			Msg("Notification event dispatch failed")
		return err
	}

	if result.Duplicate {
		h.duplicates.Add(1)
	} else {
		h.dispatched.Add(1)
	}
	metrics.RecordNATSProcessed()
	metrics.RecordNATSProcessingDuration(time.Since(start))
	return nil
}

// Stats returns the handler counters.
func (h *NotificationHandler) Stats() HandlerStats {
	return HandlerStats{
		Received:   h.received.Load(),
		Dispatched: h.dispatched.Load(),
		Duplicates: h.duplicates.Load(),
		Rejected:   h.rejected.Load(),
		Failed:     h.failed.Load(),
	}
}
