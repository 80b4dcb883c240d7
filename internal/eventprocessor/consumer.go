// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package eventprocessor

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/castline/internal/logging"
)

const consumerHandlerName = "notification-dispatch"

// Consumer routes notification events from a subscriber into a
// NotificationHandler. It implements suture.Service; each Serve call builds
// a fresh router so the supervisor can restart it.
type Consumer struct {
	subscriber message.Subscriber
	poison     message.Publisher
	topic      string
	handler    *NotificationHandler
	config     RouterConfig
}

// NewConsumer creates a Consumer reading topic from subscriber. poison may be nil.
func NewConsumer(subscriber message.Subscriber, poison message.Publisher, topic string, handler *NotificationHandler, cfg RouterConfig) (*Consumer, error) {
	if subscriber == nil {
		return nil, errors.New("subscriber required")
	}
	if handler == nil {
		return nil, errors.New("handler required")
	}
	if topic == "" {
		topic = DefaultSubject
	}
	return &Consumer{
		subscriber: subscriber,
		poison:     poison,
		topic:      topic,
		handler:    handler,
		config:     cfg,
	}, nil
}

// Serve runs the router until ctx is cancelled.
func (c *Consumer) Serve(ctx context.Context) error {
	router, err := NewRouter(&c.config, c.poison, nil)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}
	router.AddConsumerHandler(consumerHandlerName, c.topic, c.subscriber, c.handler.Handle)

	logging.Info().Str("topic", c.topic).Msg("Notification consumer started")
	err = router.Run(ctx)
	logging.Info().Str("topic", c.topic).Msg("Notification consumer stopped")
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// String implements fmt.Stringer for supervisor logging.
func (c *Consumer) String() string {
	return "notification-consumer"
}

// Stats returns the handler counters.
func (c *Consumer) Stats() HandlerStats {
	return c.handler.Stats()
}
