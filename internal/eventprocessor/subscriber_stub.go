// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

//go:build !nats

package eventprocessor

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Subscriber is a stub for non-NATS builds.
type Subscriber struct{}

// NewSubscriber is a stub for non-NATS builds.
func NewSubscriber(_ *SubscriberConfig, _ watermill.LoggerAdapter) (*Subscriber, error) {
	return nil, ErrNATSNotEnabled
}

// Subscribe is a stub for non-NATS builds.
func (s *Subscriber) Subscribe(_ context.Context, _ string) (<-chan *message.Message, error) {
	return nil, ErrNATSNotEnabled
}

// Close is a stub for non-NATS builds.
func (s *Subscriber) Close() error {
	return nil
}
