// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

//go:build !nats

package eventprocessor

import "github.com/ThreeDotsLabs/watermill"

// NewPublisher is a stub for non-NATS builds.
func NewPublisher(_ PublisherConfig, _ watermill.LoggerAdapter) (*EventPublisher, error) {
	return nil, ErrNATSNotEnabled
}
