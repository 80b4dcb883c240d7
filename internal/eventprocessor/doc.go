// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

// Package eventprocessor lets other services request notifications
// asynchronously through NATS JetStream, using Watermill for routing.
//
// # Data Flow
//
//	┌──────────────┐   publish    ┌─────────────────────┐
//	│ jobs, media, │ ───────────▶ │   NATS JetStream    │
//	│ projects ... │              │ CASTLINE_NOTIFICATIONS│
//	└──────────────┘              └──────────┬──────────┘
//	                                         │ durable queue subscription
//	                                         ▼
//	                              ┌─────────────────────┐
//	                              │ Watermill Router    │
//	                              │ Recoverer, Retry,   │
//	                              │ PoisonQueue         │
//	                              └──────────┬──────────┘
//	                                         ▼
//	                              ┌─────────────────────┐
//	                              │ NotificationHandler │ ──▶ notify.Dispatcher
//	                              └─────────────────────┘
//
// Each message carries a NotificationEvent envelope. When the embedded
// notification has no id, one is derived from the event id, so a
// redelivered event is recognized by the store as a duplicate and
// delivered only once.
//
// Malformed envelopes and invalid notifications are acked and dropped.
// Persistence failures are retried with exponential backoff and then sent
// to the poison subject (castline.notifications.dlq).
//
// # Build Tags
//
// The NATS transport (embedded server, JetStream publisher and subscriber,
// stream initialization) is compiled only with -tags nats. Without the tag
// the constructors return ErrNATSNotEnabled; the router, handler and
// EventPublisher work with any Watermill Pub/Sub.
package eventprocessor
