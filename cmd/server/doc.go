// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

// Command server runs the Castline delivery core: the notification and chat
// channels, the REST API and, optionally, the notification event consumer.
//
// # Startup order
//
//  1. Configuration (koanf: defaults, config.yaml, environment)
//  2. Logging (zerolog)
//  3. Document store (BadgerDB or in-memory)
//  4. Token verifier and Casbin enforcer
//  5. Presence registry, hub, dispatcher, chat relay, read-state synchronizer
//  6. Event stream (NATS JetStream, optional)
//  7. HTTP router and the supervisor tree
//
// # Build tags
//
//	go build ./cmd/server               # event stream compiled out
//	go build -tags nats ./cmd/server    # NATS JetStream support
//
// # Example
//
//	export JWT_SECRET=$(openssl rand -base64 48)
//	export CORS_ORIGINS=https://app.example.com
//	export STORE_PATH=/data/castline
//	export PUSH_ENABLED=true VAPID_PUBLIC_KEY=... VAPID_PRIVATE_KEY=... VAPID_SUBSCRIBER=ops@example.com
//	./castline
//
// SIGINT and SIGTERM stop the supervisor tree: the HTTP server drains, the
// hub closes every channel, and the event consumer and broker shut down.
package main
