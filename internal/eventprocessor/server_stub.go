// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

//go:build !nats

package eventprocessor

import "context"

// EmbeddedServer is a stub for non-NATS builds.
type EmbeddedServer struct {
	clientURL string
}

// NewEmbeddedServer is a stub for non-NATS builds.
func NewEmbeddedServer(_ *ServerConfig) (*EmbeddedServer, error) {
	return nil, ErrNATSNotEnabled
}

// ClientURL is a stub for non-NATS builds.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown is a stub for non-NATS builds.
func (s *EmbeddedServer) Shutdown(_ context.Context) error {
	return nil
}

// IsRunning is a stub for non-NATS builds.
func (s *EmbeddedServer) IsRunning() bool {
	return false
}

// JetStreamEnabled is a stub for non-NATS builds.
func (s *EmbeddedServer) JetStreamEnabled() bool {
	return false
}
