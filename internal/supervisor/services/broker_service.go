// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/castline/internal/logging"
)

// ErrBrokerStopped is returned when the broker stops while still supervised.
var ErrBrokerStopped = errors.New("event broker stopped unexpectedly")

// Broker is satisfied by *eventprocessor.EmbeddedServer.
type Broker interface {
	Shutdown(ctx context.Context) error
	IsRunning() bool
}

// BrokerService owns the shutdown of the embedded event broker and the
// clients connected to it. The broker is started before the tree so that
// publishers and subscribers can connect during wiring; this service only
// watches it and tears everything down in order when the tree stops.
//
// Clients are closed before the broker, in the order given.
type BrokerService struct {
	broker          Broker
	clients         []io.Closer
	checkInterval   time.Duration
	shutdownTimeout time.Duration
	name            string
}

// NewBrokerService creates a BrokerService.
func NewBrokerService(broker Broker, shutdownTimeout time.Duration, clients ...io.Closer) *BrokerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &BrokerService{
		broker:          broker,
		clients:         clients,
		checkInterval:   5 * time.Second,
		shutdownTimeout: shutdownTimeout,
		name:            "event-broker",
	}
}

// Serve implements suture.Service. A broker that stops on its own cannot be
// restarted in place; the service then stops with suture.ErrDoNotRestart and
// the rest of the tree keeps serving without the event stream.
func (s *BrokerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()
		case <-ticker.C:
			if !s.broker.IsRunning() {
				logging.Error().Err(ErrBrokerStopped).Str("service", s.name).Msg("Embedded event broker is no longer running")
				return suture.ErrDoNotRestart
			}
		}
	}
}

func (s *BrokerService) shutdown() {
	for _, c := range s.clients {
		if err := c.Close(); err != nil {
			logging.Warn().Err(err).Str("service", s.name).Msg("Failed to close event stream client")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.broker.Shutdown(ctx); err != nil {
		logging.Warn().Err(err).Str("service", s.name).Msg("Event broker shutdown did not complete")
	}
}

// String implements fmt.Stringer for suture's logs.
func (s *BrokerService) String() string {
	return s.name
}
