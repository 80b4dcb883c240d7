// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/castline/internal/eventprocessor"
	"github.com/tomtom215/castline/internal/presence"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status        string                       `json:"status"`
	Uptime        float64                      `json:"uptime_seconds"`
	Presence      presence.Stats               `json:"presence"`
	OpenChannels  int                          `json:"open_channels"`
	EventConsumer *eventprocessor.HandlerStats `json:"event_consumer,omitempty"`

	// PublisherCircuit is the event publisher breaker state when one is set.
	PublisherCircuit string `json:"publisher_circuit,omitempty"`
}

// CircuitReporter is implemented by publishers guarded by a circuit breaker.
type CircuitReporter interface {
	CircuitState() string
}

// Health reports online profiles, open handles, event consumer counters and
// the publisher breaker. An open breaker reports "degraded" with status 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status: "healthy",
		Uptime: time.Since(h.startTime).Seconds(),
	}
	if h.presence != nil {
		status.Presence = h.presence.Stats()
	}
	if h.clients != nil {
		status.OpenChannels = h.clients.ClientCount()
	}
	if h.consumer != nil {
		stats := h.consumer.Stats()
		status.EventConsumer = &stats
	}
	if cr, ok := h.publisher.(CircuitReporter); ok {
		status.PublisherCircuit = cr.CircuitState()
		if status.PublisherCircuit == "open" {
			status.Status = "degraded"
		}
	}
	NewResponseWriter(w, r).Success(status)
}
