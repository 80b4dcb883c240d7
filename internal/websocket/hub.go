// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package websocket

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/castline/internal/logging"
	"github.com/tomtom215/castline/internal/metrics"
	"github.com/tomtom215/castline/internal/presence"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful path (SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// ErrHandleUnavailable is returned by Emit when a handle is closed or its
// send buffer is full.
var ErrHandleUnavailable = errors.New("websocket: handle unavailable")

// Message is one frame on the wire.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type kindBroadcast struct {
	kind presence.Kind
	msg  Message
}

// Hub tracks open connections by handle and routes events to them.
//
// Attach, Detach and Emit are synchronous so that a connection can be
// addressed as soon as it is attached. Broadcasts to every connection of a
// channel kind are queued and fanned out by RunWithContext.
type Hub struct {
	mu        sync.RWMutex
	clients   map[presence.HandleID]*Client
	broadcast chan kindBroadcast
	nextID    atomic.Uint64
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[presence.HandleID]*Client),
		broadcast: make(chan kindBroadcast, 256),
	}
}

// NewHandle returns a fresh, never reused handle id. Ids start at 1.
func (h *Hub) NewHandle() presence.HandleID {
	return presence.HandleID(h.nextID.Add(1))
}

// Attach makes c addressable by its handle.
func (h *Hub) Attach(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.WithLabelValues(string(c.kind)).Inc()
	logging.Debug().
		Uint64("handle", uint64(c.id)).
		Str("channel", string(c.kind)).
		Int("total_clients", total).
		Msg("websocket client attached")
}

// Detach removes c and closes its send queue. Detaching twice is a no-op.
func (h *Hub) Detach(c *Client) {
	h.mu.Lock()
	removed := h.removeLocked(c)
	total := len(h.clients)
	h.mu.Unlock()

	if removed {
		logging.Debug().
			Uint64("handle", uint64(c.id)).
			Str("channel", string(c.kind)).
			Int("total_clients", total).
			Msg("websocket client detached")
	}
}

func (h *Hub) removeLocked(c *Client) bool {
	if cur, ok := h.clients[c.id]; !ok || cur != c {
		return false
	}
	delete(h.clients, c.id)
	close(c.send)
	metrics.WSConnections.WithLabelValues(string(c.kind)).Dec()
	return true
}

// Emit queues event on every listed handle. Handles that are gone or whose
// queue is full are skipped and reported in the returned error; a full
// queue also detaches that client.
func (h *Hub) Emit(handles []presence.HandleID, event string, data any) error {
	msg := Message{Type: event, Data: data}
	var missing int
	var slow []*Client

	h.mu.RLock()
	for _, id := range handles {
		c, ok := h.clients[id]
		if !ok {
			missing++
			continue
		}
		select {
		case c.send <- msg:
			metrics.WSMessagesSent.WithLabelValues(string(c.kind)).Inc()
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	h.dropSlow(slow)
	if n := missing + len(slow); n > 0 {
		return fmt.Errorf("%w: %d of %d handles", ErrHandleUnavailable, n, len(handles))
	}
	return nil
}

// Broadcast queues event for every connection of kind. It never blocks; the
// event is dropped when the queue is full.
func (h *Hub) Broadcast(kind presence.Kind, event string, data any) {
	select {
	case h.broadcast <- kindBroadcast{kind: kind, msg: Message{Type: event, Data: data}}:
	default:
		metrics.WSErrors.WithLabelValues("broadcast_dropped").Inc()
		logging.Warn().Str("message_type", event).Msg("broadcast channel full, dropping message")
	}
}

// RunWithContext fans out queued broadcasts until ctx is done, then closes
// every client. It is meant to run under a supervisor.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Shutdown takes priority over pending broadcasts.
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case b := <-h.broadcast:
			h.broadcastToKind(b)
		}
	}
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.ClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// broadcastToKind delivers in handle order so that clients observe the same
// sequence on every run.
func (h *Hub) broadcastToKind(b kindBroadcast) {
	var slow []*Client

	h.mu.RLock()
	for _, id := range h.sortedHandlesLocked() {
		c := h.clients[id]
		if c.kind != b.kind {
			continue
		}
		select {
		case c.send <- b.msg:
			metrics.WSMessagesSent.WithLabelValues(string(c.kind)).Inc()
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	h.dropSlow(slow)
}

func (h *Hub) dropSlow(slow []*Client) {
	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range slow {
		if h.removeLocked(c) {
			metrics.WSErrors.WithLabelValues("slow_consumer").Inc()
			logging.Warn().Uint64("handle", uint64(c.id)).Msg("websocket client too slow, disconnecting")
		}
	}
}

func (h *Hub) sortedHandlesLocked() []presence.HandleID {
	ids := make([]presence.HandleID, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range h.sortedHandlesLocked() {
		h.removeLocked(h.clients[id])
	}
}

// ClientCount returns the number of attached connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
