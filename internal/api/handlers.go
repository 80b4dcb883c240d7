// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/castline/internal/auth"
	"github.com/tomtom215/castline/internal/chat"
	"github.com/tomtom215/castline/internal/eventprocessor"
	"github.com/tomtom215/castline/internal/models"
	"github.com/tomtom215/castline/internal/notify"
	"github.com/tomtom215/castline/internal/presence"
	"github.com/tomtom215/castline/internal/store"
)

// Notifier dispatches a notification synchronously.
type Notifier interface {
	Dispatch(ctx context.Context, n models.Notification) (*notify.Result, error)
}

// EventPublisher queues a notification on the event stream.
type EventPublisher interface {
	PublishNotification(ctx context.Context, event *eventprocessor.NotificationEvent) error
}

// ReadState marks notifications read and syncs open tabs.
type ReadState interface {
	MarkRead(ctx context.Context, profileID, notificationID string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, profileID string) (int, error)
}

// ChatRelay is the HTTP entry point into chat.
type ChatRelay interface {
	Send(ctx context.Context, req chat.SendRequest) (*models.Message, error)
	Remove(ctx context.Context, messageID, requesterID string, origin presence.HandleID) (*models.Message, error)
}

// PresenceStats reports registry counts.
type PresenceStats interface {
	Stats() presence.Stats
}

// ClientCounter reports open channel connections.
type ClientCounter interface {
	ClientCount() int
}

// ConsumerStats reports event consumer counters.
type ConsumerStats interface {
	Stats() eventprocessor.HandlerStats
}

// HandlerDeps are the collaborators of a Handler. Publisher and Consumer
// are nil when the event stream is disabled.
type HandlerDeps struct {
	Store     store.Store
	Notifier  Notifier
	Publisher EventPublisher
	Reads     ReadState
	Chat      ChatRelay
	Presence  PresenceStats
	Clients   ClientCounter
	Consumer  ConsumerStats
}

// Handler serves the REST endpoints.
//
// Handler methods are split across files:
//   - handlers_notifications.go: listing, read state, push subscription, dispatch
//   - handlers_conversations.go: conversations and messages
//   - handlers_health.go: health report
type Handler struct {
	store     store.Store
	notifier  Notifier
	publisher EventPublisher
	reads     ReadState
	chat      ChatRelay
	presence  PresenceStats
	clients   ClientCounter
	consumer  ConsumerStats
	startTime time.Time
}

// NewHandler creates a Handler.
func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		store:     deps.Store,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		reads:     deps.Reads,
		chat:      deps.Chat,
		presence:  deps.Presence,
		clients:   deps.Clients,
		consumer:  deps.Consumer,
		startTime: time.Now(),
	}
}

// caller returns the authenticated identity, writing 401 when absent.
func caller(rw *ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok || id.ProfileID == "" {
		rw.Unauthorized("authentication required")
		return auth.Identity{}, false
	}
	return id, true
}

// requireSelf checks that the {id} path parameter names the caller.
func requireSelf(rw *ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := caller(rw, r)
	if !ok {
		return id, false
	}
	if chi.URLParam(r, "id") != id.ProfileID {
		rw.Forbidden("profile does not match token")
		return id, false
	}
	return id, true
}
