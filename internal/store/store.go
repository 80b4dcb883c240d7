// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

// Package store persists the documents the delivery core reads and writes:
// profiles and the entities they mention, notifications, push subscriptions,
// conversations, chat messages and login sessions.
//
// Two implementations exist. BadgerStore keeps JSON documents in BadgerDB
// with secondary index keys; MemoryStore keeps them in maps and backs tests
// and STORE_BACKEND=memory.
//
// Create methods assign a fresh object id and timestamp when the document
// does not carry one. Returned documents are copies; mutating them does not
// change stored state.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/castline/internal/models"
)

var (
	// ErrNotFound is returned when a document does not exist or is outside
	// the caller's scope (e.g. a notification that does not target the reader).
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("store: already exists")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store: closed")
)

// Directory resolves profiles and the entities notifications mention.
type Directory interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	PutProfile(ctx context.Context, p *models.Profile) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	PutProject(ctx context.Context, p *models.Project) error
	GetMedia(ctx context.Context, id string) (*models.Media, error)
	PutMedia(ctx context.Context, m *models.Media) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	PutJob(ctx context.Context, j *models.Job) error
}

// Notifications persists notifications and their read state.
type Notifications interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, id string) (*models.Notification, error)
	// ListNotifications returns notifications targeting profileID, newest first.
	ListNotifications(ctx context.Context, profileID string, filter models.NotificationFilter) ([]models.Notification, error)
	// UnreadNotifications returns notifications targeting profileID that it
	// has not read, newest first.
	UnreadNotifications(ctx context.Context, profileID string) ([]models.Notification, error)
	// MarkNotificationRead adds profileID to read_by. ErrNotFound when the
	// notification does not exist or does not target profileID.
	MarkNotificationRead(ctx context.Context, notificationID, profileID string) (*models.Notification, error)
	// MarkAllNotificationsRead adds profileID to read_by of every notification
	// targeting it and returns how many changed.
	MarkAllNotificationsRead(ctx context.Context, profileID string) (int, error)
}

// PushSubscriptions persists one web push subscription per profile.
type PushSubscriptions interface {
	GetPushSubscription(ctx context.Context, profileID string) (*models.PushSubscription, error)
	UpsertPushSubscription(ctx context.Context, sub *models.PushSubscription) (*models.PushSubscription, error)
}

// Conversations persists conversations and their messages.
type Conversations interface {
	// CreateConversation returns ErrConflict if the pair already has one.
	CreateConversation(ctx context.Context, c *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	// ListConversations returns conversations of profileID, most recently
	// updated first. An empty ctype selects all types.
	ListConversations(ctx context.Context, profileID string, ctype models.ConversationType) ([]models.Conversation, error)
	// AppendMessage stores m and appends its id to its conversation in one
	// write, returning the updated conversation.
	AppendMessage(ctx context.Context, m *models.Message) (*models.Conversation, error)
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	// ListMessages returns the messages of a conversation in append order.
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	// DeleteMessage removes a message authored by profileID and pulls it from
	// its conversation. ErrNotFound when absent or authored by someone else.
	DeleteMessage(ctx context.Context, messageID, profileID string) (*models.Message, *models.Conversation, error)
}

// Sessions persists login sessions keyed by token jti.
type Sessions interface {
	PutSession(ctx context.Context, s *models.Session) error
	// TouchSession updates last_active_on. ErrNotFound when absent.
	TouchSession(ctx context.Context, jti string, now time.Time) (*models.Session, error)
}

// Store is the full persistence surface.
type Store interface {
	Directory
	Notifications
	PushSubscriptions
	Conversations
	Sessions
	Close() error
}

// Open returns the backend named by backend ("badger" or "memory").
func Open(backend, path string, syncWrites bool) (Store, error) {
	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "badger":
		return OpenBadger(BadgerOptions{Path: path, SyncWrites: syncWrites})
	default:
		return nil, errors.New("store: unknown backend " + backend)
	}
}
