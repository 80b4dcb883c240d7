// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

// Package readstate records notification acknowledgements and keeps every
// open notification session of the reader in step.
package readstate

import (
	"context"
	"errors"

	"github.com/tomtom215/castline/internal/apperrors"
	"github.com/tomtom215/castline/internal/logging"
	"github.com/tomtom215/castline/internal/metrics"
	"github.com/tomtom215/castline/internal/models"
	"github.com/tomtom215/castline/internal/presence"
	"github.com/tomtom215/castline/internal/store"
	"github.com/tomtom215/castline/internal/validation"
)

// Store is the persistence the synchronizer needs.
type Store interface {
	MarkNotificationRead(ctx context.Context, notificationID, profileID string) (*models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, profileID string) (int, error)
}

// Registry is the presence view the synchronizer needs.
type Registry interface {
	CacheRead(profileID, notificationID string) bool
	ClearUnread(profileID string) bool
	LiveHandles(profileID string, kind presence.Kind) []presence.HandleID
}

// Synchronizer marks notifications read.
type Synchronizer struct {
	store    Store
	registry Registry
	emitter  presence.Emitter
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(st Store, registry Registry, emitter presence.Emitter) *Synchronizer {
	return &Synchronizer{store: st, registry: registry, emitter: emitter}
}

// MarkRead adds profileID to the readers of one notification. Marking an
// already-read notification succeeds without change. A notification that
// does not target profileID is reported as not found.
func (s *Synchronizer) MarkRead(ctx context.Context, profileID, notificationID string) (*models.Notification, error) {
	const op = "readstate.MarkRead"
	if err := validation.ValidateVar(profileID, "required,mongodb"); err != nil {
		return nil, apperrors.Validation(op, "profile_id must be a valid object id")
	}
	if err := validation.ValidateVar(notificationID, "required,mongodb"); err != nil {
		return nil, apperrors.Validation(op, "notification_id must be a valid object id")
	}

	n, err := s.store.MarkNotificationRead(ctx, notificationID, profileID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound(op, "notification not found")
	}
	if err != nil {
		return nil, apperrors.Persistence(op, err)
	}
	metrics.RecordReadState("read")

	if s.registry.CacheRead(profileID, notificationID) {
		s.emit(ctx, profileID, models.EventReadNotification, n)
	}
	return n, nil
}

// MarkAllRead marks every notification targeting profileID read and returns
// how many changed.
func (s *Synchronizer) MarkAllRead(ctx context.Context, profileID string) (int, error) {
	const op = "readstate.MarkAllRead"
	if err := validation.ValidateVar(profileID, "required,mongodb"); err != nil {
		return 0, apperrors.Validation(op, "profile_id must be a valid object id")
	}

	changed, err := s.store.MarkAllNotificationsRead(ctx, profileID)
	if err != nil {
		return 0, apperrors.Persistence(op, err)
	}
	metrics.RecordReadState("read_all")

	if s.registry.ClearUnread(profileID) {
		s.emit(ctx, profileID, models.EventNotifications, []models.Notification{})
	}
	return changed, nil
}

func (s *Synchronizer) emit(ctx context.Context, profileID, event string, data any) {
	handles := s.registry.LiveHandles(profileID, presence.KindNotif)
	if len(handles) == 0 {
		return
	}
	if err := s.emitter.Emit(handles, event, data); err != nil {
		logging.Ctx(ctx).Debug().Err(err).
			Str("profile_id", profileID).
			Str("event", event).
			Msg("Read-state sync incomplete")
	}
}
