// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package eventprocessor

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/castline/internal/models"
)

// SchemaVersion is the current envelope schema version.
const SchemaVersion = 1

// Source names of the services that publish notification events.
const (
	SourceAPI       = "api"
	SourceJobs      = "jobs"
	SourceMedia     = "media"
	SourceProjects  = "projects"
	SourceProfiles  = "profiles"
	SourceChat      = "chat"
	SourceScheduler = "scheduler"
)

// NotificationEvent is the envelope other services publish to request a
// notification.
type NotificationEvent struct {
	SchemaVersion int                 `json:"schema_version,omitempty"`
	EventID       string              `json:"event_id"`
	Source        string              `json:"source"`
	Timestamp     time.Time           `json:"timestamp"`
	Notification  models.Notification `json:"notification"`
}

// NewNotificationEvent wraps n in an envelope with a fresh event id.
func NewNotificationEvent(source string, n models.Notification) *NotificationEvent {
	return &NotificationEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		Source:        source,
		Timestamp:     time.Now().UTC(),
		Notification:  n,
	}
}

// GetSchemaVersion returns the schema version, defaulting to 1 for
// envelopes without one.
func (e *NotificationEvent) GetSchemaVersion() int {
	if e.SchemaVersion == 0 {
		return 1
	}
	return e.SchemaVersion
}

// Validate checks the envelope fields. The notification itself is
// validated by the dispatcher.
func (e *NotificationEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.Source == "" {
		return &ValidationError{Field: "source", Message: "required"}
	}
	if e.GetSchemaVersion() > SchemaVersion {
		return &ValidationError{Field: "schema_version", Message: "unsupported"}
	}
	return nil
}

// NotificationWithID returns the notification, assigning an id derived from
// the event id when it has none. Redeliveries of the same event therefore
// map to the same notification.
func (e *NotificationEvent) NotificationWithID() models.Notification {
	n := e.Notification
	if n.ID == "" {
		n.ID = DeriveObjectID(e.EventID)
	}
	return n
}

// DeriveObjectID maps an arbitrary key to a stable 24-hex object id.
func DeriveObjectID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:12])
}

// ValidationError represents an envelope field error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
