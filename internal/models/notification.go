// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package models

import (
	"slices"
	"time"
)

// NotificationType enumerates the kinds of notification the platform raises.
type NotificationType string

const (
	NotificationConnectionRequest   NotificationType = "CONNECTION_REQUEST"
	NotificationJobUpdate           NotificationType = "JOB_UPDATE"
	NotificationNewChatMessage      NotificationType = "NEW_CHAT_MESSAGE"
	NotificationNewMediaComment     NotificationType = "NEW_MEDIA_COMMENT"
	NotificationNewMediaCommentStar NotificationType = "NEW_MEDIA_COMMENT_STAR"
	NotificationNewMediaStar        NotificationType = "NEW_MEDIA_STAR"
	NotificationProjectAdmin        NotificationType = "PROJECT_ADMIN"
	NotificationProjectFollow       NotificationType = "PROJECT_FOLLOW"
	NotificationProjectInvite       NotificationType = "PROJECT_INVITE"
	NotificationProjectUpdate       NotificationType = "PROJECT_UPDATE"
)

// NotificationTypes lists every valid NotificationType.
var NotificationTypes = []NotificationType{
	NotificationConnectionRequest,
	NotificationJobUpdate,
	NotificationNewChatMessage,
	NotificationNewMediaComment,
	NotificationNewMediaCommentStar,
	NotificationNewMediaStar,
	NotificationProjectAdmin,
	NotificationProjectFollow,
	NotificationProjectInvite,
	NotificationProjectUpdate,
}

// Valid reports whether t is a known type.
func (t NotificationType) Valid() bool {
	return slices.Contains(NotificationTypes, t)
}

// ListingHiddenTypes are excluded from the notification listing endpoint;
// clients surface them elsewhere (chat badge, connection and invite inboxes).
var ListingHiddenTypes = []NotificationType{
	NotificationNewChatMessage,
	NotificationConnectionRequest,
	NotificationProjectInvite,
}

// Notification is a persisted event addressed to one or more profiles.
//
// Message is a template: "@{profile:<id>} has starred your media @{media:<id>}".
// Only ReadBy changes after creation.
type Notification struct {
	ID                     string           `json:"id" validate:"omitempty,mongodb"`
	Profiles               []string         `json:"profiles" validate:"required,min=1,dive,mongodb"`
	Type                   NotificationType `json:"type" validate:"required,notiftype"`
	Message                string           `json:"message" validate:"required"`
	Action                 string           `json:"action,omitempty"`
	MentionedProfiles      []string         `json:"mentioned_profiles,omitempty" validate:"omitempty,dive,mongodb"`
	MentionedProjects      []string         `json:"mentioned_projects,omitempty" validate:"omitempty,dive,mongodb"`
	MentionedMedia         []string         `json:"mentioned_media,omitempty" validate:"omitempty,dive,mongodb"`
	MentionedJobs          []string         `json:"mentioned_jobs,omitempty" validate:"omitempty,dive,mongodb"`
	MentionedConversations []string         `json:"mentioned_conversations,omitempty" validate:"omitempty,dive,mongodb"`
	ReadBy                 []string         `json:"read_by"`
	Date                   time.Time        `json:"date"`
}

// Targets reports whether profileID is one of the notification's recipients.
func (n *Notification) Targets(profileID string) bool {
	return slices.Contains(n.Profiles, profileID)
}

// IsReadBy reports whether profileID has acknowledged the notification.
func (n *Notification) IsReadBy(profileID string) bool {
	return slices.Contains(n.ReadBy, profileID)
}

// MarkReadBy adds profileID to ReadBy. It returns false if already present.
func (n *Notification) MarkReadBy(profileID string) bool {
	if n.IsReadBy(profileID) {
		return false
	}
	n.ReadBy = append(n.ReadBy, profileID)
	return true
}

// Clone returns a deep copy. Cached snapshots are cloned on the way in and
// out of the presence registry so that callers never share slices.
func (n *Notification) Clone() Notification {
	c := *n
	c.Profiles = slices.Clone(n.Profiles)
	c.MentionedProfiles = slices.Clone(n.MentionedProfiles)
	c.MentionedProjects = slices.Clone(n.MentionedProjects)
	c.MentionedMedia = slices.Clone(n.MentionedMedia)
	c.MentionedJobs = slices.Clone(n.MentionedJobs)
	c.MentionedConversations = slices.Clone(n.MentionedConversations)
	c.ReadBy = slices.Clone(n.ReadBy)
	return c
}

// NotificationFilter narrows a notification listing.
type NotificationFilter struct {
	// Read selects read (true) or unread (false) notifications; nil selects both.
	Read *bool
	// Type selects a single type; empty selects all.
	Type NotificationType
	// ExcludeTypes drops the listed types.
	ExcludeTypes []NotificationType
}

// Matches reports whether n passes the filter for profileID.
func (f NotificationFilter) Matches(n *Notification, profileID string) bool {
	if f.Read != nil && n.IsReadBy(profileID) != *f.Read {
		return false
	}
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	return !slices.Contains(f.ExcludeTypes, n.Type)
}
