// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package models

import (
	"slices"
	"time"
)

// Profile is the slice of a platform profile that presence and chat need.
type Profile struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	ProfilePicture  string   `json:"profile_picture,omitempty"`
	Roles           []string `json:"roles,omitempty"`
	BlockedProfiles []string `json:"blocked_profiles,omitempty"`
	Connections     []string `json:"connections,omitempty"`
}

// HasBlocked reports whether p blocked other.
func (p *Profile) HasBlocked(other string) bool {
	return slices.Contains(p.BlockedProfiles, other)
}

// IsConnectedTo reports whether other is in p's connections.
func (p *Profile) IsConnectedTo(other string) bool {
	return slices.Contains(p.Connections, other)
}

// Project, Media and Job carry the display names interpolated into push summaries.
type Project struct {
	ID    string `json:"id"`
	Title string `json:"project_title"`
}

type Media struct {
	ID      string `json:"id"`
	Caption string `json:"caption"`
}

type Job struct {
	ID           string `json:"id"`
	ProjectTitle string `json:"project_title"`
}

// PushKeys are the client keys of a web push subscription.
type PushKeys struct {
	P256dh string `json:"p256dh" validate:"required"`
	Auth   string `json:"auth" validate:"required"`
}

// WebPushSubscription is the browser PushSubscription JSON.
type WebPushSubscription struct {
	Endpoint       string   `json:"endpoint" validate:"required,url"`
	ExpirationTime *int64   `json:"expirationTime"`
	Keys           PushKeys `json:"keys"`
}

// PushSubscription binds a browser subscription to a profile. One per profile.
type PushSubscription struct {
	Profile      string              `json:"profile"`
	Subscription WebPushSubscription `json:"subscription"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Session is a login session referenced by a token's jti.
type Session struct {
	JTI          string    `json:"jti"`
	Profile      string    `json:"profile"`
	LastActiveOn time.Time `json:"last_active_on"`
}
