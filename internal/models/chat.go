// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package models

import (
	"slices"
	"strings"
	"time"
)

// ConversationType separates personal chats from work chats in the client.
type ConversationType string

const (
	ConversationPersonal     ConversationType = "PERSONAL"
	ConversationProfessional ConversationType = "PROFESSIONAL"
)

// ConversationTypes lists every valid ConversationType.
var ConversationTypes = []ConversationType{ConversationPersonal, ConversationProfessional}

// Valid reports whether t is a known type.
func (t ConversationType) Valid() bool {
	return slices.Contains(ConversationTypes, t)
}

// Slug is the lowercase form used in client routes.
func (t ConversationType) Slug() string {
	return strings.ToLower(string(t))
}

// LinkType names the entity a chat message can share.
type LinkType string

const (
	LinkMedia   LinkType = "media"
	LinkProject LinkType = "project"
	LinkJob     LinkType = "job"
)

// Valid reports whether t is a shareable entity kind.
func (t LinkType) Valid() bool {
	return t == LinkMedia || t == LinkProject || t == LinkJob
}

// Link attaches a shared entity to a chat message.
type Link struct {
	Type LinkType `json:"type" validate:"required,linktype"`
	Ref  string   `json:"ref" validate:"required,mongodb"`
}

// SharedBody replaces an empty message body when the message only carries a link.
const SharedBody = "shared"

// Message is one chat message. It can only be deleted by its sender.
type Message struct {
	ID           string    `json:"id"`
	Conversation string    `json:"conversation"`
	Profile      string    `json:"profile"`
	Body         string    `json:"message"`
	Link         *Link     `json:"link,omitempty"`
	Date         time.Time `json:"date"`
}

// Conversation is a two-party chat. Messages holds message ids in append order.
type Conversation struct {
	ID        string           `json:"id"`
	Type      ConversationType `json:"type"`
	Profiles  []string         `json:"profiles"`
	Messages  []string         `json:"messages"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// HasParticipant reports whether profileID is one of the two participants.
func (c *Conversation) HasParticipant(profileID string) bool {
	return slices.Contains(c.Profiles, profileID)
}

// Others returns every participant except profileID.
func (c *Conversation) Others(profileID string) []string {
	out := make([]string, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		if p != profileID {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns a deep copy.
func (c *Conversation) Clone() Conversation {
	cp := *c
	cp.Profiles = slices.Clone(c.Profiles)
	cp.Messages = slices.Clone(c.Messages)
	return cp
}
