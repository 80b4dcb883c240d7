// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package store

import (
	"slices"
	"strings"
	"time"

	"github.com/tomtom215/castline/internal/models"
)

func prepareNotification(n *models.Notification, now time.Time) {
	if n.ID == "" {
		n.ID = models.NewObjectID()
	}
	if n.Date.IsZero() {
		n.Date = now.UTC()
	}
	if n.ReadBy == nil {
		n.ReadBy = []string{}
	}
}

func prepareConversation(c *models.Conversation, now time.Time) {
	if c.ID == "" {
		c.ID = models.NewObjectID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now.UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	if c.Messages == nil {
		c.Messages = []string{}
	}
}

func prepareMessage(m *models.Message, now time.Time) {
	if m.ID == "" {
		m.ID = models.NewObjectID()
	}
	if m.Date.IsZero() {
		m.Date = now.UTC()
	}
}

// mergePushSubscription keeps the original creation time of prev.
func mergePushSubscription(prev, next *models.PushSubscription, now time.Time) models.PushSubscription {
	out := *next
	out.UpdatedAt = now.UTC()
	if prev != nil && !prev.CreatedAt.IsZero() {
		out.CreatedAt = prev.CreatedAt
	} else {
		out.CreatedAt = out.UpdatedAt
	}
	return out
}

// pairKey is the order-independent key of a participant set.
func pairKey(profiles []string) string {
	sorted := slices.Clone(profiles)
	slices.Sort(sorted)
	return strings.Join(sorted, ":")
}

// sortNotifications orders newest first, ties broken by id descending.
func sortNotifications(ns []models.Notification) {
	slices.SortFunc(ns, func(a, b models.Notification) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
}

func sortConversations(cs []models.Conversation) {
	slices.SortFunc(cs, func(a, b models.Conversation) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
}
