// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package models

import "testing"

const (
	profileA = "aaaaaaaaaaaaaaaaaaaaaaaa"
	profileB = "bbbbbbbbbbbbbbbbbbbbbbbb"
)

func TestNotificationTypeValid(t *testing.T) {
	for _, nt := range NotificationTypes {
		if !nt.Valid() {
			t.Errorf("%s should be valid", nt)
		}
	}
	if NotificationType("NEW_FOLLOWER").Valid() {
		t.Error("unknown type should be invalid")
	}
}

func TestNotificationMarkReadBy(t *testing.T) {
	n := &Notification{Profiles: []string{profileA, profileB}}

	if !n.MarkReadBy(profileA) {
		t.Error("first MarkReadBy should report a change")
	}
	if n.MarkReadBy(profileA) {
		t.Error("second MarkReadBy should be a no-op")
	}
	if len(n.ReadBy) != 1 {
		t.Errorf("ReadBy = %v, want one entry", n.ReadBy)
	}
	if !n.IsReadBy(profileA) || n.IsReadBy(profileB) {
		t.Errorf("IsReadBy mismatch: %v", n.ReadBy)
	}
}

func TestNotificationCloneIsDeep(t *testing.T) {
	n := &Notification{Profiles: []string{profileA}, ReadBy: []string{}}
	c := n.Clone()
	c.Profiles[0] = profileB
	c.ReadBy = append(c.ReadBy, profileA)

	if n.Profiles[0] != profileA {
		t.Error("Clone shares Profiles with the original")
	}
	if len(n.ReadBy) != 0 {
		t.Error("Clone shares ReadBy with the original")
	}
}

func TestNotificationFilterMatches(t *testing.T) {
	read := &Notification{Type: NotificationNewMediaStar, ReadBy: []string{profileA}}
	unread := &Notification{Type: NotificationProjectUpdate}
	chat := &Notification{Type: NotificationNewChatMessage}

	yes, no := true, false
	tests := []struct {
		name   string
		filter NotificationFilter
		n      *Notification
		want   bool
	}{
		{"empty filter", NotificationFilter{}, read, true},
		{"read only keeps read", NotificationFilter{Read: &yes}, read, true},
		{"read only drops unread", NotificationFilter{Read: &yes}, unread, false},
		{"unread only keeps unread", NotificationFilter{Read: &no}, unread, true},
		{"type match", NotificationFilter{Type: NotificationProjectUpdate}, unread, true},
		{"type mismatch", NotificationFilter{Type: NotificationProjectUpdate}, read, false},
		{"excluded type", NotificationFilter{ExcludeTypes: ListingHiddenTypes}, chat, false},
	}
	for _, tt := range tests {
		if got := tt.filter.Matches(tt.n, profileA); got != tt.want {
			t.Errorf("%s: Matches() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestConversationHelpers(t *testing.T) {
	c := &Conversation{Type: ConversationProfessional, Profiles: []string{profileA, profileB}}

	if !c.HasParticipant(profileA) || c.HasParticipant("cccccccccccccccccccccccc") {
		t.Error("HasParticipant mismatch")
	}
	if others := c.Others(profileA); len(others) != 1 || others[0] != profileB {
		t.Errorf("Others(A) = %v, want [B]", others)
	}
	if c.Type.Slug() != "professional" {
		t.Errorf("Slug() = %q", c.Type.Slug())
	}
}
