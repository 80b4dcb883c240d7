// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package models

// Event names carried in the "type" field of channel frames.
const (
	// Notification channel, server to client.
	EventNotifications    = "notifications"
	EventNewNotification  = "new-notification"
	EventReadNotification = "read-notification"
	EventActiveProfiles   = "active-profiles"

	// Notification channel, client to server. read-notification is shared.
	EventReadAll = "read-all"

	// Chat channel, client to server.
	EventAddMessage     = "add-message"
	EventForwardMessage = "forward-message"
	EventRemoveMessage  = "remove-message"

	// Chat channel, server to client.
	EventNewMessage     = "new-message"
	EventAddSuccess     = "add-success"
	EventForwardSuccess = "forward-success"
	EventRemoveSuccess  = "remove-success"
	EventRemovedMessage = "removed-message"

	// Both channels.
	EventError = "error"
	EventPing  = "ping"
	EventPong  = "pong"
)

// ErrorPayload is the data of an error event.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// Ref names the item an error is about, e.g. one conversation of a forward.
	Ref string `json:"ref,omitempty"`
}
