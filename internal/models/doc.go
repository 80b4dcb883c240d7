// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

/*
Package models defines the documents and wire payloads shared across Castline.

Documents:

  - Profile: the read side of a user record (connections, blocks, push subscriptions)
  - Notification: one persisted notification with its targets and readers
  - Conversation and Message: chat documents
  - Session: a server-side login record checked by the auth middleware

Wire vocabulary:

  - Event names emitted on the notif and chat channels (events.go)
  - NotificationType and ConversationType enumerations

Identifiers are 24-character hex object ids (NewObjectID). Every document
carries JSON tags matching the REST and channel payloads.
*/
package models
