// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

/*
Package websocket implements the two live channels browsers hold open:

	/ws/notif  notification channel
	/ws/chat   chat channel

Connections authenticate with a bearer token in the "token" query parameter.
The token must be issued for the page origin (its subject equals the request
Origin header); anything else is answered with HTTP 401 before the upgrade,
so a rejected connection never touches the presence registry.

Key Components:

  - Hub: handle-addressed routing of events to open connections
  - Client: one connection with its read and write goroutines
  - Gateway: authentication, session registration and event routing

Every frame in both directions is a JSON object:

	{"type": "new-message", "data": {...}}

On the notification channel a new connection first receives a
"notifications" frame with the cached unread list, after which every
notification connection receives the refreshed "active-profiles" list.
Clients send "read-notification" (data: notification id) and "read-all".
The server answers a read with "read-notification" carrying the updated
notification to every notification connection of that profile.

On the chat channel clients send "add-message", "forward-message" and
"remove-message". The acting connection receives "add-success",
"forward-success" or "remove-success"; the other participant's connections
receive "new-message" or "removed-message". Failures are reported to the
acting connection as an "error" frame with {kind, message}.

Each connection is pinged periodically and dropped when pongs stop, when it
sends frames larger than the configured limit, or when its send queue
overflows. Inbound frames are rate limited per connection with a token
bucket; frames over the limit are answered with a "rate_limited" error.
*/
package websocket
