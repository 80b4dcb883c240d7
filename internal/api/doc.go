// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

/*
Package api serves the REST surface of the delivery core on a chi router.

Routes:

	GET    /health                               presence, consumer counters, publisher breaker
	GET    /metrics                              Prometheus exposition
	GET    /ws/notif, /ws/chat                   duplex channels (token query parameter)
	GET    /api/v1/profiles/{id}/notifications   caller's notifications, newest first
	GET    /api/v1/profiles/{id}/conversations   caller's conversations
	POST   /api/v1/profiles/{id}/conversations   open a conversation with a connection
	POST   /api/v1/notifications                 dispatch (ADMIN or SERVICE role)
	POST   /api/v1/notifications/subscribe       store the caller's push subscription
	POST   /api/v1/notifications/{id}/read       mark one notification read
	POST   /api/v1/notifications/read-all        mark every notification read
	GET    /api/v1/conversations/{id}/messages   messages of a conversation
	POST   /api/v1/conversations/{id}/messages   send a message
	DELETE /api/v1/messages/{id}                 remove a message the caller sent

Every /api/v1 route requires a bearer token whose subject matches the
request Origin. Responses use the APIResponse envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}
	{"success": false, "error": {"code": "NOT_FOUND", "message": "..."}}

Classified errors map to statuses in ResponseWriter.FromError.
*/
package api
