// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

/*
Package notify persists notifications and fans them out to their targets.

Dispatch validates a notification, writes it once, and then handles every
target independently:

  - Online targets (at least one open session in the presence registry) get
    the notification appended to their cached unread list and a
    new-notification event on every notification channel handle. They are
    never sent a push.
  - Offline targets with a stored push subscription receive a Web Push whose
    title is the rendered summary of the notification.
  - Offline targets without a subscription, and notification types that have
    no summary, are skipped.

A failure for one target is logged and counted but never affects the others
or the caller. Only validation and persistence failures are returned.

# Summaries

Notification messages are templates that mention entities by id:

	@{profile:5f1d7c...} has starred your media @{media:60aa31...}

The Renderer resolves the first mentioned profile, project, media and job,
depending on the notification type, and substitutes their display names.
A placeholder whose kind has no resolved value renders as "null".
*/
package notify
