// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

/*
Package logging provides the process-wide zerolog logger for Castline.

Every package logs through the helpers in this package instead of holding its
own logger. The logger is configured once from main:

	logging.Init(logging.Config{
	    Level:  cfg.Logging.Level,
	    Format: cfg.Logging.Format,
	    Caller: cfg.Logging.Caller,
	})

and used with structured fields:

	logging.Info().Str("profile_id", id).Int("handles", n).Msg("profile online")

# Request Context

HTTP middleware stores a request id in the request context. Handlers and the
services they call pick it up with Ctx:

	logging.Ctx(r.Context()).Warn().Err(err).Msg("dispatch failed")

# Adapters

Two libraries in the stack expect their own logger interfaces:

  - thejerf/sutureslog wants a *slog.Logger: use NewSlogLogger
  - watermill wants a watermill.LoggerAdapter: use NewWatermillLogger

Both forward to the zerolog logger so that all output shares one format.

# Tests

Packages silence logging in tests with an init function:

	func init() {
	    logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
	}
*/
package logging
