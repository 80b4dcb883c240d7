// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

/*
Package middleware provides HTTP middleware shared by the API router.

Key Components:

  - RequestID: UUID-based request tracking, propagated into log context
  - PrometheusMetrics: request counts and latency labelled by chi route pattern
  - AccessLog: one zerolog line per request

Middleware Stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog)

The response wrappers forward http.Hijacker, so the websocket endpoints can
be mounted behind the same stack.
*/
package middleware
