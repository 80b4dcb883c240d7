// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

/*
Package services adapts process components to suture.Service.

Each wrapper translates a component lifecycle (ListenAndServe, a run loop,
an externally started broker) into suture's context-aware Serve and names
itself through fmt.Stringer for supervisor logs.

  - HTTPServerService: *http.Server with graceful shutdown
  - WebSocketHubService: the channel hub's broadcast loop
  - BrokerService: the embedded NATS broker and its clients

The notification event consumer implements suture.Service itself and is
added to the tree directly.
*/
package services
