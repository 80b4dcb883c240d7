// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

/*
Package supervisor runs the long-lived parts of the process under a
thejerf/suture/v4 tree.

	castline (root)
	├── data-layer       embedded NATS broker
	├── messaging-layer  websocket hub, notification event consumer
	└── api-layer        HTTP server

Services that return an error are restarted with suture's backoff. Supervisor
events are logged through sutureslog on the slog adapter of the zerolog
logger:

	tree, _ := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	err := tree.Serve(ctx)

The wrappers live in the services subpackage.
*/
package supervisor
