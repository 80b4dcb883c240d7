// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

/*
Package metrics defines the Prometheus metrics exported at /metrics.

All collectors are registered with the default registry through promauto.

API Metrics:
  - api_requests_total{method, endpoint, status_code}
  - api_request_duration_seconds{method, endpoint}
  - api_active_requests
  - api_rate_limit_hits_total{endpoint}

Presence Metrics:
  - presence_online_profiles
  - presence_handles{channel}
  - presence_unread_loads_total{result}

WebSocket Metrics:
  - websocket_connections{channel}
  - websocket_messages_sent_total{channel}
  - websocket_messages_received_total{channel}
  - websocket_errors_total{error_type}
  - websocket_auth_failures_total

Delivery Metrics:
  - notification_dispatch_total{result}
  - notification_dispatch_duration_seconds
  - notification_deliveries_total{outcome}
  - push_requests_total{result}
  - push_request_duration_seconds
  - chat_operations_total{operation, result}
  - readstate_operations_total{operation}

Circuit Breaker and NATS metrics follow the same naming.
*/
package metrics
