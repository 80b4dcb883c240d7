// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Presence Metrics
	PresenceOnlineProfiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_online_profiles",
			Help: "Current number of profiles with at least one open channel",
		},
	)

	PresenceHandles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "presence_handles",
			Help: "Current number of registered channel handles",
		},
		[]string{"channel"}, // notif, chat
	)

	PresenceUnreadLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_unread_loads_total",
			Help: "Total number of unread notification loads on first connect",
		},
		[]string{"result"}, // success, error
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
		[]string{"channel"},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"channel"},
	)

	WSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
		[]string{"channel"},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	WSAuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_auth_failures_total",
			Help: "Total number of WebSocket handshakes rejected for authentication",
		},
	)

	// Notification Dispatch Metrics
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatch_total",
			Help: "Total number of dispatch calls by result",
		},
		[]string{"result"}, // accepted, invalid, failed
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notification_dispatch_duration_seconds",
			Help:    "Duration of dispatch calls including fan-out",
			Buckets: prometheus.DefBuckets,
		},
	)

	DispatchDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_deliveries_total",
			Help: "Total number of per-target delivery outcomes",
		},
		[]string{"outcome"}, // live, pushed, skipped, failed
	)

	// Push Metrics
	PushRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_requests_total",
			Help: "Total number of web push requests",
		},
		[]string{"result"}, // success, failure
	)

	PushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "push_request_duration_seconds",
			Help:    "Duration of web push requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// Chat Metrics
	ChatOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_operations_total",
			Help: "Total number of chat relay operations",
		},
		[]string{"operation", "result"}, // send, forward, remove; success, error
	)

	ReadStateOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readstate_operations_total",
			Help: "Total number of read-state operations",
		},
		[]string{"operation"}, // read, read_all
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// NATS Event Metrics
	NATSMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_published_total",
			Help: "Total number of notification events published to NATS",
		},
	)

	NATSMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_consumed_total",
			Help: "Total number of notification events consumed from NATS",
		},
	)

	NATSMessagesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_processed_total",
			Help: "Total number of notification events dispatched successfully",
		},
	)

	NATSMessagesParseFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_parse_failed_total",
			Help: "Total number of notification events that failed to decode or validate",
		},
	)

	NATSProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nats_processing_duration_seconds",
			Help:    "Duration of notification event processing",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Authorization Metrics
	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"object", "action", "result"},
	)

	AuthzCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authz_cache_hits_total",
			Help: "Total number of authorization decisions served from cache",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordDispatch records the result of one Dispatch call.
func RecordDispatch(result string, duration time.Duration) {
	DispatchTotal.WithLabelValues(result).Inc()
	DispatchDuration.Observe(duration.Seconds())
}

// RecordDelivery records one per-target delivery outcome.
func RecordDelivery(outcome string) {
	DispatchDeliveries.WithLabelValues(outcome).Inc()
}

// RecordPush records a web push request.
func RecordPush(duration time.Duration, err error) {
	PushDuration.Observe(duration.Seconds())
	if err != nil {
		PushRequests.WithLabelValues("failure").Inc()
		return
	}
	PushRequests.WithLabelValues("success").Inc()
}

// RecordChatOperation records a chat relay operation.
func RecordChatOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	ChatOperations.WithLabelValues(operation, result).Inc()
}

// RecordReadState records a read-state operation.
func RecordReadState(operation string) {
	ReadStateOperations.WithLabelValues(operation).Inc()
}

// RecordCircuitBreakerTransition records a breaker state change and sets the
// state gauge. States are gobreaker state names.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(CircuitBreakerStateValue(to))
}

// CircuitBreakerStateValue maps a state name to the gauge value:
// 0 closed, 1 half-open, 2 open, -1 anything else.
func CircuitBreakerStateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}

// RecordNATSPublish records a message being published to NATS
func RecordNATSPublish() {
	NATSMessagesPublished.Inc()
}

// RecordNATSConsume records a message being consumed from NATS
func RecordNATSConsume() {
	NATSMessagesConsumed.Inc()
}

// RecordNATSProcessed records a message being successfully processed
func RecordNATSProcessed() {
	NATSMessagesProcessed.Inc()
}

// RecordNATSParseFailed records a message that failed to parse
func RecordNATSParseFailed() {
	NATSMessagesParseFailed.Inc()
}

// RecordNATSProcessingDuration records the duration of message processing
func RecordNATSProcessingDuration(duration time.Duration) {
	NATSProcessingDuration.Observe(duration.Seconds())
}

// RecordAuthzDecision records an authorization decision.
func RecordAuthzDecision(object, action string, allowed, cacheHit bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	AuthzDecisions.WithLabelValues(object, action, result).Inc()
	if cacheHit {
		AuthzCacheHits.Inc()
	}
}
