// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package eventprocessor

import (
	"time"

	"github.com/tomtom215/castline/internal/config"
)

// StreamName is the JetStream stream holding notification requests.
const StreamName = "CASTLINE_NOTIFICATIONS"

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "castline.notifications"

// DefaultPoisonSubject receives events that exhausted their retries.
const DefaultPoisonSubject = "castline.notifications.dlq"

// ServerConfig holds embedded NATS server configuration.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// ServerConfigFrom builds the embedded server settings.
func ServerConfigFrom(cfg *config.NATSConfig) ServerConfig {
	return ServerConfig{
		Host:              cfg.Host,
		Port:              cfg.Port,
		StoreDir:          cfg.StoreDir,
		JetStreamMaxMem:   cfg.MaxMemory,
		JetStreamMaxStore: cfg.MaxStore,
	}
}

// PublisherConfig holds publisher configuration.
type PublisherConfig struct {
	URL              string
	Subject          string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool // nolint:revive // ID is correct per Go conventions
}

// DefaultPublisherConfig returns production defaults for publisher.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:              url,
		Subject:          DefaultSubject,
		MaxReconnects:    -1, // Unlimited
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024, // 8MB
		EnableTrackMsgID: true,
	}
}

// PublisherConfigFrom builds publisher settings from application config.
func PublisherConfigFrom(cfg *config.NATSConfig) PublisherConfig {
	pc := DefaultPublisherConfig(cfg.URL)
	if cfg.Subject != "" {
		pc.Subject = cfg.Subject
	}
	return pc
}

// SubscriberConfig holds subscriber configuration.
type SubscriberConfig struct {
	URL              string
	DurableName      string
	QueueGroup       string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	MaxDeliver       int
	MaxAckPending    int
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration
	// StreamName binds the subscriber to an existing stream instead of
	// auto-provisioning one.
	StreamName string
}

// DefaultSubscriberConfig returns production defaults for subscriber.
func DefaultSubscriberConfig(url string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		DurableName:      "castline-dispatcher",
		QueueGroup:       "dispatchers",
		SubscribersCount: 2,
		AckWaitTimeout:   30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    1000,
		CloseTimeout:     30 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		StreamName:       StreamName,
	}
}

// SubscriberConfigFrom builds subscriber settings from application config.
func SubscriberConfigFrom(cfg *config.NATSConfig) SubscriberConfig {
	sc := DefaultSubscriberConfig(cfg.URL)
	if cfg.DurableName != "" {
		sc.DurableName = cfg.DurableName
	}
	if cfg.QueueGroup != "" {
		sc.QueueGroup = cfg.QueueGroup
	}
	if cfg.SubscribersCount > 0 {
		sc.SubscribersCount = cfg.SubscribersCount
	}
	if cfg.AckWaitTimeout > 0 {
		sc.AckWaitTimeout = cfg.AckWaitTimeout
	}
	if cfg.MaxDeliver > 0 {
		sc.MaxDeliver = cfg.MaxDeliver
	}
	return sc
}

// StreamConfig defines the notification stream settings.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// DefaultStreamConfig returns the stream layout for subject.
func DefaultStreamConfig(subject string) StreamConfig {
	if subject == "" {
		subject = DefaultSubject
	}
	return StreamConfig{
		Name:            StreamName,
		Subjects:        []string{subject, subject + ".dlq"},
		MaxAge:          72 * time.Hour,
		MaxBytes:        1 << 30, // 1GB
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32        // Allowed in half-open state
	Interval         time.Duration // Reset interval for counts
	Timeout          time.Duration // Time to stay open
	FailureThreshold uint32        // Failures before opening
}

// DefaultCircuitBreakerConfig returns production defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}
