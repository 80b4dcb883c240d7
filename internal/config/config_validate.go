// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	minJWTSecretLength   = 32
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

// Validate returns the first configuration problem found.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateSecurity,
		c.validateWebSocket,
		c.validatePush,
		c.validateStore,
		c.validateNATS,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if c.Security.JWTIssuer == "" {
		return fmt.Errorf("JWT_ISSUER is required")
	}
	if c.IsProduction() && c.hasWildcardCORS() {
		return fmt.Errorf("CORS_ORIGINS=* is not allowed when ENVIRONMENT=production; list the allowed origins")
	}
	return c.validateRateLimits()
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS reports a wildcard origin list outside production.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS()
}

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

func (c *Config) validateWebSocket() error {
	ws := c.WebSocket
	if ws.ReadBufferSize <= 0 || ws.WriteBufferSize <= 0 {
		return fmt.Errorf("WS_READ_BUFFER_SIZE and WS_WRITE_BUFFER_SIZE must be positive")
	}
	if ws.WriteWait <= 0 {
		return fmt.Errorf("WS_WRITE_WAIT must be positive")
	}
	if ws.PongWait <= ws.WriteWait {
		return fmt.Errorf("WS_PONG_WAIT (%v) must be greater than WS_WRITE_WAIT (%v)", ws.PongWait, ws.WriteWait)
	}
	if ws.MaxMessageSize < 1024 {
		return fmt.Errorf("WS_MAX_MESSAGE_SIZE must be at least 1024 bytes")
	}
	if ws.SendBuffer < 1 {
		return fmt.Errorf("WS_SEND_BUFFER must be at least 1")
	}
	if ws.InboundRate <= 0 || ws.InboundBurst < 1 {
		return fmt.Errorf("WS_INBOUND_RATE must be positive and WS_INBOUND_BURST at least 1")
	}
	return nil
}

var validUrgencies = map[string]bool{
	"very-low": true,
	"low":      true,
	"normal":   true,
	"high":     true,
}

func (c *Config) validatePush() error {
	if !c.Push.Enabled {
		return nil
	}
	if c.Push.VAPIDPublicKey == "" || c.Push.VAPIDPrivateKey == "" {
		return fmt.Errorf("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY are required when PUSH_ENABLED=true")
	}
	if c.Push.Subscriber == "" {
		return fmt.Errorf("VAPID_SUBSCRIBER is required when PUSH_ENABLED=true")
	}
	if !validUrgencies[c.Push.Urgency] {
		return fmt.Errorf("PUSH_URGENCY must be one of: very-low, low, normal, high")
	}
	if c.Push.Timeout <= 0 {
		return fmt.Errorf("PUSH_TIMEOUT must be positive")
	}
	if c.Push.BreakerFailureThreshold == 0 {
		return fmt.Errorf("PUSH_BREAKER_FAILURE_THRESHOLD must be at least 1")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "memory":
		return nil
	case "badger":
		if c.Store.Path == "" {
			return fmt.Errorf("STORE_PATH is required when STORE_BACKEND=badger")
		}
		return nil
	default:
		return fmt.Errorf("STORE_BACKEND must be one of: badger, memory")
	}
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if !c.NATS.EmbeddedServer && c.NATS.URL == "" {
		return fmt.Errorf("NATS_URL is required when NATS_EMBEDDED=false")
	}
	if c.NATS.Subject == "" {
		return fmt.Errorf("NATS_SUBJECT is required when NATS_ENABLED=true")
	}
	if strings.ContainsAny(c.NATS.Subject, "*>") {
		return fmt.Errorf("NATS_SUBJECT must not contain wildcards")
	}
	if c.NATS.SubscribersCount < 1 {
		return fmt.Errorf("NATS_SUBSCRIBERS must be at least 1")
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}
