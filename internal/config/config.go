// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package config

import "time"

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Push      PushConfig      `koanf:"push"`
	Store     StoreConfig     `koanf:"store"`
	NATS      NATSConfig      `koanf:"nats"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// SecurityConfig holds token verification, CORS and rate limit settings.
type SecurityConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
	JWTIssuer string `koanf:"jwt_issuer"`
	// TokenTTL is only used when this process issues tokens (tests, tooling).
	TokenTTL time.Duration `koanf:"token_ttl"`
	// RequireSession makes the HTTP guard reject tokens whose jti has no
	// stored session.
	RequireSession    bool          `koanf:"require_session"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	Casbin            CasbinConfig  `koanf:"casbin"`
}

// CasbinConfig points at optional model/policy overrides. Empty paths use
// the embedded defaults.
type CasbinConfig struct {
	ModelPath   string `koanf:"model_path"`
	PolicyPath  string `koanf:"policy_path"`
	DefaultRole string `koanf:"default_role"`
}

// WebSocketConfig holds channel gateway settings.
type WebSocketConfig struct {
	ReadBufferSize   int           `koanf:"read_buffer_size"`
	WriteBufferSize  int           `koanf:"write_buffer_size"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	WriteWait        time.Duration `koanf:"write_wait"`
	PongWait         time.Duration `koanf:"pong_wait"`
	MaxMessageSize   int64         `koanf:"max_message_size"`
	SendBuffer       int           `koanf:"send_buffer"`
	// InboundRate is the sustained number of client events accepted per
	// second on one connection; InboundBurst is the bucket size.
	InboundRate  float64 `koanf:"inbound_rate"`
	InboundBurst int     `koanf:"inbound_burst"`
}

// PushConfig holds web push delivery settings.
type PushConfig struct {
	Enabled         bool          `koanf:"enabled"`
	VAPIDPublicKey  string        `koanf:"vapid_public_key"`
	VAPIDPrivateKey string        `koanf:"vapid_private_key"`
	Subscriber      string        `koanf:"subscriber"`
	TTL             int           `koanf:"ttl"`
	Urgency         string        `koanf:"urgency"`
	Timeout         time.Duration `koanf:"timeout"`

	BreakerMaxRequests      uint32        `koanf:"breaker_max_requests"`
	BreakerInterval         time.Duration `koanf:"breaker_interval"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Backend    string `koanf:"backend"` // badger or memory
	Path       string `koanf:"path"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// NATSConfig holds application event consumption settings.
type NATSConfig struct {
	Enabled          bool          `koanf:"enabled"`
	EmbeddedServer   bool          `koanf:"embedded_server"`
	URL              string        `koanf:"url"`
	Host             string        `koanf:"host"`
	Port             int           `koanf:"port"`
	StoreDir         string        `koanf:"store_dir"`
	MaxMemory        int64         `koanf:"max_memory"`
	MaxStore         int64         `koanf:"max_store"`
	Subject          string        `koanf:"subject"`
	DurableName      string        `koanf:"durable_name"`
	QueueGroup       string        `koanf:"queue_group"`
	SubscribersCount int           `koanf:"subscribers_count"`
	AckWaitTimeout   time.Duration `koanf:"ack_wait_timeout"`
	MaxDeliver       int           `koanf:"max_deliver"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, file and environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// IsProduction reports whether ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
