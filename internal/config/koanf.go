// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/castline/config.yaml",
	"/etc/castline/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			JWTIssuer:       "castline",
			TokenTTL:        24 * time.Hour,
			RequireSession:  true,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
			Casbin: CasbinConfig{
				DefaultRole: "member",
			},
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			WriteWait:        10 * time.Second,
			PongWait:         60 * time.Second,
			MaxMessageSize:   64 * 1024,
			SendBuffer:       256,
			InboundRate:      20,
			InboundBurst:     40,
		},
		Push: PushConfig{
			Enabled:                 false,
			TTL:                     3600,
			Urgency:                 "normal",
			Timeout:                 10 * time.Second,
			BreakerMaxRequests:      3,
			BreakerInterval:         time.Minute,
			BreakerTimeout:          2 * time.Minute,
			BreakerFailureThreshold: 5,
		},
		Store: StoreConfig{
			Backend:    "badger",
			Path:       "/data/castline",
			SyncWrites: false,
		},
		NATS: NATSConfig{
			Enabled:          false,
			EmbeddedServer:   true,
			URL:              "nats://127.0.0.1:4222",
			Host:             "127.0.0.1",
			Port:             4222,
			StoreDir:         "/data/nats/jetstream",
			MaxMemory:        256 << 20, // 256MB
			MaxStore:         1 << 30,   // 1GB
			Subject:          "castline.notifications",
			DurableName:      "castline-dispatcher",
			QueueGroup:       "dispatchers",
			SubscribersCount: 2,
			AckWaitTimeout:   30 * time.Second,
			MaxDeliver:       5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf layers defaults, the config file and environment variables,
// then validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields splits comma separated env values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				values = append(values, p)
			}
		}
		if err := k.Set(path, values); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"http_port":        "server.port",
	"http_host":        "server.host",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	"jwt_secret":          "security.jwt_secret",
	"jwt_issuer":          "security.jwt_issuer",
	"jwt_token_ttl":       "security.token_ttl",
	"require_session":     "security.require_session",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",
	"casbin_model_path":   "security.casbin.model_path",
	"casbin_policy_path":  "security.casbin.policy_path",
	"casbin_default_role": "security.casbin.default_role",

	"ws_read_buffer_size":  "websocket.read_buffer_size",
	"ws_write_buffer_size": "websocket.write_buffer_size",
	"ws_handshake_timeout": "websocket.handshake_timeout",
	"ws_write_wait":        "websocket.write_wait",
	"ws_pong_wait":         "websocket.pong_wait",
	"ws_max_message_size":  "websocket.max_message_size",
	"ws_send_buffer":       "websocket.send_buffer",
	"ws_inbound_rate":      "websocket.inbound_rate",
	"ws_inbound_burst":     "websocket.inbound_burst",

	"push_enabled":                   "push.enabled",
	"vapid_public_key":               "push.vapid_public_key",
	"vapid_private_key":              "push.vapid_private_key",
	"vapid_subscriber":               "push.subscriber",
	"push_ttl":                       "push.ttl",
	"push_urgency":                   "push.urgency",
	"push_timeout":                   "push.timeout",
	"push_breaker_max_requests":      "push.breaker_max_requests",
	"push_breaker_interval":          "push.breaker_interval",
	"push_breaker_timeout":           "push.breaker_timeout",
	"push_breaker_failure_threshold": "push.breaker_failure_threshold",

	"store_backend":     "store.backend",
	"store_path":        "store.path",
	"store_sync_writes": "store.sync_writes",

	"nats_enabled":      "nats.enabled",
	"nats_embedded":     "nats.embedded_server",
	"nats_url":          "nats.url",
	"nats_host":         "nats.host",
	"nats_port":         "nats.port",
	"nats_store_dir":    "nats.store_dir",
	"nats_max_memory":   "nats.max_memory",
	"nats_max_store":    "nats.max_store",
	"nats_subject":      "nats.subject",
	"nats_durable_name": "nats.durable_name",
	"nats_queue_group":  "nats.queue_group",
	"nats_subscribers":  "nats.subscribers_count",
	"nats_ack_wait":     "nats.ack_wait_timeout",
	"nats_max_deliver":  "nats.max_deliver",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable to its koanf path. Unknown
// variables map to "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
