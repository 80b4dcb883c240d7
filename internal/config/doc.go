// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

/*
Package config loads and validates Castline configuration.

Configuration is layered with koanf, lowest priority first:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML file: CONFIG_PATH, else ./config.yaml, ./config.yml,
    /etc/castline/config.yaml
 3. Environment variables, mapped explicitly in envTransformFunc

Unmapped environment variables are ignored. Slice fields accept a comma
separated string when set through the environment:

	CORS_ORIGINS=https://app.example.com,https://admin.example.com

Example config.yaml:

	server:
	  port: 8080
	security:
	  jwt_secret: "change-me-to-32-or-more-characters"
	  jwt_issuer: "castline"
	push:
	  enabled: true
	  vapid_public_key: "..."
	  vapid_private_key: "..."
	  subscriber: "mailto:ops@example.com"
	store:
	  backend: badger
	  path: /data/castline

Validate is called by Load and returns the first problem found, naming the
environment variable that controls the offending field.
*/
package config
