// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

//go:build !nats

package eventprocessor

import "context"

// EnsureStreamAt is a stub for non-NATS builds.
func EnsureStreamAt(_ context.Context, _ string, _ *StreamConfig) error {
	return ErrNATSNotEnabled
}
