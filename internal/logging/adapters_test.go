// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

func TestSlogHandlerWritesThroughZerolog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSlogHandlerWithLogger(zerolog.New(&buf)))
	logger.With("service", "websocket-hub").WithGroup("tree").Warn("restarting", "attempt", 2)

	out := buf.String()
	checks := []string{`"level":"warn"`, `"service":"websocket-hub"`, `"tree.attempt":2`, `"message":"restarting"`}
	for _, want := range checks {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	t.Parallel()

	h := NewSlogHandlerWithLogger(zerolog.New(&bytes.Buffer{}).Level(zerolog.WarnLevel))
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled on a warn logger")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled on a warn logger")
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := slogToZerologLevel(tt.in); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWatermillLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	var adapter watermill.LoggerAdapter = NewWatermillLoggerWithLogger(zerolog.New(&buf))
	adapter = adapter.With(watermill.LogFields{"topic": "castline.notifications"})
	adapter.Error("handler failed", errors.New("boom"), watermill.LogFields{"message_uuid": "u1"})

	out := buf.String()
	checks := []string{`"level":"error"`, `"error":"boom"`, `"topic":"castline.notifications"`, `"message_uuid":"u1"`}
	for _, want := range checks {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}
