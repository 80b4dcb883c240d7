// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package logging

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// WatermillLogger implements watermill.LoggerAdapter on top of zerolog.
type WatermillLogger struct {
	logger zerolog.Logger
	fields watermill.LogFields
}

// NewWatermillLogger returns an adapter tagged with component=eventprocessor.
func NewWatermillLogger() *WatermillLogger {
	return &WatermillLogger{logger: WithComponent("eventprocessor")}
}

// NewWatermillLoggerWithLogger wraps a specific zerolog logger.
//
//nolint:gocritic // zerolog.Logger is passed by value by design of the library
func NewWatermillLoggerWithLogger(logger zerolog.Logger) *WatermillLogger {
	return &WatermillLogger{logger: logger}
}

// Error logs at error level.
func (w *WatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.emit(w.logger.Error().Err(err), msg, fields)
}

// Info logs at info level.
func (w *WatermillLogger) Info(msg string, fields watermill.LogFields) {
	w.emit(w.logger.Info(), msg, fields)
}

// Debug logs at debug level.
func (w *WatermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.emit(w.logger.Debug(), msg, fields)
}

// Trace logs at trace level.
func (w *WatermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.emit(w.logger.Trace(), msg, fields)
}

// With returns an adapter carrying fields on every entry.
func (w *WatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillLogger{logger: w.logger, fields: w.fields.Add(fields)}
}

func (w *WatermillLogger) emit(event *zerolog.Event, msg string, fields watermill.LogFields) {
	if event == nil {
		return
	}
	for k, v := range w.fields {
		event = event.Interface(k, v)
	}
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}
