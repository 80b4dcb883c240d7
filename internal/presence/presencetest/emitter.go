// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

// Package presencetest provides test doubles for presence consumers.
package presencetest

import (
	"slices"
	"sync"

	"github.com/tomtom215/castline/internal/presence"
)

// Emitted is one recorded Emit call.
type Emitted struct {
	Handles []presence.HandleID
	Event   string
	Data    any
}

// RecordingEmitter records every Emit call. Set Err to make Emit fail.
type RecordingEmitter struct {
	mu     sync.Mutex
	events []Emitted
	Err    error
}

// Emit implements presence.Emitter.
func (r *RecordingEmitter) Emit(handles []presence.HandleID, event string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Emitted{Handles: slices.Clone(handles), Event: event, Data: data})
	return r.Err
}

// Events returns a copy of the recorded calls in order.
func (r *RecordingEmitter) Events() []Emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// ByEvent returns the recorded calls for one event name.
func (r *RecordingEmitter) ByEvent(event string) []Emitted {
	var out []Emitted
	for _, e := range r.Events() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// ToHandle returns the recorded calls that included handle.
func (r *RecordingEmitter) ToHandle(handle presence.HandleID) []Emitted {
	var out []Emitted
	for _, e := range r.Events() {
		if slices.Contains(e.Handles, handle) {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears the recorded calls.
func (r *RecordingEmitter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
