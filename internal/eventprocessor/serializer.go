// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package eventprocessor

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Serializer handles envelope encoding for NATS messages.
type Serializer struct{}

// NewSerializer creates a new serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal validates and encodes an event.
func (s *Serializer) Marshal(event *NotificationEvent) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Unmarshal decodes and validates an event.
func (s *Serializer) Unmarshal(data []byte) (*NotificationEvent, error) {
	var event NotificationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	return &event, nil
}

// SerializeEvent marshals an event with a default Serializer.
func SerializeEvent(event *NotificationEvent) ([]byte, error) {
	return NewSerializer().Marshal(event)
}

// DeserializeEvent unmarshals an event with a default Serializer.
func DeserializeEvent(data []byte) (*NotificationEvent, error) {
	return NewSerializer().Unmarshal(data)
}
