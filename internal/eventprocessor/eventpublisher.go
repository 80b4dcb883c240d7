// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/castline/internal/metrics"
)

// MsgIDHeader carries the broker deduplication key.
const MsgIDHeader = "Nats-Msg-Id"

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// EventPublisher publishes notification events through any Watermill
// publisher, optionally guarded by a circuit breaker.
type EventPublisher struct {
	publisher      message.Publisher
	subject        string
	circuitBreaker *gobreaker.CircuitBreaker[struct{}]
	mu             sync.RWMutex
	closed         bool
}

// NewEventPublisher wraps pub. Events go to subject.
func NewEventPublisher(pub message.Publisher, subject string) (*EventPublisher, error) {
	if pub == nil {
		return nil, ErrNilPublisher
	}
	if subject == "" {
		subject = DefaultSubject
	}
	return &EventPublisher{publisher: pub, subject: subject}, nil
}

// SetCircuitBreaker configures the circuit breaker for publish operations.
func (p *EventPublisher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[struct{}]) {
	p.circuitBreaker = cb
}

// CircuitState returns the publish breaker state name, or "" when no breaker
// is configured.
func (p *EventPublisher) CircuitState() string {
	if p.circuitBreaker == nil {
		return ""
	}
	return p.circuitBreaker.State().String()
}

// Subject returns the subject events are published to.
func (p *EventPublisher) Subject() string {
	return p.subject
}

// Publish sends msg to topic. The message UUID becomes the dedup key when
// none is set.
func (p *EventPublisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPublisherClosed
	}

	if msg.Metadata.Get(MsgIDHeader) == "" {
		msg.Metadata.Set(MsgIDHeader, msg.UUID)
	}
	msg.SetContext(ctx)

	var err error
	if p.circuitBreaker != nil {
		_, err = p.circuitBreaker.Execute(func() (struct{}, error) {
			return struct{}{}, p.publisher.Publish(topic, msg)
		})
	} else {
		err = p.publisher.Publish(topic, msg)
	}
	if err != nil {
		return err
	}

	metrics.RecordNATSPublish()
	return nil
}

// PublishNotification serializes and publishes event. The event id is the
// dedup key, so retried publishes of the same event are collapsed.
func (p *EventPublisher) PublishNotification(ctx context.Context, event *NotificationEvent) error {
	data, err := SerializeEvent(event)
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}

	msg := message.NewMessage(event.EventID, data)
	msg.Metadata.Set(MsgIDHeader, event.EventID)
	msg.Metadata.Set("source", event.Source)
	msg.Metadata.Set("type", string(event.Notification.Type))

	return p.Publish(ctx, p.subject, msg)
}

// Close shuts down the underlying publisher.
func (p *EventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}

// WatermillPublisher returns the wrapped publisher, for poison queue wiring.
func (p *EventPublisher) WatermillPublisher() message.Publisher {
	return p.publisher
}
