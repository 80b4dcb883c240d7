// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package eventprocessor

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/castline/internal/apperrors"
	"github.com/tomtom215/castline/internal/logging"
	"github.com/tomtom215/castline/internal/models"
	"github.com/tomtom215/castline/internal/notify"
)

func init() { //nolint:gochecknoinits // test logging setup
	logging.Init(logging.Config{Level: "info", Format: "json", Output: io.Discard})
}

// fakeDispatcher records dispatched notifications. err is returned for
// every call; seen ids are reported as duplicates.
type fakeDispatcher struct {
	mu     sync.Mutex
	calls  []models.Notification
	corrs  []string
	seen   map[string]bool
	err    error
	notify chan models.Notification
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{seen: make(map[string]bool), notify: make(chan models.Notification, 16)}
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, n models.Notification) (*notify.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, n)
	f.corrs = append(f.corrs, logging.CorrelationIDFromContext(ctx))
	err := f.err
	dup := f.seen[n.ID]
	f.seen[n.ID] = true
	f.mu.Unlock()

	select {
	case f.notify <- n:
	default:
	}

	if err != nil {
		return nil, err
	}
	return &notify.Result{Notification: n, Duplicate: dup}, nil
}

func (f *fakeDispatcher) Calls() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Notification(nil), f.calls...)
}

func eventMessage(t *testing.T, event *NotificationEvent) *message.Message {
	t.Helper()
	data, err := SerializeEvent(event)
	if err != nil {
		t.Fatalf("SerializeEvent: %v", err)
	}
	return message.NewMessage(watermill.NewUUID(), data)
}

func TestNewNotificationHandler_RequiresDispatcher(t *testing.T) {
	if _, err := NewNotificationHandler(nil); err == nil {
		t.Error("expected error for nil dispatcher")
	}
}

func TestNotificationHandler_Dispatches(t *testing.T) {
	d := newFakeDispatcher()
	h, err := NewNotificationHandler(d)
	if err != nil {
		t.Fatal(err)
	}

	event := NewNotificationEvent(SourceJobs, testNotification())
	if err := h.Handle(eventMessage(t, event)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	calls := d.Calls()
	if len(calls) != 1 {
		t.Fatalf("dispatch calls = %d, want 1", len(calls))
	}
	if calls[0].ID != DeriveObjectID(event.EventID) {
		t.Errorf("ID = %q, want derived id", calls[0].ID)
	}
	if d.corrs[0] != event.EventID {
		t.Errorf("correlation id = %q, want %q", d.corrs[0], event.EventID)
	}
	if got := h.Stats(); got.Received != 1 || got.Dispatched != 1 {
		t.Errorf("Stats() = %+v", got)
	}
}

func TestNotificationHandler_RedeliveryIsDuplicate(t *testing.T) {
	d := newFakeDispatcher()
	h, _ := NewNotificationHandler(d)
	event := NewNotificationEvent(SourceJobs, testNotification())

	for i := 0; i < 2; i++ {
		if err := h.Handle(eventMessage(t, event)); err != nil {
			t.Fatalf("Handle() #%d error = %v", i, err)
		}
	}

	calls := d.Calls()
	if len(calls) != 2 || calls[0].ID != calls[1].ID {
		t.Fatalf("redelivered event should reuse the id, got %+v", calls)
	}
	if got := h.Stats(); got.Dispatched != 1 || got.Duplicates != 1 {
		t.Errorf("Stats() = %+v, want 1 dispatched and 1 duplicate", got)
	}
}

func TestNotificationHandler_Errors(t *testing.T) {
	tests := []struct {
		name        string
		payload     []byte
		dispatchErr error
		wantErr     bool
		wantCalls   int
		check       func(t *testing.T, s HandlerStats)
	}{
		{
			name:      "malformed payload is dropped",
			payload:   []byte(`{"event_id":`),
			wantCalls: 0,
			check: func(t *testing.T, s HandlerStats) {
				if s.Rejected != 1 {
					t.Errorf("Rejected = %d, want 1", s.Rejected)
				}
			},
		},
		{
			name:        "invalid notification is dropped",
			dispatchErr: apperrors.Validation("notify.Dispatch", "type is required"),
			wantCalls:   1,
			check: func(t *testing.T, s HandlerStats) {
				if s.Rejected != 1 {
					t.Errorf("Rejected = %d, want 1", s.Rejected)
				}
			},
		},
		{
			name:        "persistence failure is retried",
			dispatchErr: apperrors.Persistence("notify.Dispatch", errors.New("disk full")),
			wantErr:     true,
			wantCalls:   1,
			check: func(t *testing.T, s HandlerStats) {
				if s.Failed != 1 {
					t.Errorf("Failed = %d, want 1", s.Failed)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDispatcher()
			d.err = tt.dispatchErr
			h, _ := NewNotificationHandler(d)

			msg := eventMessage(t, NewNotificationEvent(SourceAPI, testNotification()))
			if tt.payload != nil {
				msg = message.NewMessage(watermill.NewUUID(), tt.payload)
			}

			err := h.Handle(msg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Handle() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := len(d.Calls()); got != tt.wantCalls {
				t.Errorf("dispatch calls = %d, want %d", got, tt.wantCalls)
			}
			tt.check(t, h.Stats())
		})
	}
}
