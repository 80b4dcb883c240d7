// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/castline/internal/logging"
)

func init() { //nolint:gochecknoinits // test logging setup
	logging.Init(logging.Config{Level: "info", Format: "json", Output: io.Discard})
}

// mockHTTPServer blocks in ListenAndServe until Shutdown unless failWith is set.
type mockHTTPServer struct {
	failWith  error
	started   chan struct{}
	stopCh    chan struct{}
	shutdowns atomic.Int32
	once      sync.Once
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{started: make(chan struct{}), stopCh: make(chan struct{})}
}

func (m *mockHTTPServer) ListenAndServe() error {
	close(m.started)
	if m.failWith != nil {
		return m.failWith
	}
	<-m.stopCh
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	m.shutdowns.Add(1)
	m.once.Do(func() { close(m.stopCh) })
	return nil
}

func TestHTTPServerService(t *testing.T) {
	t.Run("graceful shutdown", func(t *testing.T) {
		server := newMockHTTPServer()
		svc := NewHTTPServerService(server, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Serve(ctx) }()

		<-server.started
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve() did not return")
		}
		if server.shutdowns.Load() != 1 {
			t.Errorf("shutdowns = %d, want 1", server.shutdowns.Load())
		}
	})

	t.Run("listener failure", func(t *testing.T) {
		server := newMockHTTPServer()
		server.failWith = errors.New("address in use")
		svc := NewHTTPServerService(server, 0)

		err := svc.Serve(context.Background())
		if err == nil || !errors.Is(err, server.failWith) {
			t.Errorf("Serve() = %v, want wrapped listener error", err)
		}
	})

	if got := NewHTTPServerService(newMockHTTPServer(), 0).String(); got != "http-server" {
		t.Errorf("String() = %q", got)
	}
}

type mockHub struct {
	ran atomic.Bool
}

func (h *mockHub) RunWithContext(ctx context.Context) error {
	h.ran.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

func TestWebSocketHubService(t *testing.T) {
	hub := &mockHub{}
	svc := NewWebSocketHubService(hub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v, want context.DeadlineExceeded", err)
	}
	if !hub.ran.Load() {
		t.Error("hub loop was not run")
	}
	if svc.String() != "websocket-hub" {
		t.Errorf("String() = %q", svc.String())
	}
}

type mockBroker struct {
	running  atomic.Bool
	shutdown atomic.Int32
	order    *[]string
	mu       *sync.Mutex
}

func (b *mockBroker) IsRunning() bool { return b.running.Load() }

func (b *mockBroker) Shutdown(context.Context) error {
	b.shutdown.Add(1)
	b.mu.Lock()
	*b.order = append(*b.order, "broker")
	b.mu.Unlock()
	return nil
}

type recordingCloser struct {
	name  string
	order *[]string
	mu    *sync.Mutex
}

func (c recordingCloser) Close() error {
	c.mu.Lock()
	*c.order = append(*c.order, c.name)
	c.mu.Unlock()
	return nil
}

func TestBrokerServiceShutdownOrder(t *testing.T) {
	var order []string
	var mu sync.Mutex
	broker := &mockBroker{order: &order, mu: &mu}
	broker.running.Store(true)

	svc := NewBrokerService(broker, time.Second,
		recordingCloser{name: "publisher", order: &order, mu: &mu},
		recordingCloser{name: "subscriber", order: &order, mu: &mu},
	)
	svc.checkInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v, want context.DeadlineExceeded", err)
	}

	want := []string{"publisher", "subscriber", "broker"}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestBrokerServiceStoppedBroker(t *testing.T) {
	var order []string
	var mu sync.Mutex
	broker := &mockBroker{order: &order, mu: &mu}

	svc := NewBrokerService(broker, time.Second)
	svc.checkInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("Serve() = %v, want suture.ErrDoNotRestart", err)
	}
	if broker.shutdown.Load() != 0 {
		t.Error("a broker that stopped on its own should not be shut down again")
	}
}
