// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/tomtom215/castline/internal/config"
	"github.com/tomtom215/castline/internal/logging"
	"github.com/tomtom215/castline/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "json", Output: io.Discard})
}

// testSubscription returns a subscription with real P-256 keys so the
// payload can be encrypted.
func testSubscription(t *testing.T, endpoint string) models.WebPushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		t.Fatalf("rand.Read() error = %v", err)
	}
	return models.WebPushSubscription{
		Endpoint: endpoint,
		Keys: models.PushKeys{
			P256dh: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(secret),
		},
	}
}

func testPushConfig(t *testing.T) *config.PushConfig {
	t.Helper()
	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("GenerateVAPIDKeys() error = %v", err)
	}
	return &config.PushConfig{
		Enabled:         true,
		VAPIDPublicKey:  pub,
		VAPIDPrivateKey: priv,
		Subscriber:      "ops@castline.test",
		TTL:             3600,
		Urgency:         "normal",
		Timeout:         2 * time.Second,
	}
}

type capturedRequest struct {
	auth     string
	ttl      string
	encoding string
	bodyLen  int
}

func TestWebPushSender_Send(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, capturedRequest{
			auth:     r.Header.Get("Authorization"),
			ttl:      r.Header.Get("TTL"),
			encoding: r.Header.Get("Content-Encoding"),
			bodyLen:  len(body),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sender := NewWebPushSender(testPushConfig(t))
	err := sender.Send(context.Background(), testSubscription(t, srv.URL+"/push/abc"), Payload{Title: "Alice has sent you a message"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 {
		t.Fatalf("push service received %d requests, want 1", len(seen))
	}
	req := seen[0]
	if !strings.HasPrefix(req.auth, "vapid ") {
		t.Errorf("Authorization = %q, want vapid scheme", req.auth)
	}
	if req.ttl != "3600" {
		t.Errorf("TTL = %q, want 3600", req.ttl)
	}
	if req.encoding != "aes128gcm" {
		t.Errorf("Content-Encoding = %q, want aes128gcm", req.encoding)
	}
	if req.bodyLen == 0 {
		t.Error("encrypted body is empty")
	}
}

func TestWebPushSender_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantErr  bool
		wantGone bool
	}{
		{"created", http.StatusCreated, false, false},
		{"gone", http.StatusGone, true, true},
		{"not found", http.StatusNotFound, true, true},
		{"server error", http.StatusInternalServerError, true, false},
		{"too many requests", http.StatusTooManyRequests, true, false},
	}

	cfg := testPushConfig(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewWebPushSender(cfg).Send(context.Background(), testSubscription(t, srv.URL), Payload{Title: "x"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Send() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, ErrSubscriptionGone); got != tt.wantGone {
				t.Errorf("errors.Is(err, ErrSubscriptionGone) = %v, want %v", got, tt.wantGone)
			}
		})
	}
}

func TestWebPushSender_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()
	defer close(release)

	cfg := testPushConfig(t)
	cfg.Timeout = 50 * time.Millisecond

	start := time.Now()
	err := NewWebPushSender(cfg).Send(context.Background(), testSubscription(t, srv.URL), Payload{Title: "x"})
	if err == nil {
		t.Fatal("Send() expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Send() took %v, want bounded by timeout", elapsed)
	}
}

func TestNew(t *testing.T) {
	if s := New(&config.PushConfig{Enabled: false}); s != nil {
		t.Errorf("New(disabled) = %T, want nil", s)
	}
	if s := New(testPushConfig(t)); s == nil {
		t.Error("New(enabled) = nil")
	}
}
