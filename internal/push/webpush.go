// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package push

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/goccy/go-json"

	"github.com/tomtom215/castline/internal/config"
	"github.com/tomtom215/castline/internal/metrics"
	"github.com/tomtom215/castline/internal/models"
)

// WebPushSender sends VAPID-signed Web Push requests.
type WebPushSender struct {
	client     *http.Client
	publicKey  string
	privateKey string
	subscriber string
	ttl        int
	urgency    webpush.Urgency
	timeout    time.Duration
}

// NewWebPushSender creates a sender from the push configuration.
func NewWebPushSender(cfg *config.PushConfig) *WebPushSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebPushSender{
		client:     &http.Client{Timeout: timeout},
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subscriber: cfg.Subscriber,
		ttl:        cfg.TTL,
		urgency:    webpush.Urgency(cfg.Urgency),
		timeout:    timeout,
	}
}

// Send encrypts payload for sub and posts it to the subscription endpoint.
func (s *WebPushSender) Send(ctx context.Context, sub models.WebPushSubscription, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             s.ttl,
		Urgency:         s.urgency,
	})
	if err != nil {
		metrics.RecordPush(time.Since(start), err)
		return fmt.Errorf("send web push: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	err = statusError(resp.StatusCode)
	metrics.RecordPush(time.Since(start), err)
	return err
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return fmt.Errorf("%w: status %d", ErrSubscriptionGone, code)
	default:
		return fmt.Errorf("push service returned status %d", code)
	}
}
