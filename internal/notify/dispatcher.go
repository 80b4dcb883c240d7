// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package notify

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/tomtom215/castline/internal/apperrors"
	"github.com/tomtom215/castline/internal/logging"
	"github.com/tomtom215/castline/internal/metrics"
	"github.com/tomtom215/castline/internal/models"
	"github.com/tomtom215/castline/internal/presence"
	"github.com/tomtom215/castline/internal/push"
	"github.com/tomtom215/castline/internal/store"
	"github.com/tomtom215/castline/internal/validation"
)

// DefaultConcurrency bounds the number of targets delivered in parallel.
const DefaultConcurrency = 8

// Outcome is the result of delivering a notification to one target.
type Outcome string

const (
	OutcomeLive    Outcome = "live"
	OutcomePushed  Outcome = "pushed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Store is the persistence the dispatcher needs.
type Store interface {
	EntityResolver
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetPushSubscription(ctx context.Context, profileID string) (*models.PushSubscription, error)
}

// Registry is the presence view the dispatcher needs.
type Registry interface {
	CacheNotification(profileID string, n models.Notification) bool
	LiveHandles(profileID string, kind presence.Kind) []presence.HandleID
}

// Delivery is the outcome for one target.
type Delivery struct {
	ProfileID string  `json:"profile_id"`
	Outcome   Outcome `json:"outcome"`
	Error     string  `json:"error,omitempty"`
	err       error
}

// Err returns the failure cause, if any.
func (d Delivery) Err() error {
	return d.err
}

// Result describes one Dispatch call.
type Result struct {
	Notification models.Notification `json:"notification"`
	// Duplicate is set when a notification with the same id was already
	// stored. Nothing is delivered for duplicates.
	Duplicate  bool       `json:"duplicate,omitempty"`
	Deliveries []Delivery `json:"deliveries"`
}

// Count returns how many deliveries ended with outcome.
func (r *Result) Count(outcome Outcome) int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Outcome == outcome {
			n++
		}
	}
	return n
}

// Config configures a Dispatcher.
type Config struct {
	Store    Store
	Registry Registry
	Emitter  presence.Emitter
	// Sender may be nil, in which case offline targets are skipped.
	Sender      push.Sender
	Concurrency int
}

// Dispatcher persists notifications and delivers them to their targets.
type Dispatcher struct {
	store       Store
	registry    Registry
	emitter     presence.Emitter
	sender      push.Sender
	renderer    *Renderer
	concurrency int
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Dispatcher{
		store:       cfg.Store,
		registry:    cfg.Registry,
		emitter:     cfg.Emitter,
		sender:      cfg.Sender,
		renderer:    NewRenderer(cfg.Store),
		concurrency: concurrency,
	}
}

// Dispatch validates and persists n, then delivers it to every target.
//
// Validation failures return a KindValidation error and touch nothing.
// A store failure returns a KindPersistence error and delivers nothing.
// Per-target failures are reported in the Result only.
func (d *Dispatcher) Dispatch(ctx context.Context, n models.Notification) (*Result, error) {
	const op = "notify.Dispatch"
	start := time.Now()

	if verr := validation.ValidateStruct(&n); verr != nil {
		metrics.RecordDispatch("invalid", time.Since(start))
		return nil, apperrors.Validation(op, "%s", verr.Error())
	}
	n.Profiles = uniqueTargets(n.Profiles)
	// The store assigns the date; read_by only grows after creation.
	n.ReadBy = []string{}
	n.Date = time.Time{}

	if err := d.store.CreateNotification(ctx, &n); err != nil {
		if errors.Is(err, store.ErrConflict) {
			metrics.RecordDispatch("duplicate", time.Since(start))
			logging.Ctx(ctx).Info().
				Str("notification_id", n.ID).
				Msg("Notification already dispatched, skipping")
			return &Result{Notification: n, Duplicate: true}, nil
		}
		metrics.RecordDispatch("failed", time.Since(start))
		return nil, apperrors.Persistence(op, err)
	}

	result := &Result{
		Notification: n,
		Deliveries:   d.deliverAll(ctx, &n),
	}

	metrics.RecordDispatch("accepted", time.Since(start))
	logging.Ctx(ctx).Debug().
		Str("notification_id", n.ID).
		Str("type", string(n.Type)).
		Int("targets", len(n.Profiles)).
		Int("live", result.Count(OutcomeLive)).
		Int("pushed", result.Count(OutcomePushed)).
		Int("failed", result.Count(OutcomeFailed)).
		Msg("Notification dispatched")
	return result, nil
}

func (d *Dispatcher) deliverAll(ctx context.Context, n *models.Notification) []Delivery {
	deliveries := make([]Delivery, len(n.Profiles))
	sem := make(chan struct{}, d.concurrency)
	var wg sync.WaitGroup

	for i, profileID := range n.Profiles {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			delivery := d.deliver(ctx, profileID, n)
			if delivery.err != nil {
				delivery.Error = delivery.err.Error()
				logging.Ctx(ctx).Warn().Err(delivery.err).
					Str("notification_id", n.ID).
					Str("profile_id", profileID).
					Msg("Notification delivery failed")
			}
			metrics.RecordDelivery(string(delivery.Outcome))
			deliveries[i] = delivery
		}()
	}
	wg.Wait()
	return deliveries
}

func (d *Dispatcher) deliver(ctx context.Context, profileID string, n *models.Notification) Delivery {
	delivery := Delivery{ProfileID: profileID}

	if d.registry.CacheNotification(profileID, n.Clone()) {
		handles := d.registry.LiveHandles(profileID, presence.KindNotif)
		if err := d.emitter.Emit(handles, models.EventNewNotification, n); err != nil {
			delivery.Outcome = OutcomeFailed
			delivery.err = fmt.Errorf("emit new-notification: %w", err)
			return delivery
		}
		delivery.Outcome = OutcomeLive
		return delivery
	}

	if d.sender == nil || !HasSummary(n.Type) {
		delivery.Outcome = OutcomeSkipped
		return delivery
	}

	sub, err := d.store.GetPushSubscription(ctx, profileID)
	if errors.Is(err, store.ErrNotFound) {
		delivery.Outcome = OutcomeSkipped
		return delivery
	}
	if err != nil {
		delivery.Outcome = OutcomeFailed
		delivery.err = fmt.Errorf("load push subscription: %w", err)
		return delivery
	}

	summary, ok, err := d.renderer.Summary(ctx, n)
	if err != nil {
		delivery.Outcome = OutcomeFailed
		delivery.err = fmt.Errorf("render summary: %w", err)
		return delivery
	}
	if !ok {
		delivery.Outcome = OutcomeSkipped
		return delivery
	}

	if err := d.sender.Send(ctx, sub.Subscription, push.Payload{Title: summary}); err != nil {
		delivery.Outcome = OutcomeFailed
		delivery.err = apperrors.Wrap(apperrors.KindDelivery, "notify.push", err)
		return delivery
	}
	delivery.Outcome = OutcomePushed
	return delivery
}

// uniqueTargets drops repeated profile ids, keeping first occurrence order.
func uniqueTargets(profiles []string) []string {
	out := make([]string, 0, len(profiles))
	for _, p := range profiles {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}
