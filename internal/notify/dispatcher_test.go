// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package notify

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/castline/internal/apperrors"
	"github.com/tomtom215/castline/internal/logging"
	"github.com/tomtom215/castline/internal/models"
	"github.com/tomtom215/castline/internal/presence"
	"github.com/tomtom215/castline/internal/presence/presencetest"
	"github.com/tomtom215/castline/internal/push"
	"github.com/tomtom215/castline/internal/readstate"
	"github.com/tomtom215/castline/internal/store"
)

func init() { //nolint:gochecknoinits // test logging setup
	logging.Init(logging.Config{Level: "info", Format: "json", Output: io.Discard})
}

// countingStore counts CreateNotification calls and can be told to fail them.
type countingStore struct {
	*store.MemoryStore
	creates   atomic.Int32
	createErr error
}

func (s *countingStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	s.creates.Add(1)
	if s.createErr != nil {
		return s.createErr
	}
	return s.MemoryStore.CreateNotification(ctx, n)
}

type sentPush struct {
	Endpoint string
	Payload  push.Payload
}

// fakeSender records pushes; endpoints listed in fail return that error.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentPush
	fail map[string]error
}

func (f *fakeSender) Send(_ context.Context, sub models.WebPushSubscription, payload push.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[sub.Endpoint]; ok {
		return err
	}
	f.sent = append(f.sent, sentPush{Endpoint: sub.Endpoint, Payload: payload})
	return nil
}

func (f *fakeSender) Sent() []sentPush {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.sent)
}

type fixture struct {
	store      *countingStore
	registry   *presence.Registry
	emitter    *presencetest.RecordingEmitter
	sender     *fakeSender
	dispatcher *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := &countingStore{MemoryStore: store.NewMemoryStore()}
	t.Cleanup(func() { st.Close() })

	f := &fixture{
		store:    st,
		registry: presence.NewRegistry(st),
		emitter:  &presencetest.RecordingEmitter{},
		sender:   &fakeSender{fail: map[string]error{}},
	}
	f.dispatcher = NewDispatcher(Config{
		Store:    st,
		Registry: f.registry,
		Emitter:  f.emitter,
		Sender:   f.sender,
	})
	return f
}

func (f *fixture) subscribe(t *testing.T, profileID, endpoint string) {
	t.Helper()
	_, err := f.store.UpsertPushSubscription(context.Background(), &models.PushSubscription{
		Profile: profileID,
		Subscription: models.WebPushSubscription{
			Endpoint: endpoint,
			Keys:     models.PushKeys{P256dh: "p256dh", Auth: "auth"},
		},
	})
	if err != nil {
		t.Fatalf("UpsertPushSubscription() error = %v", err)
	}
}

func (f *fixture) connect(t *testing.T, profileID string, kind presence.Kind, handle presence.HandleID) {
	t.Helper()
	if err := f.registry.Register(context.Background(), profileID, kind, handle); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
}

func deliveryFor(t *testing.T, r *Result, profileID string) Delivery {
	t.Helper()
	for _, d := range r.Deliveries {
		if d.ProfileID == profileID {
			return d
		}
	}
	t.Fatalf("no delivery for %s in %+v", profileID, r.Deliveries)
	return Delivery{}
}

func TestDispatchValidation(t *testing.T) {
	valid := func() models.Notification {
		return models.Notification{
			Profiles: []string{models.NewObjectID()},
			Type:     models.NotificationProjectUpdate,
			Message:  "@{project:" + models.NewObjectID() + "} was updated",
		}
	}

	tests := []struct {
		name   string
		mutate func(n *models.Notification)
	}{
		{"no targets", func(n *models.Notification) { n.Profiles = nil }},
		{"empty targets", func(n *models.Notification) { n.Profiles = []string{} }},
		{"malformed target", func(n *models.Notification) { n.Profiles = []string{"not-an-id"} }},
		{"unknown type", func(n *models.Notification) { n.Type = "PROJECT_DELETED" }},
		{"missing type", func(n *models.Notification) { n.Type = "" }},
		{"missing message", func(n *models.Notification) { n.Message = "" }},
		{"malformed mention", func(n *models.Notification) { n.MentionedProfiles = []string{"xyz"} }},
		{"malformed id", func(n *models.Notification) { n.ID = "123" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			n := valid()
			tt.mutate(&n)

			result, err := f.dispatcher.Dispatch(context.Background(), n)
			if !errors.Is(err, apperrors.ErrValidation) {
				t.Fatalf("Dispatch() error = %v, want validation error", err)
			}
			if result != nil {
				t.Errorf("Dispatch() result = %+v, want nil", result)
			}
			if got := f.store.creates.Load(); got != 0 {
				t.Errorf("CreateNotification called %d times, want 0", got)
			}
			if got := len(f.emitter.Events()); got != 0 {
				t.Errorf("emitted %d events, want 0", got)
			}
		})
	}
}

func TestDispatchPersistenceFailure(t *testing.T) {
	f := newFixture(t)
	target := models.NewObjectID()
	f.connect(t, target, presence.KindNotif, 1)
	f.store.createErr = errors.New("disk full")

	_, err := f.dispatcher.Dispatch(context.Background(), models.Notification{
		Profiles: []string{target},
		Type:     models.NotificationConnectionRequest,
		Message:  "hello",
	})
	if !errors.Is(err, apperrors.ErrPersistence) {
		t.Fatalf("Dispatch() error = %v, want persistence error", err)
	}
	if got := len(f.emitter.Events()); got != 0 {
		t.Errorf("emitted %d events, want 0", got)
	}
	if unread, _ := f.registry.Unread(target); len(unread) != 0 {
		t.Errorf("cached unread = %d, want 0", len(unread))
	}
}

func TestDispatchPersistsOnce(t *testing.T) {
	f := newFixture(t)
	target := models.NewObjectID()

	result, err := f.dispatcher.Dispatch(context.Background(), models.Notification{
		Profiles: []string{target, target},
		Type:     models.NotificationConnectionRequest,
		Message:  "hello",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if got := f.store.creates.Load(); got != 1 {
		t.Errorf("CreateNotification called %d times, want 1", got)
	}
	if !models.IsObjectID(result.Notification.ID) {
		t.Errorf("ID = %q, want object id", result.Notification.ID)
	}
	if result.Notification.Date.IsZero() {
		t.Error("Date not assigned")
	}
	if len(result.Deliveries) != 1 {
		t.Errorf("deliveries = %d, want 1 after dedupe", len(result.Deliveries))
	}

	stored, err := f.store.GetNotification(context.Background(), result.Notification.ID)
	if err != nil {
		t.Fatalf("GetNotification() error = %v", err)
	}
	if len(stored.ReadBy) != 0 {
		t.Errorf("ReadBy = %v, want empty", stored.ReadBy)
	}
}

func TestDispatchIgnoresCallerReadState(t *testing.T) {
	f := newFixture(t)
	target := models.NewObjectID()
	f.connect(t, target, presence.KindNotif, 1)
	backdated := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

	result, err := f.dispatcher.Dispatch(context.Background(), models.Notification{
		Profiles: []string{target},
		Type:     models.NotificationProjectUpdate,
		Message:  "project updated",
		ReadBy:   []string{target},
		Date:     backdated,
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if d := deliveryFor(t, result, target); d.Outcome != OutcomeLive {
		t.Errorf("outcome = %s, want live", d.Outcome)
	}

	stored, err := f.store.GetNotification(context.Background(), result.Notification.ID)
	if err != nil {
		t.Fatalf("GetNotification() error = %v", err)
	}
	if len(stored.ReadBy) != 0 {
		t.Errorf("stored ReadBy = %v, want empty", stored.ReadBy)
	}
	if !stored.Date.After(backdated) {
		t.Errorf("stored Date = %v, want assigned at creation", stored.Date)
	}

	storeUnread, err := f.store.UnreadNotifications(context.Background(), target)
	if err != nil {
		t.Fatalf("UnreadNotifications() error = %v", err)
	}
	cached, _ := f.registry.Unread(target)
	if len(storeUnread) != 1 || len(cached) != 1 {
		t.Errorf("store unread = %d, cached unread = %d, want 1 and 1", len(storeUnread), len(cached))
	}
}

func TestDispatchAfterMarkAllRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := models.NewObjectID()
	reads := readstate.NewSynchronizer(f.store, f.registry, f.emitter)

	for range 3 {
		if _, err := f.dispatcher.Dispatch(ctx, models.Notification{
			Profiles: []string{target},
			Type:     models.NotificationProjectUpdate,
			Message:  "project updated",
		}); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
	}
	f.connect(t, target, presence.KindNotif, 1)
	if cached, _ := f.registry.Unread(target); len(cached) != 3 {
		t.Fatalf("cached unread after connect = %d, want 3", len(cached))
	}

	if _, err := reads.MarkAllRead(ctx, target); err != nil {
		t.Fatalf("MarkAllRead() error = %v", err)
	}
	if cached, ok := f.registry.Unread(target); !ok || len(cached) != 0 {
		t.Fatalf("cached unread after MarkAllRead = %d, want 0", len(cached))
	}

	result, err := f.dispatcher.Dispatch(ctx, models.Notification{
		Profiles: []string{target},
		Type:     models.NotificationJobUpdate,
		Message:  "job updated",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	cached, _ := f.registry.Unread(target)
	if len(cached) != 1 || cached[0].ID != result.Notification.ID {
		t.Errorf("cached unread = %+v, want exactly the new notification", cached)
	}
}

func TestDispatchOnlineTargetNeverPushed(t *testing.T) {
	f := newFixture(t)
	target := models.NewObjectID()
	f.subscribe(t, target, "https://push.example/online")
	f.connect(t, target, presence.KindNotif, 1)
	f.connect(t, target, presence.KindNotif, 2)
	f.connect(t, target, presence.KindChat, 3)

	result, err := f.dispatcher.Dispatch(context.Background(), models.Notification{
		Profiles:          []string{target},
		Type:              models.NotificationProjectFollow,
		Message:           "@{profile:" + target + "} followed your project",
		MentionedProfiles: []string{target},
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if d := deliveryFor(t, result, target); d.Outcome != OutcomeLive {
		t.Errorf("outcome = %s, want live", d.Outcome)
	}
	if got := len(f.sender.Sent()); got != 0 {
		t.Errorf("sent %d pushes to an online profile, want 0", got)
	}

	events := f.emitter.ByEvent(models.EventNewNotification)
	if len(events) != 1 {
		t.Fatalf("new-notification events = %d, want 1", len(events))
	}
	if want := []presence.HandleID{1, 2}; !slices.Equal(events[0].Handles, want) {
		t.Errorf("handles = %v, want %v", events[0].Handles, want)
	}

	unread, ok := f.registry.Unread(target)
	if !ok || len(unread) != 1 || unread[0].ID != result.Notification.ID {
		t.Errorf("cached unread = %+v, want the new notification first", unread)
	}
}

func TestDispatchOfflineWithSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := &models.Profile{ID: models.NewObjectID(), Name: "Bob"}
	media := &models.Media{ID: models.NewObjectID(), Caption: "A very long caption"}
	if err := f.store.PutProfile(ctx, author); err != nil {
		t.Fatal(err)
	}
	if err := f.store.PutMedia(ctx, media); err != nil {
		t.Fatal(err)
	}

	target := models.NewObjectID()
	f.subscribe(t, target, "https://push.example/offline")

	result, err := f.dispatcher.Dispatch(ctx, models.Notification{
		Profiles:          []string{target},
		Type:              models.NotificationNewMediaStar,
		Message:           "@{profile:" + author.ID + "} has starred your media @{media:" + media.ID + "}",
		MentionedProfiles: []string{author.ID},
		MentionedMedia:    []string{media.ID},
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if d := deliveryFor(t, result, target); d.Outcome != OutcomePushed {
		t.Errorf("outcome = %s, want pushed", d.Outcome)
	}

	sent := f.sender.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d pushes, want 1", len(sent))
	}
	if want := "Bob has starred your media A very lon..."; sent[0].Payload.Title != want {
		t.Errorf("title = %q, want %q", sent[0].Payload.Title, want)
	}
	if sent[0].Endpoint != "https://push.example/offline" {
		t.Errorf("endpoint = %q", sent[0].Endpoint)
	}
	if got := len(f.emitter.Events()); got != 0 {
		t.Errorf("emitted %d events for an offline profile, want 0", got)
	}
}

func TestDispatchSkips(t *testing.T) {
	tests := []struct {
		name      string
		subscribe bool
		ntype     models.NotificationType
		noSender  bool
	}{
		{"offline without subscription", false, models.NotificationProjectUpdate, false},
		{"connection request has no summary", true, models.NotificationConnectionRequest, false},
		{"project invite has no summary", true, models.NotificationProjectInvite, false},
		{"push disabled", true, models.NotificationProjectUpdate, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.noSender {
				f.dispatcher = NewDispatcher(Config{Store: f.store, Registry: f.registry, Emitter: f.emitter})
			}
			target := models.NewObjectID()
			if tt.subscribe {
				f.subscribe(t, target, "https://push.example/"+target)
			}

			result, err := f.dispatcher.Dispatch(context.Background(), models.Notification{
				Profiles: []string{target},
				Type:     tt.ntype,
				Message:  "something happened",
			})
			if err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			if d := deliveryFor(t, result, target); d.Outcome != OutcomeSkipped {
				t.Errorf("outcome = %s, want skipped", d.Outcome)
			}
			if got := len(f.sender.Sent()); got != 0 {
				t.Errorf("sent %d pushes, want 0", got)
			}
		})
	}
}

func TestDispatchTargetsAreIndependent(t *testing.T) {
	f := newFixture(t)
	failing := models.NewObjectID()
	online := models.NewObjectID()
	pushed := models.NewObjectID()

	f.subscribe(t, failing, "https://push.example/failing")
	f.subscribe(t, pushed, "https://push.example/ok")
	f.sender.fail["https://push.example/failing"] = push.ErrUnavailable
	f.connect(t, online, presence.KindNotif, 7)

	result, err := f.dispatcher.Dispatch(context.Background(), models.Notification{
		Profiles: []string{failing, online, pushed},
		Type:     models.NotificationProjectUpdate,
		Message:  "project updated",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	want := map[string]Outcome{failing: OutcomeFailed, online: OutcomeLive, pushed: OutcomePushed}
	for profileID, outcome := range want {
		d := deliveryFor(t, result, profileID)
		if d.Outcome != outcome {
			t.Errorf("%s outcome = %s, want %s", profileID, d.Outcome, outcome)
		}
	}

	failed := deliveryFor(t, result, failing)
	if !errors.Is(failed.Err(), push.ErrUnavailable) {
		t.Errorf("failed delivery error = %v, want ErrUnavailable", failed.Err())
	}
	if !errors.Is(failed.Err(), apperrors.ErrDelivery) {
		t.Errorf("failed delivery error = %v, want delivery kind", failed.Err())
	}
	if failed.Error == "" {
		t.Error("failed delivery has no error text")
	}
	if got := result.Count(OutcomeFailed); got != 1 {
		t.Errorf("Count(failed) = %d, want 1", got)
	}
}

func TestDispatchEmitFailureIsPerTarget(t *testing.T) {
	f := newFixture(t)
	target := models.NewObjectID()
	f.connect(t, target, presence.KindNotif, 1)
	f.emitter.Err = errors.New("connection closed")

	result, err := f.dispatcher.Dispatch(context.Background(), models.Notification{
		Profiles: []string{target},
		Type:     models.NotificationProjectUpdate,
		Message:  "project updated",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if d := deliveryFor(t, result, target); d.Outcome != OutcomeFailed {
		t.Errorf("outcome = %s, want failed", d.Outcome)
	}
	if got := len(f.sender.Sent()); got != 0 {
		t.Errorf("sent %d pushes, want 0", got)
	}
}

func TestDispatchDuplicateID(t *testing.T) {
	f := newFixture(t)
	target := models.NewObjectID()
	f.connect(t, target, presence.KindNotif, 1)

	n := models.Notification{
		ID:       models.NewObjectID(),
		Profiles: []string{target},
		Type:     models.NotificationProjectUpdate,
		Message:  "project updated",
	}
	if _, err := f.dispatcher.Dispatch(context.Background(), n); err != nil {
		t.Fatalf("first Dispatch() error = %v", err)
	}
	result, err := f.dispatcher.Dispatch(context.Background(), n)
	if err != nil {
		t.Fatalf("second Dispatch() error = %v", err)
	}
	if !result.Duplicate {
		t.Error("Duplicate = false, want true")
	}
	if len(result.Deliveries) != 0 {
		t.Errorf("deliveries = %d, want 0", len(result.Deliveries))
	}
	if got := len(f.emitter.ByEvent(models.EventNewNotification)); got != 1 {
		t.Errorf("new-notification events = %d, want 1", got)
	}
	if unread, _ := f.registry.Unread(target); len(unread) != 1 {
		t.Errorf("cached unread = %d, want 1", len(unread))
	}
}

func TestDispatchManyTargetsConcurrently(t *testing.T) {
	f := newFixture(t)
	targets := make([]string, 50)
	for i := range targets {
		targets[i] = models.NewObjectID()
		f.subscribe(t, targets[i], "https://push.example/"+targets[i])
	}

	result, err := f.dispatcher.Dispatch(context.Background(), models.Notification{
		Profiles: targets,
		Type:     models.NotificationProjectUpdate,
		Message:  "project updated",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if got := result.Count(OutcomePushed); got != len(targets) {
		t.Errorf("pushed = %d, want %d", got, len(targets))
	}
	for i, d := range result.Deliveries {
		if d.ProfileID != targets[i] {
			t.Fatalf("delivery %d is for %s, want %s", i, d.ProfileID, targets[i])
		}
	}
}
