// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package chat

import (
	"context"
	"errors"
	"io"
	"slices"
	"testing"

	"github.com/tomtom215/castline/internal/apperrors"
	"github.com/tomtom215/castline/internal/logging"
	"github.com/tomtom215/castline/internal/models"
	"github.com/tomtom215/castline/internal/notify"
	"github.com/tomtom215/castline/internal/presence"
	"github.com/tomtom215/castline/internal/presence/presencetest"
	"github.com/tomtom215/castline/internal/store"
)

func init() { //nolint:gochecknoinits // test logging setup
	logging.Init(logging.Config{Level: "info", Format: "json", Output: io.Discard})
}

type fixture struct {
	store    *store.MemoryStore
	registry *presence.Registry
	emitter  *presencetest.RecordingEmitter
	relay    *Relay

	sender    *models.Profile
	recipient *models.Profile
	convo     *models.Conversation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close() })

	f := &fixture{
		store:     st,
		registry:  presence.NewRegistry(st),
		emitter:   &presencetest.RecordingEmitter{},
		sender:    &models.Profile{ID: models.NewObjectID(), Name: "Sam"},
		recipient: &models.Profile{ID: models.NewObjectID(), Name: "Rae"},
	}
	dispatcher := notify.NewDispatcher(notify.Config{Store: st, Registry: f.registry, Emitter: f.emitter})
	f.relay = NewRelay(st, f.registry, f.emitter, dispatcher)

	for _, p := range []*models.Profile{f.sender, f.recipient} {
		if err := st.PutProfile(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	f.convo = &models.Conversation{
		Type:     models.ConversationProfessional,
		Profiles: []string{f.sender.ID, f.recipient.ID},
	}
	if err := st.CreateConversation(ctx, f.convo); err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	return f
}

func (f *fixture) connect(t *testing.T, profileID string, kind presence.Kind, handles ...presence.HandleID) {
	t.Helper()
	for _, h := range handles {
		if err := f.registry.Register(context.Background(), profileID, kind, h); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}
}

func (f *fixture) block(t *testing.T, blocker, blocked *models.Profile) {
	t.Helper()
	blocker.BlockedProfiles = append(blocker.BlockedProfiles, blocked.ID)
	if err := f.store.PutProfile(context.Background(), blocker); err != nil {
		t.Fatal(err)
	}
}

func TestSendRelaysToRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t, f.sender.ID, presence.KindChat, 1, 2)
	f.connect(t, f.recipient.ID, presence.KindChat, 10, 11)
	f.connect(t, f.recipient.ID, presence.KindNotif, 20)

	msg, err := f.relay.Send(ctx, SendRequest{
		ConversationID: f.convo.ID,
		SenderID:       f.sender.ID,
		Body:           "hello",
		Origin:         1,
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if msg.Body != "hello" || msg.Profile != f.sender.ID || msg.Conversation != f.convo.ID {
		t.Errorf("Send() message = %+v", msg)
	}

	relayed := f.emitter.ByEvent(models.EventNewMessage)
	if len(relayed) != 1 {
		t.Fatalf("new-message events = %d, want 1", len(relayed))
	}
	if want := []presence.HandleID{10, 11}; !slices.Equal(relayed[0].Handles, want) {
		t.Errorf("new-message handles = %v, want %v", relayed[0].Handles, want)
	}

	acks := f.emitter.ByEvent(models.EventAddSuccess)
	if len(acks) != 1 || !slices.Equal(acks[0].Handles, []presence.HandleID{1}) {
		t.Errorf("add-success = %+v, want one event to handle 1", acks)
	}
	if got := f.emitter.ToHandle(2); len(got) != 0 {
		t.Errorf("sender's other tab received %+v, want nothing", got)
	}

	convo, err := f.store.GetConversation(ctx, f.convo.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(convo.Messages, []string{msg.ID}) {
		t.Errorf("conversation messages = %v, want [%s]", convo.Messages, msg.ID)
	}

	notes := f.emitter.ByEvent(models.EventNewNotification)
	if len(notes) != 1 || !slices.Equal(notes[0].Handles, []presence.HandleID{20}) {
		t.Fatalf("new-notification = %+v, want one event to handle 20", notes)
	}
	n, ok := notes[0].Data.(*models.Notification)
	if !ok {
		t.Fatalf("notification payload type = %T", notes[0].Data)
	}
	if n.Type != models.NotificationNewChatMessage {
		t.Errorf("type = %s", n.Type)
	}
	if want := "@{profile:" + f.sender.ID + "} has sent you a message"; n.Message != want {
		t.Errorf("message = %q, want %q", n.Message, want)
	}
	if want := "/chat/professional/" + f.convo.ID; n.Action != want {
		t.Errorf("action = %q, want %q", n.Action, want)
	}
	if !slices.Equal(n.Profiles, []string{f.recipient.ID}) {
		t.Errorf("targets = %v", n.Profiles)
	}
}

func TestSendRecipientOffline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.relay.Send(ctx, SendRequest{
		ConversationID: f.convo.ID,
		SenderID:       f.sender.ID,
		Body:           "are you there",
	}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got := len(f.emitter.Events()); got != 0 {
		t.Errorf("emitted %d events, want 0", got)
	}
	unread, err := f.store.UnreadNotifications(ctx, f.recipient.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 1 || unread[0].Type != models.NotificationNewChatMessage {
		t.Errorf("recipient unread = %+v, want one chat notification", unread)
	}
}

func TestSendBlocked(t *testing.T) {
	tests := []struct {
		name    string
		blockBy func(f *fixture) (*models.Profile, *models.Profile)
	}{
		{"recipient blocked sender", func(f *fixture) (*models.Profile, *models.Profile) { return f.recipient, f.sender }},
		{"sender blocked recipient", func(f *fixture) (*models.Profile, *models.Profile) { return f.sender, f.recipient }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.connect(t, f.recipient.ID, presence.KindChat, 10)
			blocker, blocked := tt.blockBy(f)
			f.block(t, blocker, blocked)

			_, err := f.relay.Send(ctx, SendRequest{
				ConversationID: f.convo.ID,
				SenderID:       f.sender.ID,
				Body:           "hi",
				Origin:         1,
			})
			if !errors.Is(err, apperrors.ErrPermission) {
				t.Fatalf("Send() error = %v, want permission error", err)
			}
			msgs, err := f.store.ListMessages(ctx, f.convo.ID)
			if err != nil {
				t.Fatal(err)
			}
			if len(msgs) != 0 {
				t.Errorf("stored %d messages, want 0", len(msgs))
			}
			if got := len(f.emitter.Events()); got != 0 {
				t.Errorf("emitted %d events, want 0", got)
			}
		})
	}
}

func TestSendErrors(t *testing.T) {
	f := newFixture(t)
	stranger := models.NewObjectID()

	tests := []struct {
		name string
		req  SendRequest
		want error
	}{
		{"unknown conversation", SendRequest{ConversationID: models.NewObjectID(), SenderID: f.sender.ID, Body: "x"}, apperrors.ErrNotFound},
		{"not a participant", SendRequest{ConversationID: f.convo.ID, SenderID: stranger, Body: "x"}, apperrors.ErrPermission},
		{"malformed conversation", SendRequest{ConversationID: "nope", SenderID: f.sender.ID}, apperrors.ErrValidation},
		{"malformed sender", SendRequest{ConversationID: f.convo.ID, SenderID: ""}, apperrors.ErrValidation},
		{"bad link type", SendRequest{
			ConversationID: f.convo.ID,
			SenderID:       f.sender.ID,
			Link:           &models.Link{Type: "video", Ref: models.NewObjectID()},
		}, apperrors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.relay.Send(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Send() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSendEmptyBodyIsShared(t *testing.T) {
	f := newFixture(t)
	link := &models.Link{Type: models.LinkMedia, Ref: models.NewObjectID()}

	msg, err := f.relay.Send(context.Background(), SendRequest{
		ConversationID: f.convo.ID,
		SenderID:       f.sender.ID,
		Link:           link,
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if msg.Body != models.SharedBody {
		t.Errorf("body = %q, want %q", msg.Body, models.SharedBody)
	}
	if msg.Link == nil || *msg.Link != *link {
		t.Errorf("link = %+v, want %+v", msg.Link, link)
	}
}

func TestForward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	third := &models.Profile{ID: models.NewObjectID(), Name: "Tia"}
	if err := f.store.PutProfile(ctx, third); err != nil {
		t.Fatal(err)
	}
	second := &models.Conversation{Type: models.ConversationPersonal, Profiles: []string{f.sender.ID, third.ID}}
	if err := f.store.CreateConversation(ctx, second); err != nil {
		t.Fatal(err)
	}
	f.block(t, third, f.sender)
	missing := models.NewObjectID()

	f.connect(t, f.sender.ID, presence.KindChat, 1)
	f.connect(t, f.recipient.ID, presence.KindChat, 10)
	f.connect(t, third.ID, presence.KindChat, 30)

	result, err := f.relay.Forward(ctx, ForwardRequest{
		ConversationIDs: []string{f.convo.ID, second.ID, missing},
		SenderID:        f.sender.ID,
		Body:            "look at this",
		Origin:          1,
	})
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if len(result.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(result.Items))
	}
	if result.Items[0].Err != nil || result.Items[0].Message == nil {
		t.Errorf("first item = %+v, want success", result.Items[0])
	}
	if !errors.Is(result.Items[1].Err, apperrors.ErrPermission) {
		t.Errorf("blocked item error = %v, want permission", result.Items[1].Err)
	}
	if !errors.Is(result.Items[2].Err, apperrors.ErrNotFound) {
		t.Errorf("missing item error = %v, want not found", result.Items[2].Err)
	}
	if got := len(result.Failed()); got != 2 {
		t.Errorf("Failed() = %d, want 2", got)
	}

	if got := f.emitter.ToHandle(30); len(got) != 0 {
		t.Errorf("blocked participant received %+v", got)
	}
	if got := f.emitter.ByEvent(models.EventNewMessage); len(got) != 1 || !slices.Equal(got[0].Handles, []presence.HandleID{10}) {
		t.Errorf("new-message = %+v, want one event to handle 10", got)
	}
	if got := f.emitter.ByEvent(models.EventForwardSuccess); len(got) != 1 {
		t.Errorf("forward-success events = %d, want 1", len(got))
	}
}

func TestForwardValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		req  ForwardRequest
	}{
		{"no conversations", ForwardRequest{SenderID: f.sender.ID}},
		{"malformed conversation", ForwardRequest{ConversationIDs: []string{f.convo.ID, "bad"}, SenderID: f.sender.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.relay.Forward(context.Background(), tt.req)
			if !errors.Is(err, apperrors.ErrValidation) {
				t.Errorf("Forward() error = %v, want validation", err)
			}
			msgs, _ := f.store.ListMessages(context.Background(), f.convo.ID)
			if len(msgs) != 0 {
				t.Errorf("stored %d messages, want 0", len(msgs))
			}
		})
	}
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(t, f.sender.ID, presence.KindChat, 1, 2)
	f.connect(t, f.recipient.ID, presence.KindChat, 10)

	msg, err := f.relay.Send(ctx, SendRequest{ConversationID: f.convo.ID, SenderID: f.sender.ID, Body: "oops"})
	if err != nil {
		t.Fatal(err)
	}
	f.emitter.Reset()

	if _, err := f.relay.Remove(ctx, msg.ID, f.recipient.ID, 10); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Remove() by non-author error = %v, want not found", err)
	}
	if got := len(f.emitter.Events()); got != 0 {
		t.Errorf("emitted %d events on failed remove", got)
	}

	removed, err := f.relay.Remove(ctx, msg.ID, f.sender.ID, 1)
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if removed.ID != msg.ID {
		t.Errorf("removed %s, want %s", removed.ID, msg.ID)
	}

	relayed := f.emitter.ByEvent(models.EventRemovedMessage)
	if len(relayed) != 1 || !slices.Equal(relayed[0].Handles, []presence.HandleID{10}) {
		t.Fatalf("removed-message = %+v, want one event to handle 10", relayed)
	}
	if payload, ok := relayed[0].Data.(RemovedMessage); !ok || payload.ID != msg.ID {
		t.Errorf("removed-message payload = %+v", relayed[0].Data)
	}
	if got := f.emitter.ByEvent(models.EventRemoveSuccess); len(got) != 1 || !slices.Equal(got[0].Handles, []presence.HandleID{1}) {
		t.Errorf("remove-success = %+v, want one event to handle 1", got)
	}

	convo, err := f.store.GetConversation(ctx, f.convo.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(convo.Messages) != 0 {
		t.Errorf("conversation messages = %v, want empty", convo.Messages)
	}

	if _, err := f.relay.Remove(ctx, msg.ID, f.sender.ID, 1); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second Remove() error = %v, want not found", err)
	}
	if _, err := f.relay.Remove(ctx, "bad", f.sender.ID, 1); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Remove(bad id) error = %v, want validation", err)
	}
}
