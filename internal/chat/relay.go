// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

// Package chat persists conversation messages and relays them to the live
// chat sessions of the participants.
//
// Every successful send, forward or removal is relayed to each open chat
// handle of every participant except the acting profile; the handle that
// issued the request receives an acknowledgement event instead. A sent
// message also raises a NEW_CHAT_MESSAGE notification for the recipient,
// which reaches them live or as a push depending on their presence.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/castline/internal/apperrors"
	"github.com/tomtom215/castline/internal/logging"
	"github.com/tomtom215/castline/internal/metrics"
	"github.com/tomtom215/castline/internal/models"
	"github.com/tomtom215/castline/internal/notify"
	"github.com/tomtom215/castline/internal/presence"
	"github.com/tomtom215/castline/internal/store"
	"github.com/tomtom215/castline/internal/validation"
)

// Store is the persistence the relay needs.
type Store interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	AppendMessage(ctx context.Context, m *models.Message) (*models.Conversation, error)
	DeleteMessage(ctx context.Context, messageID, profileID string) (*models.Message, *models.Conversation, error)
}

// Registry is the presence view the relay needs.
type Registry interface {
	LiveHandles(profileID string, kind presence.Kind) []presence.HandleID
}

// Notifier raises notifications.
type Notifier interface {
	Dispatch(ctx context.Context, n models.Notification) (*notify.Result, error)
}

// NoOrigin marks a request that did not come from a chat handle, such as
// an HTTP call. No acknowledgement is emitted for it.
const NoOrigin presence.HandleID = 0

// SendRequest posts one message to one conversation.
type SendRequest struct {
	ConversationID string       `json:"convo_id" validate:"required,mongodb"`
	SenderID       string       `json:"profile_id" validate:"required,mongodb"`
	Body           string       `json:"message"`
	Link           *models.Link `json:"link,omitempty"`
	// Origin is the handle that issued the request.
	Origin presence.HandleID `json:"-"`
}

// ForwardRequest posts the same message to several conversations.
type ForwardRequest struct {
	ConversationIDs []string          `json:"convos" validate:"required,min=1,dive,mongodb"`
	SenderID        string            `json:"profile_id" validate:"required,mongodb"`
	Body            string            `json:"message"`
	Link            *models.Link      `json:"link,omitempty"`
	Origin          presence.HandleID `json:"-"`
}

// ForwardItem is the outcome for one conversation of a forward.
type ForwardItem struct {
	ConversationID string          `json:"convo_id"`
	Message        *models.Message `json:"message,omitempty"`
	Err            error           `json:"-"`
}

// ForwardResult lists the per-conversation outcomes of a forward in request
// order.
type ForwardResult struct {
	Items []ForwardItem `json:"items"`
}

// Failed returns the items that did not succeed.
func (r *ForwardResult) Failed() []ForwardItem {
	var out []ForwardItem
	for _, it := range r.Items {
		if it.Err != nil {
			out = append(out, it)
		}
	}
	return out
}

// Relay handles chat operations.
type Relay struct {
	store    Store
	registry Registry
	emitter  presence.Emitter
	notifier Notifier
}

// NewRelay creates a Relay.
func NewRelay(st Store, registry Registry, emitter presence.Emitter, notifier Notifier) *Relay {
	return &Relay{
		store:    st,
		registry: registry,
		emitter:  emitter,
		notifier: notifier,
	}
}

// Send persists a message and relays it to the other participant.
func (r *Relay) Send(ctx context.Context, req SendRequest) (*models.Message, error) {
	if verr := validation.ValidateStruct(&req); verr != nil {
		metrics.RecordChatOperation("send", verr)
		return nil, apperrors.Validation("chat.Send", "%s", verr.Error())
	}

	msg, err := r.send(ctx, "chat.Send", req.ConversationID, req.SenderID, req.Body, req.Link)
	metrics.RecordChatOperation("send", err)
	if err != nil {
		return nil, err
	}

	r.ack(ctx, req.Origin, models.EventAddSuccess, msg)
	return msg, nil
}

// Forward runs the send pipeline once per conversation. A failing
// conversation does not stop the others; only an invalid request fails as
// a whole.
func (r *Relay) Forward(ctx context.Context, req ForwardRequest) (*ForwardResult, error) {
	if verr := validation.ValidateStruct(&req); verr != nil {
		metrics.RecordChatOperation("forward", verr)
		return nil, apperrors.Validation("chat.Forward", "%s", verr.Error())
	}

	result := &ForwardResult{Items: make([]ForwardItem, 0, len(req.ConversationIDs))}
	for _, convoID := range req.ConversationIDs {
		msg, err := r.send(ctx, "chat.Forward", convoID, req.SenderID, req.Body, req.Link)
		metrics.RecordChatOperation("forward", err)
		result.Items = append(result.Items, ForwardItem{ConversationID: convoID, Message: msg, Err: err})
		if err != nil {
			logging.Ctx(ctx).Debug().Err(err).
				Str("conversation_id", convoID).
				Str("profile_id", req.SenderID).
				Msg("Forward to conversation failed")
			continue
		}
		r.ack(ctx, req.Origin, models.EventForwardSuccess, msg)
	}
	return result, nil
}

// RemovedMessage is the payload of remove-success and removed-message.
type RemovedMessage struct {
	ID           string `json:"id"`
	Conversation string `json:"conversation"`
}

// Remove deletes a message authored by requesterID and relays the removal.
// A message authored by someone else is reported as not found.
func (r *Relay) Remove(ctx context.Context, messageID, requesterID string, origin presence.HandleID) (*models.Message, error) {
	msg, err := r.remove(ctx, messageID, requesterID, origin)
	metrics.RecordChatOperation("remove", err)
	return msg, err
}

func (r *Relay) remove(ctx context.Context, messageID, requesterID string, origin presence.HandleID) (*models.Message, error) {
	const op = "chat.Remove"
	if err := validation.ValidateVar(messageID, "required,mongodb"); err != nil {
		return nil, apperrors.Validation(op, "message_id must be a valid object id")
	}
	if err := validation.ValidateVar(requesterID, "required,mongodb"); err != nil {
		return nil, apperrors.Validation(op, "profile_id must be a valid object id")
	}

	msg, convo, err := r.store.DeleteMessage(ctx, messageID, requesterID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound(op, "message not found")
	}
	if err != nil {
		return nil, apperrors.Persistence(op, err)
	}

	payload := RemovedMessage{ID: msg.ID, Conversation: msg.Conversation}
	if convo != nil {
		r.relay(ctx, convo, requesterID, models.EventRemovedMessage, payload)
	}
	r.ack(ctx, origin, models.EventRemoveSuccess, payload)
	return msg, nil
}

// send is the pipeline shared by Send and Forward.
func (r *Relay) send(ctx context.Context, op, convoID, senderID, body string, link *models.Link) (*models.Message, error) {
	convo, err := r.store.GetConversation(ctx, convoID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound(op, "conversation not found")
	}
	if err != nil {
		return nil, apperrors.Persistence(op, err)
	}
	if !convo.HasParticipant(senderID) {
		return nil, apperrors.Permission(op, "not a participant of this conversation")
	}

	blocked, err := r.blocked(ctx, convo)
	if err != nil {
		return nil, apperrors.Persistence(op, err)
	}
	if blocked {
		return nil, apperrors.Permission(op, "conversation is blocked")
	}

	if body == "" {
		body = models.SharedBody
	}
	msg := &models.Message{
		Conversation: convo.ID,
		Profile:      senderID,
		Body:         body,
		Link:         link,
	}
	convo, err = r.store.AppendMessage(ctx, msg)
	if err != nil {
		return nil, apperrors.Persistence(op, err)
	}

	r.notify(ctx, convo, senderID)
	r.relay(ctx, convo, senderID, models.EventNewMessage, msg)
	return msg, nil
}

// blocked reports whether either participant has blocked the other.
// Participants without a profile record have blocked nobody.
func (r *Relay) blocked(ctx context.Context, convo *models.Conversation) (bool, error) {
	profiles := make([]*models.Profile, 0, len(convo.Profiles))
	for _, id := range convo.Profiles {
		p, err := r.store.GetProfile(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("load profile %s: %w", id, err)
		}
		profiles = append(profiles, p)
	}
	for _, p := range profiles {
		for _, other := range convo.Profiles {
			if other != p.ID && p.HasBlocked(other) {
				return true, nil
			}
		}
	}
	return false, nil
}

// notify raises NEW_CHAT_MESSAGE for the recipients. The message is already
// stored, so a failure here is logged only.
func (r *Relay) notify(ctx context.Context, convo *models.Conversation, senderID string) {
	if r.notifier == nil {
		return
	}
	recipients := convo.Others(senderID)
	if len(recipients) == 0 {
		return
	}
	_, err := r.notifier.Dispatch(ctx, models.Notification{
		Profiles:               recipients,
		Type:                   models.NotificationNewChatMessage,
		Message:                "@{profile:" + senderID + "} has sent you a message",
		Action:                 "/chat/" + convo.Type.Slug() + "/" + convo.ID,
		MentionedProfiles:      []string{senderID},
		MentionedConversations: []string{convo.ID},
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("conversation_id", convo.ID).
			Msg("Failed to raise chat notification")
	}
}

// relay emits event to the chat handles of every participant other than actorID.
func (r *Relay) relay(ctx context.Context, convo *models.Conversation, actorID, event string, data any) {
	var handles []presence.HandleID
	for _, p := range convo.Others(actorID) {
		handles = append(handles, r.registry.LiveHandles(p, presence.KindChat)...)
	}
	if len(handles) == 0 {
		return
	}
	if err := r.emitter.Emit(handles, event, data); err != nil {
		logging.Ctx(ctx).Debug().Err(err).
			Str("conversation_id", convo.ID).
			Str("event", event).
			Msg("Chat relay incomplete")
	}
}

func (r *Relay) ack(ctx context.Context, origin presence.HandleID, event string, data any) {
	if origin == NoOrigin {
		return
	}
	if err := r.emitter.Emit([]presence.HandleID{origin}, event, data); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("event", event).Msg("Chat acknowledgement not delivered")
	}
}
