// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/castline/internal/apperrors"
	"github.com/tomtom215/castline/internal/chat"
	"github.com/tomtom215/castline/internal/logging"
	"github.com/tomtom215/castline/internal/models"
	"github.com/tomtom215/castline/internal/store"
	"github.com/tomtom215/castline/internal/validation"
)

// ListConversations returns the caller's conversations, most recently
// updated first. type=PERSONAL|PROFESSIONAL narrows the listing.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := requireSelf(rw, r)
	if !ok {
		return
	}

	ctype := models.ConversationType(r.URL.Query().Get("type"))
	if ctype != "" && !ctype.Valid() {
		rw.BadRequest("type must be PERSONAL or PROFESSIONAL")
		return
	}

	cs, err := h.store.ListConversations(r.Context(), id.ProfileID, ctype)
	if err != nil {
		rw.FromError(apperrors.Persistence("api.ListConversations", err))
		return
	}
	if cs == nil {
		cs = []models.Conversation{}
	}
	rw.List(cs, len(cs))
}

type createConversationRequest struct {
	ConnectID string                  `json:"connect_id" validate:"required,mongodb"`
	Type      models.ConversationType `json:"type" validate:"required,convotype"`
}

// CreateConversation opens a conversation between the caller and one of
// their connections.
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	const op = "api.CreateConversation"
	rw := NewResponseWriter(w, r)
	id, ok := requireSelf(rw, r)
	if !ok {
		return
	}

	var req createConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest("invalid request body: " + err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}
	if req.ConnectID == id.ProfileID {
		rw.BadRequest("cannot open a conversation with yourself")
		return
	}

	profile, err := h.store.GetProfile(r.Context(), id.ProfileID)
	if errors.Is(err, store.ErrNotFound) {
		rw.NotFound("profile not found")
		return
	}
	if err != nil {
		rw.FromError(apperrors.Persistence(op, err))
		return
	}
	if !profile.IsConnectedTo(req.ConnectID) {
		rw.Forbidden("profile is not a connection")
		return
	}

	convo := &models.Conversation{
		Type:     req.Type,
		Profiles: []string{id.ProfileID, req.ConnectID},
	}
	err = h.store.CreateConversation(r.Context(), convo)
	if errors.Is(err, store.ErrConflict) {
		rw.Conflict("conversation already exists")
		return
	}
	if err != nil {
		rw.FromError(apperrors.Persistence(op, err))
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("conversation_id", convo.ID).
		Str("profile_id", id.ProfileID).
		Str("connect_id", req.ConnectID).
		Msg("Conversation created")
	rw.Created(convo)
}

// ListMessages returns the messages of a conversation the caller takes
// part in, oldest first.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	const op = "api.ListMessages"
	rw := NewResponseWriter(w, r)
	id, ok := caller(rw, r)
	if !ok {
		return
	}

	convo, err := h.store.GetConversation(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		rw.NotFound("conversation not found")
		return
	}
	if err != nil {
		rw.FromError(apperrors.Persistence(op, err))
		return
	}
	if !convo.HasParticipant(id.ProfileID) {
		rw.Forbidden("not a participant")
		return
	}

	msgs, err := h.store.ListMessages(r.Context(), convo.ID)
	if err != nil {
		rw.FromError(apperrors.Persistence(op, err))
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	rw.List(msgs, len(msgs))
}

type sendMessageRequest struct {
	Body string       `json:"message"`
	Link *models.Link `json:"link,omitempty"`
}

// SendMessage posts a message as the caller and relays it to the other
// participant's open chat tabs.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := caller(rw, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest("invalid request body: " + err.Error())
		return
	}

	msg, err := h.chat.Send(r.Context(), chat.SendRequest{
		ConversationID: chi.URLParam(r, "id"),
		SenderID:       id.ProfileID,
		Body:           req.Body,
		Link:           req.Link,
		Origin:         chat.NoOrigin,
	})
	if err != nil {
		rw.FromError(err)
		return
	}
	rw.Created(msg)
}

// DeleteMessage removes a message the caller sent.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := caller(rw, r)
	if !ok {
		return
	}

	msg, err := h.chat.Remove(r.Context(), chi.URLParam(r, "id"), id.ProfileID, chat.NoOrigin)
	if err != nil {
		rw.FromError(err)
		return
	}
	rw.Success(msg)
}
