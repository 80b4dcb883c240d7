// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/castline/internal/apperrors"
	"github.com/tomtom215/castline/internal/eventprocessor"
	"github.com/tomtom215/castline/internal/logging"
	"github.com/tomtom215/castline/internal/models"
	"github.com/tomtom215/castline/internal/validation"
)

// ListNotifications returns the caller's notifications, newest first.
// Chat, connection request and invite notifications are surfaced elsewhere
// and never listed here.
//
// Query parameters: read=true|false, type=<NotificationType>.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := requireSelf(rw, r)
	if !ok {
		return
	}

	filter := models.NotificationFilter{ExcludeTypes: models.ListingHiddenTypes}
	if raw := r.URL.Query().Get("read"); raw != "" {
		read, err := strconv.ParseBool(raw)
		if err != nil {
			rw.BadRequest("read must be true or false")
			return
		}
		filter.Read = &read
	}
	if raw := r.URL.Query().Get("type"); raw != "" {
		t := models.NotificationType(raw)
		if !t.Valid() {
			rw.BadRequest("unknown notification type " + raw)
			return
		}
		filter.Type = t
	}

	ns, err := h.store.ListNotifications(r.Context(), id.ProfileID, filter)
	if err != nil {
		rw.FromError(apperrors.Persistence("api.ListNotifications", err))
		return
	}
	if ns == nil {
		ns = []models.Notification{}
	}
	rw.List(ns, len(ns))
}

type subscribeRequest struct {
	Subscription models.WebPushSubscription `json:"subscription" validate:"required"`
}

// Subscribe stores the caller's web push subscription, replacing any
// previous one.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := caller(rw, r)
	if !ok {
		return
	}

	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest("invalid request body: " + err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}

	sub, err := h.store.UpsertPushSubscription(r.Context(), &models.PushSubscription{
		Profile:      id.ProfileID,
		Subscription: req.Subscription,
	})
	if err != nil {
		rw.FromError(apperrors.Persistence("api.Subscribe", err))
		return
	}
	logging.Ctx(r.Context()).Debug().Str("profile_id", id.ProfileID).Msg("Push subscription stored")
	rw.Success(sub)
}

// MarkRead marks one notification read for the caller.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := caller(rw, r)
	if !ok {
		return
	}

	n, err := h.reads.MarkRead(r.Context(), id.ProfileID, chi.URLParam(r, "id"))
	if err != nil {
		rw.FromError(err)
		return
	}
	rw.Success(n)
}

// MarkAllRead marks every notification of the caller read.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := caller(rw, r)
	if !ok {
		return
	}

	changed, err := h.reads.MarkAllRead(r.Context(), id.ProfileID)
	if err != nil {
		rw.FromError(err)
		return
	}
	rw.Success(map[string]int{"changed": changed})
}

// DispatchNotification raises a notification on behalf of another service.
// With async=true the notification is queued on the event stream and 202
// is returned with the event id; otherwise it is delivered before
// responding.
func (h *Handler) DispatchNotification(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var n models.Notification
	if err := decodeJSON(r, &n); err != nil {
		rw.BadRequest("invalid request body: " + err.Error())
		return
	}

	if r.URL.Query().Get("async") == "true" {
		h.publishNotification(rw, r, n)
		return
	}

	result, err := h.notifier.Dispatch(r.Context(), n)
	if err != nil {
		rw.FromError(err)
		return
	}
	if result.Duplicate {
		rw.Success(result)
		return
	}
	rw.Created(result)
}

func (h *Handler) publishNotification(rw *ResponseWriter, r *http.Request, n models.Notification) {
	if h.publisher == nil {
		rw.ServiceUnavailable("event stream is disabled")
		return
	}
	if verr := validation.ValidateStruct(&n); verr != nil {
		rw.ValidationError(verr)
		return
	}

	event := eventprocessor.NewNotificationEvent(eventprocessor.SourceAPI, n)
	if err := h.publisher.PublishNotification(r.Context(), event); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("event_id", event.EventID).Msg("Failed to publish notification event")
		rw.ServiceUnavailable("event stream unavailable")
		return
	}
	rw.Accepted(map[string]string{"event_id": event.EventID})
}
