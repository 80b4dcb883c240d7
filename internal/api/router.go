// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/castline/internal/authz"
	"github.com/tomtom215/castline/internal/middleware"
)

// Authenticator guards routes with bearer token verification.
type Authenticator interface {
	Authenticate(next http.Handler) http.Handler
}

// Authorizer guards routes with a policy check.
type Authorizer interface {
	Require(object, action string) func(http.Handler) http.Handler
}

// ChannelServer upgrades the two duplex channels.
type ChannelServer interface {
	ServeNotif(w http.ResponseWriter, r *http.Request)
	ServeChat(w http.ResponseWriter, r *http.Request)
}

// Router wires the handlers into a chi mux.
type Router struct {
	handler       *Handler
	auth          Authenticator
	authz         Authorizer
	channels      ChannelServer
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router. channels may be nil, in which case the
// /ws routes are not mounted.
func NewRouter(handler *Handler, auth Authenticator, authorizer Authorizer, channels ChannelServer, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		auth:          auth,
		authz:         authorizer,
		channels:      channels,
		chiMiddleware: mw,
	}
}

// SetupChi builds the HTTP handler.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog)

	r.Get("/health", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Channels authenticate with the token query parameter.
	if router.channels != nil {
		r.Get("/ws/notif", router.channels.ServeNotif)
		r.Get("/ws/chat", router.channels.ServeChat)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(router.auth.Authenticate)

		r.Get("/profiles/{id}/notifications", router.handler.ListNotifications)
		r.Get("/profiles/{id}/conversations", router.handler.ListConversations)
		r.Post("/profiles/{id}/conversations", router.handler.CreateConversation)

		r.Route("/notifications", func(r chi.Router) {
			r.With(router.authz.Require(authz.ObjectNotifications, authz.ActionDispatch)).
				Post("/", router.handler.DispatchNotification)
			r.With(router.authz.Require(authz.ObjectSubscriptions, authz.ActionWrite)).
				Post("/subscribe", router.handler.Subscribe)
			r.With(router.authz.Require(authz.ObjectNotifications, authz.ActionUpdate)).
				Post("/read-all", router.handler.MarkAllRead)
			r.With(router.authz.Require(authz.ObjectNotifications, authz.ActionUpdate)).
				Post("/{id}/read", router.handler.MarkRead)
		})

		r.Get("/conversations/{id}/messages", router.handler.ListMessages)
		r.With(router.authz.Require(authz.ObjectMessages, authz.ActionWrite)).
			Post("/conversations/{id}/messages", router.handler.SendMessage)
		r.With(router.authz.Require(authz.ObjectMessages, authz.ActionDelete)).
			Delete("/messages/{id}", router.handler.DeleteMessage)
	})

	return r
}
