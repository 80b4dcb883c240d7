// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package websocket

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/castline/internal/apperrors"
	"github.com/tomtom215/castline/internal/auth"
	"github.com/tomtom215/castline/internal/chat"
	"github.com/tomtom215/castline/internal/config"
	"github.com/tomtom215/castline/internal/logging"
	"github.com/tomtom215/castline/internal/metrics"
	"github.com/tomtom215/castline/internal/models"
	"github.com/tomtom215/castline/internal/presence"
)

// operationTimeout bounds the handling of one inbound event.
const operationTimeout = 15 * time.Second

// Presence is the registry view the gateway needs.
type Presence interface {
	Register(ctx context.Context, profileID string, kind presence.Kind, handle presence.HandleID) error
	Deregister(profileID string, kind presence.Kind, handle presence.HandleID)
	Unread(profileID string) ([]models.Notification, bool)
	OnlineProfiles() []string
}

// ChatRelay handles chat channel events.
type ChatRelay interface {
	Send(ctx context.Context, req chat.SendRequest) (*models.Message, error)
	Forward(ctx context.Context, req chat.ForwardRequest) (*chat.ForwardResult, error)
	Remove(ctx context.Context, messageID, requesterID string, origin presence.HandleID) (*models.Message, error)
}

// ReadState handles read acknowledgements from the notification channel.
type ReadState interface {
	MarkRead(ctx context.Context, profileID, notificationID string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, profileID string) (int, error)
}

// GatewayDeps are the collaborators of a Gateway.
type GatewayDeps struct {
	Hub      *Hub
	Presence Presence
	Verifier auth.Verifier
	Chat     ChatRelay
	Reads    ReadState
}

// Gateway authenticates channel connections and routes their events.
type Gateway struct {
	hub      *Hub
	presence Presence
	verifier auth.Verifier
	chat     ChatRelay
	reads    ReadState
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader

	// activeMu orders active-profiles snapshots with their broadcast.
	activeMu sync.Mutex
}

// NewGateway creates a Gateway. allowedOrigins lists the browser origins
// that may open a channel; "*" allows any.
func NewGateway(deps GatewayDeps, cfg *config.WebSocketConfig, allowedOrigins []string) *Gateway {
	g := &Gateway{
		hub:      deps.Hub,
		presence: deps.Presence,
		verifier: deps.Verifier,
		chat:     deps.Chat,
		reads:    deps.Reads,
		cfg:      *cfg,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:   cfg.ReadBufferSize,
		WriteBufferSize:  cfg.WriteBufferSize,
		HandshakeTimeout: cfg.HandshakeTimeout,
		CheckOrigin:      originChecker(allowedOrigins),
	}
	return g
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

// ServeNotif upgrades a notification channel connection.
func (g *Gateway) ServeNotif(w http.ResponseWriter, r *http.Request) {
	g.serve(w, r, presence.KindNotif)
}

// ServeChat upgrades a chat channel connection.
func (g *Gateway) ServeChat(w http.ResponseWriter, r *http.Request) {
	g.serve(w, r, presence.KindChat)
}

func (g *Gateway) serve(w http.ResponseWriter, r *http.Request, kind presence.Kind) {
	identity, err := g.verifier.Verify(r.URL.Query().Get("token"), r.Header.Get("Origin"))
	if err != nil {
		metrics.WSAuthFailures.Inc()
		logging.Ctx(r.Context()).Debug().Err(err).Str("channel", string(kind)).Msg("websocket authentication failed")
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		metrics.WSErrors.WithLabelValues("upgrade").Inc()
		return
	}

	c := newClient(g.hub, conn, kind, identity, &g.cfg)
	g.hub.Attach(c)

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()
	if err := g.presence.Register(ctx, identity.ProfileID, kind, c.id); err != nil {
		metrics.WSErrors.WithLabelValues("register").Inc()
		logging.Warn().Err(err).Str("profile_id", identity.ProfileID).Msg("failed to register websocket session")
		g.hub.Detach(c)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"),
			time.Now().Add(g.cfg.WriteWait))
		_ = conn.Close()
		return
	}

	if kind == presence.KindNotif {
		unread, _ := g.presence.Unread(identity.ProfileID)
		if unread == nil {
			unread = []models.Notification{}
		}
		c.reply(Message{Type: models.EventNotifications, Data: unread})
		g.broadcastActiveProfiles()
	}

	logging.Debug().
		Str("profile_id", identity.ProfileID).
		Str("channel", string(kind)).
		Uint64("handle", uint64(c.id)).
		Msg("websocket session opened")

	c.start(g.handle, g.disconnect)
}

func (g *Gateway) disconnect(c *Client) {
	g.presence.Deregister(c.ProfileID(), c.kind, c.id)
	g.hub.Detach(c)
	if c.kind == presence.KindNotif {
		g.broadcastActiveProfiles()
	}
	logging.Debug().
		Str("profile_id", c.ProfileID()).
		Str("channel", string(c.kind)).
		Uint64("handle", uint64(c.id)).
		Msg("websocket session closed")
}

func (g *Gateway) broadcastActiveProfiles() {
	g.activeMu.Lock()
	defer g.activeMu.Unlock()
	g.hub.Broadcast(presence.KindNotif, models.EventActiveProfiles, g.presence.OnlineProfiles())
}

func (g *Gateway) handle(c *Client, in Inbound) {
	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()
	ctx = logging.ContextWithRequestID(ctx, logging.GenerateRequestID())

	if in.Type == models.EventPing {
		c.reply(Message{Type: models.EventPong})
		return
	}

	var err error
	switch c.kind {
	case presence.KindNotif:
		err = g.handleNotif(ctx, c, in)
	case presence.KindChat:
		err = g.handleChat(ctx, c, in)
	}
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).
			Str("event", in.Type).
			Str("profile_id", c.ProfileID()).
			Msg("websocket event rejected")
		c.reply(errorFor(err, ""))
	}
}

func (g *Gateway) handleNotif(ctx context.Context, c *Client, in Inbound) error {
	switch in.Type {
	case models.EventReadNotification:
		var id string
		if err := json.Unmarshal(in.Data, &id); err != nil {
			return apperrors.Validation("websocket.read", "data must be a notification id")
		}
		_, err := g.reads.MarkRead(ctx, c.ProfileID(), id)
		return err
	case models.EventReadAll:
		_, err := g.reads.MarkAllRead(ctx, c.ProfileID())
		return err
	default:
		return apperrors.Validation("websocket.notif", "unknown event %q", in.Type)
	}
}

type removeMessageData struct {
	MessageID string `json:"message_id"`
}

func (g *Gateway) handleChat(ctx context.Context, c *Client, in Inbound) error {
	switch in.Type {
	case models.EventAddMessage:
		var req chat.SendRequest
		if err := json.Unmarshal(in.Data, &req); err != nil {
			return apperrors.Validation("websocket.add", "malformed message")
		}
		req.SenderID = c.ProfileID()
		req.Origin = c.id
		_, err := g.chat.Send(ctx, req)
		return err

	case models.EventForwardMessage:
		var req chat.ForwardRequest
		if err := json.Unmarshal(in.Data, &req); err != nil {
			return apperrors.Validation("websocket.forward", "malformed message")
		}
		req.SenderID = c.ProfileID()
		req.Origin = c.id
		result, err := g.chat.Forward(ctx, req)
		if err != nil {
			return err
		}
		for _, item := range result.Failed() {
			c.reply(errorFor(item.Err, item.ConversationID))
		}
		return nil

	case models.EventRemoveMessage:
		var data removeMessageData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return apperrors.Validation("websocket.remove", "malformed message")
		}
		_, err := g.chat.Remove(ctx, data.MessageID, c.ProfileID(), c.id)
		return err

	default:
		return apperrors.Validation("websocket.chat", "unknown event %q", in.Type)
	}
}

func errorFor(err error, ref string) Message {
	kind := string(apperrors.KindOf(err))
	if kind == "" {
		kind = "internal"
	}
	return errorMessage(kind, apperrors.PublicMessage(err), ref)
}

func errorMessage(kind, message, ref string) Message {
	return Message{
		Type: models.EventError,
		Data: models.ErrorPayload{Kind: kind, Message: message, Ref: ref},
	}
}
