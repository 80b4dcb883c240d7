// Castline - Real-time Presence and Notification Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/castline

package websocket

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/castline/internal/auth"
	"github.com/tomtom215/castline/internal/config"
	"github.com/tomtom215/castline/internal/logging"
	"github.com/tomtom215/castline/internal/metrics"
	"github.com/tomtom215/castline/internal/presence"
)

// Inbound is a frame received from a client. Data is decoded by the handler
// of its event type.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Client is one open channel connection. It owns a read goroutine and a
// write goroutine; everything sent to it goes through its send queue.
type Client struct {
	id       presence.HandleID
	kind     presence.Kind
	identity auth.Identity
	hub      *Hub
	conn     *websocket.Conn
	send     chan Message
	limiter  *rate.Limiter

	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	maxMessageSize int64
}

func newClient(hub *Hub, conn *websocket.Conn, kind presence.Kind, identity auth.Identity, cfg *config.WebSocketConfig) *Client {
	return &Client{
		id:             hub.NewHandle(),
		kind:           kind,
		identity:       identity,
		hub:            hub,
		conn:           conn,
		send:           make(chan Message, cfg.SendBuffer),
		limiter:        rate.NewLimiter(rate.Limit(cfg.InboundRate), cfg.InboundBurst),
		writeWait:      cfg.WriteWait,
		pongWait:       cfg.PongWait,
		pingPeriod:     (cfg.PongWait * 9) / 10,
		maxMessageSize: cfg.MaxMessageSize,
	}
}

// ID returns the handle of the connection.
func (c *Client) ID() presence.HandleID {
	return c.id
}

// Kind returns the channel the connection is on.
func (c *Client) Kind() presence.Kind {
	return c.kind
}

// ProfileID returns the authenticated owner of the connection.
func (c *Client) ProfileID() string {
	return c.identity.ProfileID
}

// start runs the pumps. handle is called from the read goroutine for every
// accepted frame; done is called once after the read side has stopped.
func (c *Client) start(handle func(*Client, Inbound), done func(*Client)) {
	go c.writePump()
	go c.readPump(handle, done)
}

func (c *Client) readPump(handle func(*Client, Inbound), done func(*Client)) {
	defer func() {
		done(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				metrics.WSErrors.WithLabelValues("read").Inc()
				logging.Debug().Err(err).Uint64("handle", uint64(c.id)).Msg("unexpected websocket close")
			}
			return
		}
		metrics.WSMessagesReceived.WithLabelValues(string(c.kind)).Inc()

		if !c.limiter.Allow() {
			metrics.WSErrors.WithLabelValues("rate_limited").Inc()
			c.reply(errorMessage("rate_limited", "too many events", ""))
			continue
		}

		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil || in.Type == "" {
			metrics.WSErrors.WithLabelValues("malformed").Inc()
			c.reply(errorMessage("validation", "malformed frame", ""))
			continue
		}
		handle(c, in)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				return
			}
			if !ok {
				// The hub closed the queue.
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			payload, err := json.Marshal(msg)
			if err != nil {
				metrics.WSErrors.WithLabelValues("encode").Inc()
				logging.Error().Err(err).Str("message_type", msg.Type).Msg("failed to encode websocket message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply queues msg for this connection only.
func (c *Client) reply(msg Message) {
	if err := c.hub.Emit([]presence.HandleID{c.id}, msg.Type, msg.Data); err != nil {
		logging.Debug().Err(err).Uint64("handle", uint64(c.id)).Msg("reply not delivered")
	}
}
