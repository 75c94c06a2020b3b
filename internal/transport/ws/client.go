package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/quizmatch/internal/model"
)

// Client is one websocket connection
type Client struct {
	id          string
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	connectedAt time.Time
}

// ID returns the connection id
func (c *Client) ID() string {
	return c.id
}

// writePump drains the send buffer to the socket and keeps the peer alive
// with pings. It exits when the hub closes the buffer or a write fails.
func (c *Client) writePump() {
	cfg := c.hub.cfg
	ticker := c.hub.clock.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(c.hub.clock.Now().Add(cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug("ws write failed",
					slog.String("conn_id", c.id),
					slog.String("error", err.Error()))
				return
			}

		case <-ticker.Chan():
			_ = c.conn.SetWriteDeadline(c.hub.clock.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.logger.Debug("ws ping failed",
					slog.String("conn_id", c.id),
					slog.String("error", err.Error()))
				return
			}
		}
	}
}

// readPump decodes envelopes and hands them to the dispatcher until the
// connection closes
func (c *Client) readPump() {
	cfg := c.hub.cfg
	defer func() {
		c.hub.removeClient(c)
		_ = c.conn.Close()
		if c.hub.dispatcher != nil {
			c.hub.dispatcher.Disconnect(c.id)
		}
	}()

	c.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(c.hub.clock.Now().Add(cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(c.hub.clock.Now().Add(cfg.ReadTimeout))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws unexpected close",
					slog.String("conn_id", c.id),
					slog.String("error", err.Error()))
			}
			return
		}
		_ = c.conn.SetReadDeadline(c.hub.clock.Now().Add(cfg.ReadTimeout))
		c.handleMessage(message)
	}
}

func (c *Client) handleMessage(message []byte) {
	var env model.Envelope
	if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
		c.hub.logger.Warn("ws frame rejected", slog.String("conn_id", c.id))
		if frame, err := encode(model.EventError, model.ErrorPayload{Message: "frame must be {\"event\":...,\"data\":...}"}); err == nil {
			c.hub.Send([]string{c.id}, frame)
		}
		return
	}
	if c.hub.dispatcher == nil {
		c.hub.logger.Warn("ws frame dropped, no dispatcher", slog.String("conn_id", c.id))
		return
	}
	c.hub.dispatcher.Dispatch(c.id, env.Event, env.Data)
}
