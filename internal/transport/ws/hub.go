package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcoot/quizmatch/internal/dependencies/clock"
	"github.com/mcoot/quizmatch/internal/model"
)

// EventConnected is sent to a connection once, right after the upgrade. Its
// data carries the connection id.
const EventConnected model.EventType = "connected"

// ConnectedPayload is the data of the connected event
type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

// Dispatcher receives frames read from connections
type Dispatcher interface {
	Dispatch(connID string, event model.EventType, data json.RawMessage)
	Disconnect(connID string)
}

// Config holds websocket settings
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns the websocket defaults
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  64 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// Hub owns every websocket connection. Frames are addressed by connection id;
// room membership is tracked by the session layer.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex

	upgrader   websocket.Upgrader
	cfg        Config
	dispatcher Dispatcher
	clock      clock.Clock
	logger     *slog.Logger

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub creates a Hub. SetDispatcher must be called before serving.
func NewHub(cfg Config, clk clock.Clock, logger *slog.Logger) *Hub {
	def := DefaultConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = def.SendBufferSize
	}
	if cfg.CheckOrigin == nil {
		cfg.CheckOrigin = def.CheckOrigin
	}

	return &Hub{
		clients: make(map[string]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		cfg:        cfg,
		clock:      clk,
		logger:     logger.With(slog.String("component", "ws")),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// SetDispatcher sets where inbound frames go
func (h *Hub) SetDispatcher(d Dispatcher) {
	h.dispatcher = d
}

// Run manages client registration until ctx is cancelled, then closes every
// connection
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("ws hub started")
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			clientCount := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered",
				slog.String("conn_id", client.id),
				slog.Int("total_clients", clientCount))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
				clientCount := len(h.clients)
				h.mu.Unlock()
				h.logger.Info("ws client unregistered",
					slog.String("conn_id", client.id),
					slog.Duration("connection_duration", h.clock.Since(client.connectedAt)),
					slog.Int("total_clients", clientCount))
			} else {
				h.mu.Unlock()
			}

		case <-ctx.Done():
			h.mu.Lock()
			clientCount := len(h.clients)
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.logger.Info("ws hub stopped", slog.Int("disconnected_clients", clientCount))
			return
		}
	}
}

func (h *Hub) addClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) removeClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ServeHTTP upgrades the request and starts the connection's pumps
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the error response
		h.logger.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := &Client{
		id:          uuid.NewString(),
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, h.cfg.SendBufferSize),
		connectedAt: h.clock.Now(),
	}
	// Queued before registering, while nothing else can close the buffer
	if frame, err := encode(EventConnected, ConnectedPayload{ConnectionID: client.id}); err == nil {
		client.send <- frame
	}
	if !h.addClient(client) {
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Send queues a frame on each listed connection. Unknown ids are skipped and
// a full buffer drops the frame.
func (h *Hub) Send(connIDs []string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, id := range connIDs {
		client, ok := h.clients[id]
		if !ok {
			h.logger.Debug("ws send to unknown connection", slog.String("conn_id", id))
			continue
		}
		h.deliver(client, frame)
	}
}

// Broadcast queues a frame on every connection
func (h *Hub) Broadcast(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sentCount := 0
	droppedCount := 0
	for _, client := range h.clients {
		if h.deliver(client, frame) {
			sentCount++
		} else {
			droppedCount++
		}
	}
	if droppedCount > 0 {
		h.logger.Warn("ws broadcast partial failure",
			slog.Int("sent", sentCount),
			slog.Int("dropped", droppedCount))
	}
}

// deliver performs a non-blocking send. Callers hold at least the read lock.
func (h *Hub) deliver(client *Client, frame []byte) bool {
	select {
	case client.send <- frame:
		return true
	default:
		h.logger.Warn("ws message dropped - client buffer full",
			slog.String("conn_id", client.id))
		return false
	}
}

// ClientCount returns the number of open connections
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func encode(event model.EventType, data any) ([]byte, error) {
	env := model.Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}
