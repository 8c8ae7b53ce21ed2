// Package ws streams signed-order events to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/limitorder/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// Envelope types sent to clients.
const (
	TypeHubStatus   = "hub_status"
	TypeOrderSigned = "order_signed"
	TypeSubscribed  = "subscribed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware in front of the hub.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// envelope is the frame every message is wrapped in.
type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// orderEvent is the subset of a signed order the hub routes on.
type orderEvent struct {
	PrimaryType string `json:"primaryType"`
	Signer      string `json:"signer"`
}

// subscribeMsg narrows or widens the events a client receives. An empty
// filter set means every event.
//
//	{"action":"subscribe","signers":["0x..."],"primaryTypes":["OrderRFQ"]}
type subscribeMsg struct {
	Action       string   `json:"action"`
	Signers      []string `json:"signers"`
	PrimaryTypes []string `json:"primaryTypes"`
}

// client represents a single WebSocket connection.
type client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	mu      sync.RWMutex
	closed  bool
	signers map[string]bool
	types   map[string]bool
}

// Config carries metadata reported to clients on connect.
type Config struct {
	Wallet    string
	StartedAt time.Time
}

// Hub fans signed-order events from the SignalBus out to connected clients.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	done       chan struct{}
	bus        domain.SignalBus
	mu         sync.RWMutex
	logger     *slog.Logger
	wallet     string
	startedAt  time.Time
}

type broadcastMsg struct {
	event orderEvent
	data  []byte
}

// NewHub creates a hub reading from bus.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		bus:        bus,
		logger:     logger.With(slog.String("component", "ws")),
		wallet:     cfg.Wallet,
		startedAt:  startedAt,
	}
}

// Run subscribes to ChannelOrdersSigned and serves the hub until ctx is
// cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	msgCh, err := h.bus.Subscribe(ctx, domain.ChannelOrdersSigned)
	if err != nil {
		return err
	}
	go h.forward(ctx, msgCh)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", slog.Int("total_clients", n))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(msg.event) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					h.logger.Warn("dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// forward wraps bus payloads in an envelope and hands them to the loop.
func (h *Hub) forward(ctx context.Context, msgCh <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgCh:
			if !ok {
				h.logger.Warn("subscription closed", slog.String("channel", domain.ChannelOrdersSigned))
				return
			}
			var ev orderEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				h.logger.Warn("skipping malformed order event", slog.String("error", err.Error()))
				continue
			}
			frame, err := json.Marshal(envelope{Type: TypeOrderSigned, Payload: json.RawMessage(data)})
			if err != nil {
				continue
			}
			select {
			case h.broadcast <- broadcastMsg{event: ev, data: frame}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// HandleWS upgrades the request and registers the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		signers: make(map[string]bool),
		types:   make(map[string]bool),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	c.push(TypeHubStatus, map[string]any{
		"wallet":         h.wallet,
		"uptime_seconds": max(int64(time.Since(h.startedAt).Seconds()), 0),
	})

	go c.writePump()
	go c.readPump()
}

// readPump handles subscription messages until the connection drops.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close", slog.String("error", err.Error()))
			}
			return
		}

		var sub subscribeMsg
		if err := json.Unmarshal(message, &sub); err != nil || sub.Action == "" {
			continue
		}
		c.apply(sub)
	}
}

// apply updates the client's filters and acknowledges the new state.
func (c *client) apply(msg subscribeMsg) {
	c.mu.Lock()
	set := func(m map[string]bool, keys []string, on bool) {
		for _, k := range keys {
			k = strings.ToLower(strings.TrimSpace(k))
			if on {
				m[k] = true
			} else {
				delete(m, k)
			}
		}
	}
	switch msg.Action {
	case "subscribe":
		set(c.signers, msg.Signers, true)
		set(c.types, msg.PrimaryTypes, true)
	case "unsubscribe":
		set(c.signers, msg.Signers, false)
		set(c.types, msg.PrimaryTypes, false)
	}
	state := map[string]any{"signers": keys(c.signers), "primaryTypes": keys(c.types)}
	c.mu.Unlock()

	c.push(TypeSubscribed, state)
}

// wants reports whether ev passes the client's filters.
func (c *client) wants(ev orderEvent) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.signers) > 0 && !c.signers[strings.ToLower(ev.Signer)] {
		return false
	}
	if len(c.types) > 0 && !c.types[strings.ToLower(ev.PrimaryType)] {
		return false
	}
	return true
}

// push queues a control frame, dropping it if the buffer is full.
func (c *client) push(typ string, payload any) {
	msg, err := json.Marshal(envelope{Type: typ, Payload: payload})
	if err != nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// close closes send once. Only the hub loop calls it.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump writes queued frames and keepalive pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// keys returns the sorted set members, never nil.
func keys(m map[string]bool) []string {
	s := slices.Sorted(maps.Keys(m))
	if s == nil {
		s = []string{}
	}
	return s
}
