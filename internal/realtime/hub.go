package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"eduoj/pkg/utils/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Broadcaster pushes named events to every connected client. Producers of
// events depend on this interface, never on the hub itself.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// Event is the wire envelope for pushed events.
type Event struct {
	Event   string `json:"event"`
	Result  any    `json:"result"`
	Success bool   `json:"success"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1024

	// sendBufferSize bounds each client's outbound queue; a client that
	// cannot drain it is dropped.
	sendBufferSize = 64
)

// Hub fans broadcast events out to connected WebSocket clients. It is
// constructed once at startup and shared; Run must be started on its own
// goroutine before the first connection arrives.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	clients    map[*client]struct{}

	upgrader websocket.Upgrader
}

// NewHub creates a hub with no connected clients.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 16),
		clients:    make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients connect from the classroom frontend on another
			// origin, so the default same-origin check is disabled.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Run owns the client set. It exits when ctx is cancelled, closing every
// remaining connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Broadcast sends an event to every connected client. Marshal failures are
// logged and dropped; event payloads are produced in-process and small.
func (h *Hub) Broadcast(event string, payload any) {
	msg, err := json.Marshal(Event{Event: event, Result: payload, Success: true})
	if err != nil {
		logger.Error(context.Background(), "marshal broadcast event failed",
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}
	h.broadcast <- msg
}

// ServeWS upgrades an HTTP request to a WebSocket connection and registers
// it with the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	h.register <- c

	go c.writePump()
	go c.readPump()
	return nil
}

// client is one WebSocket connection. Reads and writes each run on their own
// goroutine; the connection is written only from writePump.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump discards inbound messages. The push channel is one-way, but the
// read loop must run to process control frames and notice closed peers.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
