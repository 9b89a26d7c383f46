// Package hub fans game messages out to websocket clients of one session
// and feeds their commands back to the session.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
	// Outbound messages buffered before new ones are dropped.
	broadcastBuffer = 256
)

// Inbound is a command sent by a client.
type Inbound struct {
	Type   string `json:"type"` // "start", "reset", "strict", "input"
	Signal string `json:"signal,omitempty"`
	Strict bool   `json:"strict,omitempty"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	closeOnce  sync.Once
	count      atomic.Int32

	upgrader websocket.Upgrader
	handler  func(Inbound)
	log      zerolog.Logger
}

// New initializes a hub. origin restricts websocket upgrades to one Origin
// header; empty or "*" allows any.
func New(log zerolog.Logger, origin string) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			got := r.Header.Get("Origin")
			return got == "" || origin == "" || origin == "*" || got == origin
		},
	}
	return h
}

// SetHandler sets the function receiving client commands. Call before Run.
func (h *Hub) SetHandler(fn func(Inbound)) { h.handler = fn }

// Run handles registrations and broadcasts until ctx is done or Close is called.
func (h *Hub) Run(ctx context.Context) {
	defer h.dropAll()
	for {
		select {
		case <-ctx.Done():
			h.Close()
			return
		case <-h.done:
			return
		case client := <-h.register:
			h.clients[client] = true
			h.count.Add(1)
			h.log.Debug().Int32("clients", h.count.Load()).Msg("websocket client connected")
		case client := <-h.unregister:
			h.remove(client)
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.count.Add(-1)
	h.log.Debug().Int32("clients", h.count.Load()).Msg("websocket client disconnected")
}

func (h *Hub) dropAll() {
	for c := range h.clients {
		h.remove(c)
	}
}

// Close stops the hub and disconnects every client. Safe to call twice.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Done is closed once the hub is closed.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Clients reports the number of connected clients.
func (h *Hub) Clients() int { return int(h.count.Load()) }

// Publish serializes v and queues it for every client. It never blocks:
// when the buffer is full the message is dropped.
func (h *Hub) Publish(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg("serialize hub message")
		return
	}
	select {
	case <-h.done:
	case h.broadcast <- payload:
	default:
		h.log.Warn().Msg("hub buffer full, message dropped")
	}
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	c := &Client{hub: h, conn: conn, send: make(chan []byte, broadcastBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// Client is one websocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump delivers client commands to the hub handler.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn().Err(err).Msg("websocket read")
			}
			return
		}
		var in Inbound
		if err := json.Unmarshal(message, &in); err != nil {
			c.hub.log.Warn().Err(err).Msg("malformed client message")
			continue
		}
		if c.hub.handler != nil {
			c.hub.handler(in)
		}
	}
}

// writePump sends queued messages and keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
