// Package realtime pushes domain events to dashboards over websockets.
// Connections are grouped in rooms: one per user plus the admin room.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/gorilla/websocket"

	"signage-ads/internal/core/port"
)

var _ port.Broadcaster = (*Hub)(nil)

// ErrBacklog is returned by Emit when the broadcast queue is full.
var ErrBacklog = errors.New("realtime: broadcast queue full")

// Message is the frame written to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type envelope struct {
	Room    string  `json:"room"`
	Message Message `json:"message"`
}

// Relay forwards emits to hubs running in other processes.
type Relay interface {
	Forward(ctx context.Context, room string, msg Message) error
}

// Hub tracks connected clients and fans room messages out to them.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	broadcast chan envelope
	clients   map[*Client]struct{}
	mu        sync.RWMutex
	done      chan struct{}
	stopOnce  sync.Once

	relay    Relay
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithRelay forwards every Emit through r as well.
func WithRelay(r Relay) HubOption {
	return func(h *Hub) { h.relay = r }
}

// WithAllowedOrigins restricts websocket upgrades to the listed origins.
func WithAllowedOrigins(origins ...string) HubOption {
	return func(h *Hub) {
		if len(origins) == 0 {
			return
		}
		allowed := make(map[string]struct{}, len(origins))
		for _, o := range origins {
			allowed[o] = struct{}{}
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		}
	}
}

// NewHub creates a hub. Call RunWithContext to start it.
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan envelope, 256),
		clients:    make(map[*Client]struct{}),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "realtime_hub")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Emit queues event for every client in room. It does not wait for
// delivery.
func (h *Hub) Emit(ctx context.Context, room, event string, payload any) error {
	msg := Message{Type: event, Data: payload}
	if err := h.enqueue(room, msg); err != nil {
		return err
	}
	if h.relay != nil {
		return h.relay.Forward(ctx, room, msg)
	}
	return nil
}

func (h *Hub) enqueue(room string, msg Message) error {
	select {
	case h.broadcast <- envelope{Room: room, Message: msg}:
		return nil
	default:
		h.logger.Warn("broadcast queue full, dropping message",
			slog.String("room", room), slog.String("type", msg.Type))
		return ErrBacklog
	}
}

// RunWithContext serves register, unregister and broadcast requests until
// ctx is done, then closes every client.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// lifecycle events first so a broadcast never misses a fresh client
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case c := <-h.Register:
			h.add(c)
			continue
		case c := <-h.Unregister:
			h.remove(c)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case c := <-h.Register:
			h.add(c)
		case c := <-h.Unregister:
			h.remove(c)
		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client connected", slog.Uint64("client", c.id), slog.Any("rooms", c.Rooms()), slog.Int("total", n))
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("client disconnected", slog.Uint64("client", c.id), slog.Int("total", n))
}

// deliver writes env to the room members in client id order. Clients that
// cannot keep up are dropped.
func (h *Hub) deliver(env envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c.In(env.Room) {
			members = append(members, c)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].id < members[j].id })

	for _, c := range members {
		select {
		case c.send <- env.Message:
		default:
			h.logger.Warn("client too slow, disconnecting", slog.Uint64("client", c.id))
			close(c.send)
			delete(h.clients, c)
		}
	}
}

func (h *Hub) closeAll() {
	h.stopOnce.Do(func() { close(h.done) })
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.logger.Info("realtime hub stopped")
}

// ClientCount returns the number of clients in room, or all clients when
// room is empty.
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if room == "" {
		return len(h.clients)
	}
	n := 0
	for c := range h.clients {
		if c.In(room) {
			n++
		}
	}
	return n
}

// ServeWS upgrades the request and joins the connection to rooms.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, rooms ...string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		h.logger.Debug("websocket upgrade failed", slog.Any("error", err))
		return
	}
	c := NewClient(h, conn, rooms...)
	select {
	case h.Register <- c:
		c.Start()
	case <-h.done:
		_ = conn.Close()
	}
}
