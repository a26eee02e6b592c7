package realtime

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var clientIDs atomic.Uint64

// Client is one websocket connection and the rooms it joined.
type Client struct {
	id    uint64
	hub   *Hub
	conn  *websocket.Conn
	send  chan Message
	rooms map[string]struct{}
}

// NewClient wraps conn. Rooms are fixed for the connection's lifetime.
func NewClient(hub *Hub, conn *websocket.Conn, rooms ...string) *Client {
	c := &Client{
		id:    clientIDs.Add(1),
		hub:   hub,
		conn:  conn,
		send:  make(chan Message, 256),
		rooms: make(map[string]struct{}, len(rooms)),
	}
	for _, r := range rooms {
		c.rooms[r] = struct{}{}
	}
	return c
}

// In reports whether the client joined room.
func (c *Client) In(room string) bool {
	_, ok := c.rooms[room]
	return ok
}

// Rooms lists the joined rooms.
func (c *Client) Rooms() []string {
	out := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		out = append(out, r)
	}
	return out
}

// readPump keeps the read deadline fresh and notices disconnects. Frames
// sent by dashboards are discarded.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("unexpected websocket close", slog.Uint64("client", c.id), slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
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
			if err := c.conn.WriteJSON(msg); err != nil {
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

// Start runs the pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
