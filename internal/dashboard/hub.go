package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vk/bundlescope/internal/ctxlog"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait      = 10 * time.Second
	clientSendSize = 64
)

// client is one connected websocket subscriber.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans extraction progress events out to websocket subscribers.
// Clients that cannot keep up are dropped rather than allowed to stall the
// broadcast loop.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewHub creates a stopped Hub; call Run in a goroutine to start it.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run is the hub's event loop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			for c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[*client]bool)
			return
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow client: drop it.
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Stop shuts the hub down and disconnects every client.
func (h *Hub) Stop() {
	h.cancel()
}

// Broadcast marshals v and queues it for every connected client.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.ctx.Done():
	default:
		// Broadcast backlog full; progress events are advisory.
	}
}

// ServeWS upgrades an HTTP request and attaches the client to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed.", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientSendSize)}
	select {
	case h.register <- c:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(h)
}

// writePump drains the send channel onto the wire.
func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump discards inbound frames and detects the peer going away.
func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.ctx.Done():
		}
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
