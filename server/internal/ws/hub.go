package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bizpulse/bizpulse/server/internal/api"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long a client may stay silent before it is dropped.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxClientMessage caps frames read from clients; they only send control frames.
	maxClientMessage = 512
)

// Event names carried in Message.Event.
const (
	EventSnapshot = "snapshot" // periodic or on-connect state
	EventUpdate   = "update"   // pushed right after an ingest
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins; callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string               `json:"event"`
	Data  api.SnapshotResponse `json:"data"`
}

// Snapshotter builds the payload broadcast to clients; *api.Handler implements it.
type Snapshotter interface {
	Snapshot() api.SnapshotResponse
}

// Hub keeps the connected clients and pushes the current snapshot to all of
// them every interval and after Notify.
//
// Every message is a complete snapshot, so a client that falls behind only
// ever receives the newest one: a pending unsent message is replaced rather
// than queued.
type Hub struct {
	source   Snapshotter
	interval time.Duration
	notify   chan struct{}

	mu      sync.Mutex
	clients map[*client]struct{}
}

// client is one connected WebSocket peer with a one-slot mailbox.
type client struct {
	conn    *websocket.Conn
	mailbox chan []byte
	done    chan struct{}
	once    sync.Once
}

// New creates a Hub that reads from src and broadcasts every interval.
func New(src Snapshotter, interval time.Duration) *Hub {
	return &Hub{
		source:   src,
		interval: interval,
		notify:   make(chan struct{}, 1),
		clients:  make(map[*client]struct{}),
	}
}

// Notify asks Run to broadcast an update now. It never blocks; several
// calls before the next broadcast collapse into one.
func (h *Hub) Notify() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Run broadcasts on every tick and on every Notify until ctx is cancelled,
// then closes all connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			h.broadcast(EventSnapshot)
		case <-h.notify:
			h.broadcast(EventUpdate)
		}
	}
}

// ServeHTTP upgrades the connection, sends the current snapshot, and then
// streams broadcasts until the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn:    conn,
		mailbox: make(chan []byte, 1),
		done:    make(chan struct{}),
	}
	if data, err := h.encode(EventSnapshot); err == nil {
		c.offer(data)
	}
	h.add(c)
	slog.Debug("ws: client connected", "remote", r.RemoteAddr, "clients", h.Count())

	go c.writeLoop()
	c.readLoop()

	h.remove(c)
	slog.Debug("ws: client disconnected", "remote", r.RemoteAddr)
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *Hub) broadcast(event string) {
	data, err := h.encode(event)
	if err != nil {
		slog.Warn("ws: encode snapshot failed", "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.offer(data)
	}
}

func (h *Hub) encode(event string) ([]byte, error) {
	return json.Marshal(Message{Event: event, Data: h.source.Snapshot()})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

// offer puts data in the mailbox, replacing an undelivered older message.
func (c *client) offer(data []byte) {
	for {
		select {
		case c.mailbox <- data:
			return
		default:
		}
		select {
		case <-c.mailbox:
		default:
		}
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// writeLoop delivers mailbox messages and keepalive pings. It owns all
// writes to the connection.
func (c *client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case msg := <-c.mailbox:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop consumes control frames and returns once the peer disconnects
// or the connection is closed by writeLoop.
func (c *client) readLoop() {
	c.conn.SetReadLimit(maxClientMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
