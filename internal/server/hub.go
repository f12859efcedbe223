package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mdobak/go-xerrors"

	"github.com/ayusman/lune/internal/log"
	"github.com/ayusman/lune/internal/session"
)

const (
	// hubSendBuffer is the per-client queue; results are dropped for a
	// client whose queue is full.
	hubSendBuffer = 8
	writeTimeout  = 5 * time.Second
)

type hubClient struct {
	conn   *websocket.Conn
	binary bool
	send   chan []byte
}

// Hub broadcasts camera results to every /api/live websocket client.
type Hub struct {
	clients map[*hubClient]struct{}
	mu      sync.RWMutex
	closed  bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*hubClient]struct{})}
}

// ServeHTTP upgrades the connection and registers it until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnw("websocket upgrade", "error", xerrors.New(err))
		return
	}

	c := &hubClient{conn: conn, binary: wantsMsgpack(r), send: make(chan []byte, hubSendBuffer)}
	if !h.add(c) {
		conn.Close()
		return
	}
	defer h.remove(c)

	go c.writeLoop()

	// Reads only detect the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *hubClient) writeLoop() {
	defer c.conn.Close()
	kind := websocket.TextMessage
	if c.binary {
		kind = websocket.BinaryMessage
	}
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(kind, msg); err != nil {
			return
		}
	}
}

func (h *Hub) add(c *hubClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast queues a result for every client. Each wire format is encoded
// at most once.
func (h *Hub) Broadcast(res session.Result) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var text, binary []byte
	for c := range h.clients {
		msg := text
		if c.binary {
			msg = binary
		}
		if msg == nil {
			body, _, err := encode(res, c.binary)
			if err != nil {
				log.Errorw("encoding live result", "error", err)
				return
			}
			if c.binary {
				binary = body
			} else {
				text = body
			}
			msg = body
		}

		select {
		case c.send <- msg:
		default:
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all clients and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
