package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// writeTimeout bounds a single websocket write
	writeTimeout = 5 * time.Second
	// pingInterval is how often idle clients are pinged
	pingInterval = 30 * time.Second
	// sendBuffer is the number of messages queued per client before the
	// client is considered too slow and dropped
	sendBuffer = 64
)

// wsClient is a connected websocket subscriber
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans out messages to every connected websocket client
type Hub struct {
	upgrader websocket.Upgrader
	log      logrus.FieldLogger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

// NewHub returns an empty Hub
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:     log,
		clients: make(map[*wsClient]struct{}),
	}
}

// ServeHTTP upgrades the request to a websocket and subscribes it
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {

	conn, err := h.upgrader.Upgrade(w, r, nil)

	if err != nil {
		h.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	c := &wsClient{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.log.WithField("remote", r.RemoteAddr).Info("Websocket client connected")

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards client messages and unsubscribes the client once its
// connection fails
func (h *Hub) readLoop(c *wsClient) {

	defer h.remove(c)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop sends queued messages and keep alive pings to the client
func (h *Hub) writeLoop(c *wsClient) {

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeTimeout))
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil,
				time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// remove unsubscribes a client and stops its writer
func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast queues msg for every client.  Clients whose queue is full are
// disconnected rather than blocking the caller.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn("Dropping slow websocket client")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

// Close disconnects all clients and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true

	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
