package bridge

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// HubConfig configures a Hub.
type HubConfig struct {
	// ReadBufferSize and WriteBufferSize size the WebSocket buffers.
	// Zero uses gorilla's defaults.
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates the Origin header of upgrade requests.
	// Nil accepts same-origin requests only.
	CheckOrigin func(r *http.Request) bool

	// SendQueue is the number of messages buffered per connection before
	// the connection is dropped as too slow.
	// Default: 64.
	SendQueue int

	// WriteTimeout bounds each frame write.
	// Default: 10s.
	WriteTimeout time.Duration

	// Logger receives connection errors.
	// Default: slog.Default().
	Logger *slog.Logger
}

// Hub relays notifications between connected clients.
type Hub struct {
	upgrader     websocket.Upgrader
	sendQueue    int
	writeTimeout time.Duration
	logger       *slog.Logger

	mu     sync.RWMutex
	conns  map[*hubConn]struct{}
	closed bool
}

type hubConn struct {
	ws   *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *hubConn) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// NewHub creates a hub with no connections.
func NewHub(cfg HubConfig) *Hub {
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		sendQueue:    cfg.SendQueue,
		writeTimeout: cfg.WriteTimeout,
		logger:       cfg.Logger,
		conns:        make(map[*hubConn]struct{}),
	}
}

// ServeHTTP upgrades the request and relays the connection's messages
// until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("bridge upgrade failed", "error", err)
		return
	}

	c := &hubConn{ws: ws, send: make(chan []byte, h.sendQueue)}
	if !h.add(c) {
		ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "hub closed"))
		ws.Close()
		return
	}

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) add(c *hubConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *hubConn) {
	h.mu.Lock()
	_, ok := h.conns[c]
	delete(h.conns, c)
	h.mu.Unlock()

	if ok {
		c.close()
	}
}

func (h *Hub) readLoop(c *hubConn) {
	defer h.remove(c)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				h.logger.Error("bridge read error", "error", err)
			}
			return
		}

		if _, err := decodeMessage(data); err != nil {
			h.logger.Warn("bridge message dropped", "error", err)
			continue
		}
		h.relay(data, c)
	}
}

func (h *Hub) writeLoop(c *hubConn) {
	defer c.ws.Close()

	for data := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("bridge write error", "error", err)
			h.remove(c)
			return
		}
	}

	c.ws.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// relay queues data on every connection except from.
func (h *Hub) relay(data []byte, from *hubConn) {
	h.mu.RLock()
	targets := make([]*hubConn, 0, len(h.conns))
	for c := range h.conns {
		if c != from {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.enqueue(c, data)
	}
}

func (h *Hub) enqueue(c *hubConn, data []byte) {
	// send is closed only after c leaves conns.
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.conns[c]; !ok {
		return
	}

	select {
	case c.send <- data:
	default:
		h.logger.Warn("bridge connection too slow, dropping")
		go h.remove(c)
	}
}

// Broadcast sends m to every connection.
func (h *Hub) Broadcast(m Message) error {
	data, err := encodeMessage(m)
	if err != nil {
		return err
	}
	h.relay(data, nil)
	return nil
}

// Len returns the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conns := h.conns
	h.conns = make(map[*hubConn]struct{})
	h.mu.Unlock()

	for c := range conns {
		c.close()
	}
	return nil
}
