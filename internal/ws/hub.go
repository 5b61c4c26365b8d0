package ws

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = pingPeriod + 10*time.Second

	defaultBuffer = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS middleware decides who reaches the route
	},
}

// Message is what a tail client receives.
type Message struct {
	Type      string `json:"type"`
	Line      string `json:"line,omitempty"`
	Message   string `json:"message,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Dropped   int    `json:"dropped,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Metrics counts tail connections. *monitoring.Metrics implements it.
type Metrics interface {
	IncTailConnections()
	DecTailConnections()
}

type nopMetrics struct{}

func (nopMetrics) IncTailConnections() {}
func (nopMetrics) DecTailConnections() {}

type client struct {
	id      uuid.UUID
	conn    *websocket.Conn
	send    chan Message
	dropped int
}

// Hub broadcasts drained lines to live tail clients. It is a sink: a slow
// client loses lines instead of stalling the drain.
type Hub struct {
	logger  *zap.Logger
	metrics Metrics
	buffer  int

	mu      sync.RWMutex
	clients map[uuid.UUID]*client
	closed  bool
}

// NewHub creates an empty hub. A nil metrics disables counting.
func NewHub(logger *zap.Logger, metrics Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Hub{
		logger:  logger.Named("tail"),
		metrics: metrics,
		buffer:  defaultBuffer,
		clients: make(map[uuid.UUID]*client),
	}
}

// Clients is the number of connected tail clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// AppendLine implements shmlog.Sink.
func (h *Hub) AppendLine(line []byte) error {
	msg := Message{
		Type:      "line",
		Line:      string(bytes.TrimSuffix(line, []byte{'\n'})),
		Timestamp: time.Now().UnixMilli(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		msg.Dropped = c.dropped
		select {
		case c.send <- msg:
			c.dropped = 0
		default:
			c.dropped++
		}
	}
	return nil
}

// HandleConnection upgrades the request and streams lines until the client
// goes away.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan Message, h.buffer),
	}
	if !h.register(cl) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	h.reply(cl, Message{
		Type:      "system",
		Message:   "Connected to teelog tail",
		ClientID:  cl.id.String(),
		Timestamp: time.Now().UnixMilli(),
	})

	go h.writePump(cl)
	h.readPump(cl)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	h.metrics.IncTailConnections()
	h.logger.Info("Tail client connected", zap.Stringer("client_id", c.id))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	h.metrics.DecTailConnections()
	h.logger.Info("Tail client disconnected", zap.Stringer("client_id", c.id))
}

// readPump handles pings and notices the client leaving.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Tail read error", zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if msg.Type == "ping" {
			h.reply(c, Message{Type: "pong", Timestamp: time.Now().UnixMilli()})
		}
	}
}

func (h *Hub) reply(c *client, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// writePump is the only writer on the connection.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
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

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
		h.metrics.DecTailConnections()
	}
	return nil
}
