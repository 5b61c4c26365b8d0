package ws

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gaugeMetrics struct {
	mu sync.Mutex
	n  int
}

func (g *gaugeMetrics) IncTailConnections() { g.mu.Lock(); g.n++; g.mu.Unlock() }
func (g *gaugeMetrics) DecTailConnections() { g.mu.Lock(); g.n--; g.mu.Unlock() }
func (g *gaugeMetrics) value() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

func setupHub(t *testing.T) (*Hub, *gaugeMetrics, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics := &gaugeMetrics{}
	hub := NewHub(nil, metrics)
	router := gin.New()
	router.GET("/ws/tail", hub.HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return hub, metrics, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/tail"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestHubBroadcastsLines(t *testing.T) {
	hub, metrics, url := setupHub(t)

	a := dial(t, url)
	b := dial(t, url)

	for _, conn := range []*websocket.Conn{a, b} {
		hello := readMessage(t, conn)
		assert.Equal(t, "system", hello.Type)
		_, err := uuid.Parse(hello.ClientID)
		assert.NoError(t, err)
	}
	waitClients(t, hub, 2)
	assert.Equal(t, 2, metrics.value())

	require.NoError(t, hub.AppendLine([]byte("booted secure world\n")))

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		assert.Equal(t, "line", msg.Type)
		assert.Equal(t, "booted secure world", msg.Line)
		assert.Zero(t, msg.Dropped)
	}
}

func TestHubPing(t *testing.T) {
	_, _, url := setupHub(t)
	conn := dial(t, url)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	assert.Equal(t, "pong", readMessage(t, conn).Type)
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub, metrics, url := setupHub(t)
	conn := dial(t, url)
	readMessage(t, conn)
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)
	assert.Zero(t, metrics.value())

	require.NoError(t, hub.AppendLine([]byte("nobody listening\n")))
}

func TestHubDropsForSlowClient(t *testing.T) {
	hub := NewHub(nil, nil)
	c := &client{id: uuid.New(), send: make(chan Message, 1)}
	hub.clients[c.id] = c

	require.NoError(t, hub.AppendLine([]byte("one\n")))
	require.NoError(t, hub.AppendLine([]byte("two\n")))
	require.NoError(t, hub.AppendLine([]byte("three\n")))
	assert.Equal(t, 2, c.dropped)

	assert.Equal(t, "one", (<-c.send).Line)
	require.NoError(t, hub.AppendLine([]byte("four\n")))
	msg := <-c.send
	assert.Equal(t, "four", msg.Line)
	assert.Equal(t, 2, msg.Dropped)
	assert.Zero(t, c.dropped)
}

func TestHubClose(t *testing.T) {
	hub, metrics, url := setupHub(t)
	conn := dial(t, url)
	readMessage(t, conn)
	waitClients(t, hub, 1)

	require.NoError(t, hub.Close())
	assert.Zero(t, hub.Clients())
	assert.Zero(t, metrics.value())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
