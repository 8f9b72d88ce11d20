package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway mimics the ingest endpoints closely enough for the client.
type fakeGateway struct {
	mu         sync.Mutex
	wsFrames   []string
	httpBodies []map[string]json.RawMessage

	channelDown bool
	dropAfter   int
	rejectHTTP  bool
	upgrader    websocket.Upgrader
	server      *httptest.Server
}

func newFakeGateway(t *testing.T) *fakeGateway {
	g := &fakeGateway{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/ingest/child-1/", g.serveChannel)
	mux.HandleFunc("/api/ingest/", g.serveHTTP)
	g.server = httptest.NewServer(mux)
	t.Cleanup(g.server.Close)
	return g
}

func (g *fakeGateway) serveChannel(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	down, dropAfter := g.channelDown, g.dropAfter
	g.mu.Unlock()
	if down {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.WriteJSON(map[string]string{"type": "connection_established", "child_hash": "child-1"})

	handled := 0
	for {
		var msg struct {
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if dropAfter > 0 && handled == dropAfter {
			return
		}
		handled++
		g.mu.Lock()
		g.wsFrames = append(g.wsFrames, msg.Type)
		g.mu.Unlock()

		if msg.Type == "site_access" {
			conn.WriteJSON(map[string]string{"type": "error", "message": "Site access validation error"})
			continue
		}
		conn.WriteJSON(map[string]string{"type": "ack", "message_type": msg.Type, "status": "success"})
	}
}

func (g *fakeGateway) serveHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	json.NewDecoder(r.Body).Decode(&body)

	g.mu.Lock()
	g.httpBodies = append(g.httpBodies, body)
	reject := g.rejectHTTP
	g.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if reject {
		w.Write([]byte(`{"child_hash": "child-1", "location": {"error": "Location validation error: latitude required"}}`))
		return
	}
	w.Write([]byte(`{"child_hash": "child-1", "location": {"status": "ok"}, "screen_time": {"status": "ok"}}`))
}

func (g *fakeGateway) frames() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.wsFrames...)
}

func (g *fakeGateway) httpCount() int {
	return len(g.bodies())
}

func (g *fakeGateway) bodies() []map[string]json.RawMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]map[string]json.RawMessage(nil), g.httpBodies...)
}

func newTestClient(baseURL string) *Client {
	c := New("child-1", baseURL)
	c.AckTimeout = time.Second
	c.BaseReconnectDelay = 10 * time.Millisecond
	c.MaxReconnectAttempts = 1
	return c
}

func TestURLs(t *testing.T) {
	c := New("abc", "https://guardian.example.com/")
	assert.Equal(t, "wss://guardian.example.com/ws/ingest/abc/", c.WebSocketURL())
	assert.Equal(t, "https://guardian.example.com/api/ingest/", c.HTTPURL())
}

func TestSendOverChannel(t *testing.T) {
	g := newFakeGateway(t)
	c := newTestClient(g.server.URL)
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, ModeWebSocket, c.Status().Mode)

	require.NoError(t, c.SendLocation(context.Background(), 40.7128, -74.006, time.Now()))
	require.NoError(t, c.SendScreenTime(context.Background(), "2025-12-10", 60, map[string]map[string]int64{"com.a": {"9": 60}}))

	assert.Equal(t, []string{"location", "screen_time"}, g.frames())
	assert.Zero(t, g.httpCount())
}

func TestChannelRejectionIsNotBuffered(t *testing.T) {
	g := newFakeGateway(t)
	c := newTestClient(g.server.URL)
	defer c.Close()
	require.NoError(t, c.Connect(context.Background()))

	err := c.SendSiteAccess(context.Background(), []SiteAccessLog{{Timestamp: time.Now(), URL: "a.com"}})
	assert.ErrorIs(t, err, ErrRejected)

	status := c.Status()
	assert.Zero(t, status.Buffered)
	assert.Equal(t, ModeWebSocket, status.Mode)
}

func TestFallsBackToHTTPWhenChannelUnavailable(t *testing.T) {
	g := newFakeGateway(t)
	g.channelDown = true
	c := newTestClient(g.server.URL)
	defer c.Close()

	assert.Error(t, c.Connect(context.Background()))
	assert.Equal(t, ModeHTTP, c.Status().Mode)

	require.NoError(t, c.SendLocation(context.Background(), 1, 2, time.Now()))
	bodies := g.bodies()
	require.Len(t, bodies, 1)
	assert.JSONEq(t, `"child-1"`, string(bodies[0]["child_hash"]))
	assert.Contains(t, bodies[0], "location_info")
}

func TestFallsBackToHTTPWhenChannelDrops(t *testing.T) {
	g := newFakeGateway(t)
	g.dropAfter = 1
	c := newTestClient(g.server.URL)
	defer c.Close()
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.SendLocation(context.Background(), 1, 2, time.Now()))
	require.NoError(t, c.SendLocation(context.Background(), 3, 4, time.Now()))

	assert.Equal(t, []string{"location"}, g.frames())
	assert.Equal(t, 1, g.httpCount())
}

func TestHTTPRejection(t *testing.T) {
	g := newFakeGateway(t)
	g.channelDown = true
	g.rejectHTTP = true
	c := newTestClient(g.server.URL)
	defer c.Close()
	c.Connect(context.Background())

	err := c.SendLocation(context.Background(), 1, 2, time.Now())
	assert.ErrorIs(t, err, ErrRejected)
	assert.Zero(t, c.Status().Buffered)
}

func TestBuffersWhileOfflineAndFlushesInOrder(t *testing.T) {
	offline := httptest.NewServer(http.NotFoundHandler())
	offline.Close()

	c := newTestClient(offline.URL)
	c.MaxBuffer = 2
	defer c.Close()
	assert.Error(t, c.Connect(context.Background()))

	for _, day := range []string{"2025-12-08", "2025-12-09", "2025-12-10"} {
		err := c.SendScreenTime(context.Background(), day, 1, map[string]map[string]int64{})
		assert.ErrorIs(t, err, ErrBuffered)
	}
	assert.Equal(t, 2, c.Status().Buffered)

	g := newFakeGateway(t)
	g.channelDown = true
	c.BaseURL = g.server.URL

	assert.Zero(t, c.Flush(context.Background()))
	bodies := g.bodies()
	require.Len(t, bodies, 2)
	assert.Contains(t, string(bodies[0]["screen_time_info"]), "2025-12-09")
	assert.Contains(t, string(bodies[1]["screen_time_info"]), "2025-12-10")
}

func TestClosedClientRefusesSends(t *testing.T) {
	c := New("child-1", "http://127.0.0.1:1")
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.SendLocation(context.Background(), 1, 2, time.Now()), ErrClosed)
	assert.Equal(t, ModeDisconnected, c.Status().Mode)
}
