// Package client is the device-side SDK for the ingest gateway. It streams
// envelopes over the direct channel, falls back to the stateless endpoint when
// the channel fails, and buffers envelopes while both are unreachable.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

const (
	DefaultMaxBuffer            = 1000
	DefaultMaxReconnectAttempts = 5
	DefaultBaseReconnectDelay   = time.Second
	DefaultAckTimeout           = 5 * time.Second
	DefaultHeartbeatInterval    = 30 * time.Second
)

// Mode is the transport the client currently prefers.
type Mode string

const (
	ModeDisconnected Mode = "disconnected"
	ModeWebSocket    Mode = "websocket"
	ModeHTTP         Mode = "http"
)

var (
	// ErrBuffered means neither transport accepted the envelope; it is kept for a later flush.
	ErrBuffered = errors.New("envelope buffered for later delivery")
	// ErrRejected means the server received the envelope and refused it.
	ErrRejected = errors.New("envelope rejected by server")
	ErrClosed   = errors.New("client closed")
)

// Message is one queued envelope.
type Message struct {
	Type     string      `json:"type"`
	Data     interface{} `json:"data"`
	QueuedAt time.Time   `json:"-"`
}

// SiteAccessLog is one visited or blocked URL.
type SiteAccessLog struct {
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
	Accessed  bool      `json:"accessed"`
}

// Status is a snapshot of the client state.
type Status struct {
	Mode         Mode `json:"mode"`
	Connected    bool `json:"connected"`
	Buffered     int  `json:"buffered"`
	Reconnecting bool `json:"reconnecting"`
}

// Client delivers telemetry for one child. Sends are serialised, so
// envelopes reach the server in call order.
type Client struct {
	ChildHash string
	BaseURL   string

	HTTPClient           *http.Client
	Dialer               *websocket.Dialer
	MaxBuffer            int
	MaxReconnectAttempts uint
	BaseReconnectDelay   time.Duration
	AckTimeout           time.Duration
	HeartbeatInterval    time.Duration

	mu            sync.Mutex
	conn          *websocket.Conn
	stopHeartbeat chan struct{}
	mode          Mode
	buffer        []Message
	reconnecting  bool
	closed        bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a client for baseURL, e.g. "http://localhost:8000".
func New(childHash, baseURL string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ChildHash:            childHash,
		BaseURL:              strings.TrimRight(baseURL, "/"),
		HTTPClient:           &http.Client{Timeout: 10 * time.Second},
		Dialer:               websocket.DefaultDialer,
		MaxBuffer:            DefaultMaxBuffer,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		BaseReconnectDelay:   DefaultBaseReconnectDelay,
		AckTimeout:           DefaultAckTimeout,
		HeartbeatInterval:    DefaultHeartbeatInterval,
		mode:                 ModeDisconnected,
		ctx:                  ctx,
		cancel:               cancel,
	}
}

// WebSocketURL is the direct channel address of this child.
func (c *Client) WebSocketURL() string {
	base := c.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws/ingest/" + url.PathEscape(c.ChildHash) + "/"
}

func (c *Client) HTTPURL() string {
	return c.BaseURL + "/api/ingest/"
}

// Connect opens the channel. When that fails the client stays usable in HTTP mode,
// so the returned error is informational.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		if conn != nil {
			conn.Close()
		}
		return ErrClosed
	}
	if err != nil {
		log.Printf("[Client] websocket connection failed, falling back to HTTP: %v", err)
		c.mode = ModeHTTP
		return err
	}
	c.attachLocked(conn)
	c.flushLocked(ctx)
	return nil
}

// dial opens the channel and waits for connection_established.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.ackTimeout())
	defer cancel()

	conn, _, err := c.Dialer.DialContext(dialCtx, c.WebSocketURL(), nil)
	if err != nil {
		return nil, err
	}

	var hello struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	conn.SetReadDeadline(time.Now().Add(c.ackTimeout()))
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetReadDeadline(time.Time{})
	if hello.Type != "connection_established" {
		conn.Close()
		return nil, fmt.Errorf("unexpected handshake response %q", hello.Type)
	}
	return conn, nil
}

func (c *Client) attachLocked(conn *websocket.Conn) {
	c.detachLocked()
	c.conn = conn
	c.mode = ModeWebSocket
	c.stopHeartbeat = make(chan struct{})
	go c.heartbeat(conn, c.stopHeartbeat)
	log.Printf("[Client] websocket connected for %s", c.ChildHash)
}

func (c *Client) detachLocked() {
	if c.stopHeartbeat != nil {
		close(c.stopHeartbeat)
		c.stopHeartbeat = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// heartbeat pings the server so an idle channel is not reaped.
func (c *Client) heartbeat(conn *websocket.Conn, stop chan struct{}) {
	interval := c.HeartbeatInterval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.ackTimeout())); err != nil {
				log.Printf("[Client] heartbeat failed: %v", err)
				return
			}
		}
	}
}

func (c *Client) SendScreenTime(ctx context.Context, date string, totalSeconds int64, appWiseData map[string]map[string]int64) error {
	return c.send(ctx, Message{Type: "screen_time", Data: map[string]interface{}{
		"date":              date,
		"total_screen_time": totalSeconds,
		"app_wise_data":     appWiseData,
	}})
}

func (c *Client) SendLocation(ctx context.Context, latitude, longitude float64, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	return c.send(ctx, Message{Type: "location", Data: map[string]interface{}{
		"timestamp": at.UTC().Format(time.RFC3339),
		"latitude":  latitude,
		"longitude": longitude,
	}})
}

func (c *Client) SendSiteAccess(ctx context.Context, logs []SiteAccessLog) error {
	return c.send(ctx, Message{Type: "site_access", Data: map[string]interface{}{
		"logs": logs,
	}})
}

func (c *Client) send(ctx context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	err := c.deliverLocked(ctx, msg)
	if errors.Is(err, ErrBuffered) {
		msg.QueuedAt = time.Now()
		c.bufferLocked(msg)
		return err
	}
	if len(c.buffer) > 0 {
		c.flushLocked(ctx)
	}
	return err
}

// deliverLocked tries the channel, then the stateless endpoint. It returns
// ErrBuffered only when neither transport reached the server.
func (c *Client) deliverLocked(ctx context.Context, msg Message) error {
	if c.mode == ModeWebSocket && c.conn != nil {
		err := c.sendWebSocketLocked(msg)
		if err == nil || errors.Is(err, ErrRejected) {
			return err
		}
		log.Printf("[Client] websocket send failed, switching to HTTP: %v", err)
		c.detachLocked()
		c.mode = ModeHTTP
		c.startReconnectLocked()
	}

	err := c.sendHTTP(ctx, msg)
	if err == nil || errors.Is(err, ErrRejected) {
		return err
	}
	log.Printf("[Client] HTTP send failed, buffering %s: %v", msg.Type, err)
	return ErrBuffered
}

func (c *Client) sendWebSocketLocked(msg Message) error {
	conn := c.conn
	conn.SetWriteDeadline(time.Now().Add(c.ackTimeout()))
	if err := conn.WriteJSON(msg); err != nil {
		return err
	}

	var reply struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	conn.SetReadDeadline(time.Now().Add(c.ackTimeout()))
	if err := conn.ReadJSON(&reply); err != nil {
		return err
	}
	conn.SetReadDeadline(time.Time{})

	switch reply.Type {
	case "ack":
		return nil
	case "error":
		return fmt.Errorf("%w: %s", ErrRejected, reply.Message)
	default:
		return fmt.Errorf("unexpected response %q", reply.Type)
	}
}

func (c *Client) sendHTTP(ctx context.Context, msg Message) error {
	payload := map[string]interface{}{"child_hash": c.ChildHash}
	switch msg.Type {
	case "screen_time":
		payload["screen_time_info"] = msg.Data
	case "location":
		payload["location_info"] = msg.Data
	case "site_access":
		payload["site_access_info"] = msg.Data
	default:
		return fmt.Errorf("%w: unknown message type %s", ErrRejected, msg.Type)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.HTTPURL(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 500 {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var reply map[string]json.RawMessage
	if err := json.Unmarshal(raw, &reply); err == nil {
		var outcome struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(reply[msg.Type], &outcome) == nil && outcome.Error != "" {
			return fmt.Errorf("%w: %s", ErrRejected, outcome.Error)
		}
	}
	return nil
}

// bufferLocked keeps at most MaxBuffer envelopes, dropping the oldest.
func (c *Client) bufferLocked(msg Message) {
	limit := c.MaxBuffer
	if limit <= 0 {
		limit = DefaultMaxBuffer
	}
	if len(c.buffer) >= limit {
		c.buffer = c.buffer[len(c.buffer)-limit+1:]
	}
	c.buffer = append(c.buffer, msg)
}

// flushLocked delivers buffered envelopes in order and stops at the first failure.
func (c *Client) flushLocked(ctx context.Context) {
	for len(c.buffer) > 0 {
		if err := c.deliverLocked(ctx, c.buffer[0]); errors.Is(err, ErrBuffered) {
			return
		} else if err != nil {
			log.Printf("[Client] dropping buffered %s: %v", c.buffer[0].Type, err)
		}
		c.buffer = c.buffer[1:]
	}
}

// Flush retries buffered envelopes now.
func (c *Client) Flush(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked(ctx)
	return len(c.buffer)
}

// startReconnectLocked redials the channel in the background with exponential
// backoff; after MaxReconnectAttempts the client stays in HTTP mode.
func (c *Client) startReconnectLocked() {
	if c.reconnecting || c.closed {
		return
	}
	c.reconnecting = true

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.BaseReconnectDelay
	if b.InitialInterval <= 0 {
		b.InitialInterval = DefaultBaseReconnectDelay
	}
	b.Multiplier = 2
	b.RandomizationFactor = 0.1
	attempts := c.MaxReconnectAttempts
	if attempts == 0 {
		attempts = DefaultMaxReconnectAttempts
	}

	go func() {
		conn, err := backoff.Retry(c.ctx, func() (*websocket.Conn, error) {
			return c.dial(c.ctx)
		}, backoff.WithBackOff(b), backoff.WithMaxTries(attempts), backoff.WithNotify(func(err error, next time.Duration) {
			log.Printf("[Client] reconnect failed (%v), retrying in %s", err, next)
		}))

		c.mu.Lock()
		defer c.mu.Unlock()
		c.reconnecting = false
		if err != nil {
			log.Printf("[Client] max reconnection attempts reached, staying in HTTP mode")
			return
		}
		if c.closed {
			conn.Close()
			return
		}
		c.attachLocked(conn)
		c.flushLocked(c.ctx)
	}()
}

func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Mode:         c.mode,
		Connected:    c.conn != nil,
		Buffered:     len(c.buffer),
		Reconnecting: c.reconnecting,
	}
}

// Close stops reconnection and closes the channel. Buffered envelopes are discarded.
func (c *Client) Close() error {
	c.cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn != nil {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	}
	c.detachLocked()
	c.mode = ModeDisconnected
	return nil
}

func (c *Client) ackTimeout() time.Duration {
	if c.AckTimeout <= 0 {
		return DefaultAckTimeout
	}
	return c.AckTimeout
}
