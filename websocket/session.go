package websocket

import (
	"GuardianAI/services"
	"context"
	"errors"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// State is the lifecycle position of an ingest session.
type State int32

const (
	StateConnecting State = iota
	StateAwaitingAuth
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateAwaitingAuth:
		return "AWAITING_AUTH"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// outbound is one queued write: either a JSON frame or a close frame.
type outbound struct {
	message   interface{}
	closeCode int
	closeText string
}

// Session is one device channel. Frames are handled one at a time in arrival
// order; every response is queued before the next frame is read.
type Session struct {
	ID        string
	ChildHash string

	server *Server
	conn   *websocket.Conn
	send   chan outbound
	done   chan struct{}
	state  atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(server *Server, conn *websocket.Conn) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:     uuid.NewString(),
		server: server,
		conn:   conn,
		send:   make(chan outbound, sendBufferSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

// enqueue hands a frame to writePump; false once the writer has stopped.
func (s *Session) enqueue(message interface{}) bool {
	select {
	case s.send <- outbound{message: message}:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) enqueueClose(code int, text string) {
	select {
	case s.send <- outbound{closeCode: code, closeText: text}:
	case <-s.done:
	}
}

// readPump consumes frames until the peer leaves or the session must close.
func (s *Session) readPump() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[PANIC] Recovered in readPump: %v", r)
		}
		s.setState(StateClosed)
		s.cancel()
		s.server.Hub.Unregister(s)
		log.Printf("[WebSocket] session %s closed (child %s)", s.ID, s.ChildHash)
	}()

	s.conn.SetReadLimit(MaxMessageSize)
	s.conn.SetPongHandler(func(string) error {
		if s.State() == StateOpen {
			s.conn.SetReadDeadline(time.Now().Add(s.server.readWait()))
		}
		return nil
	})
	// devices send pings as heartbeats between envelopes
	s.conn.SetPingHandler(func(appData string) error {
		if s.State() == StateOpen {
			s.conn.SetReadDeadline(time.Now().Add(s.server.readWait()))
		}
		err := s.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) && !isTimeout(err) {
			return err
		}
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if s.State() == StateAwaitingAuth && isTimeout(err) {
				log.Printf("[WebSocket] session %s did not authenticate in time", s.ID)
				s.enqueueClose(CloseHandshakeTimeout, "authentication timeout")
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Printf("[WebSocket] read error on session %s: %v", s.ID, err)
			}
			return
		}

		if s.State() == StateAwaitingAuth {
			if !s.authenticate(raw) {
				return
			}
			continue
		}

		result := s.server.Ingest.Route(s.ctx, s.ChildHash, raw)
		if !s.enqueue(resultMessage(result)) {
			return
		}
		// pings that arrived while the frame was handled are only seen by the next read
		s.conn.SetReadDeadline(time.Now().Add(s.server.readWait()))
	}
}

// authenticate handles a frame received in AWAITING_AUTH. It returns false
// when the session has been told to close.
func (s *Session) authenticate(raw []byte) bool {
	envelope, err := services.DecodeEnvelope(raw)
	if err != nil {
		return s.enqueue(errorMessage(err.Error()))
	}
	if envelope.Type != TypeAuth {
		return s.enqueue(errorMessage("Authentication required. Send auth message first."))
	}
	if envelope.ChildHash == "" {
		s.enqueue(errorMessage("child_hash required for authentication"))
		s.enqueueClose(CloseMissingChild, "child_hash required")
		return false
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.server.handshakeTimeout())
	defer cancel()
	child, err := s.server.Identity.Resolve(ctx, envelope.ChildHash)
	if err != nil {
		if errors.Is(err, services.ErrUnknownChild) {
			s.enqueue(errorMessage("Invalid child_hash"))
			s.enqueueClose(CloseUnknownChild, "unknown child_hash")
		} else {
			log.Printf("[WebSocket] auth lookup failed on session %s: %v", s.ID, err)
			s.enqueue(errorMessage("Authentication failed"))
			s.enqueueClose(websocket.CloseInternalServerErr, "authentication failed")
		}
		return false
	}

	s.ChildHash = child.ChildHash
	s.setState(StateOpen)
	s.conn.SetReadDeadline(time.Now().Add(s.server.readWait()))
	log.Printf("[WebSocket] session %s authenticated for child %s", s.ID, s.ChildHash)
	return s.enqueue(authSuccess(s.ChildHash))
}

// writePump owns every data write on the connection.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.server.readWait() * 9 / 10)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[PANIC] Recovered in writePump: %v", r)
		}
		ticker.Stop()
		close(s.done)
		s.conn.Close()
	}()

	for {
		select {
		case item, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if item.closeCode != 0 {
				s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(item.closeCode, item.closeText))
				return
			}
			if err := s.conn.WriteJSON(item.message); err != nil {
				log.Printf("[WebSocket] error writing to session %s: %v", s.ID, err)
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
