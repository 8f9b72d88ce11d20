package websocket

import (
	"GuardianAI/services"
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next frame or pong once a session is OPEN.
	// The clock restarts after each reply is queued, not while a frame is handled.
	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// MaxMessageSize bounds one envelope on the channel and one stateless
	// request body. Screen-time envelopes carry a full day of per-app hours.
	MaxMessageSize = 512 * 1024

	sendBufferSize = 64

	defaultHandshakeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// devices and dashboards connect from arbitrary origins
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server terminates the ingest channels and the guardian live feed.
type Server struct {
	Hub              *Hub
	Ingest           *services.IngestService
	Identity         *services.IdentityService
	HandshakeTimeout time.Duration

	// PongWait overrides pongWait for ingest sessions.
	PongWait time.Duration
}

func NewServer(hub *Hub, ingest *services.IngestService, identity *services.IdentityService, handshakeTimeout time.Duration) *Server {
	return &Server{
		Hub:              hub,
		Ingest:           ingest,
		Identity:         identity,
		HandshakeTimeout: handshakeTimeout,
	}
}

func (s *Server) handshakeTimeout() time.Duration {
	if s.HandshakeTimeout <= 0 {
		return defaultHandshakeTimeout
	}
	return s.HandshakeTimeout
}

func (s *Server) readWait() time.Duration {
	if s.PongWait <= 0 {
		return pongWait
	}
	return s.PongWait
}

// ServeIngest runs the direct variant: the child token comes with the address
// and is checked before the session reaches OPEN.
func (s *Server) ServeIngest(w http.ResponseWriter, r *http.Request, childHash string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WebSocket] upgrade failed: %v", err)
		return
	}

	session := newSession(s, conn)
	session.setState(StateConnecting)

	ctx, cancel := context.WithTimeout(r.Context(), s.handshakeTimeout())
	child, err := s.Identity.Resolve(ctx, childHash)
	cancel()
	if err != nil {
		code, text := websocket.CloseInternalServerErr, "internal error"
		if errors.Is(err, services.ErrUnknownChild) {
			code, text = CloseUnknownChild, "unknown child_hash"
		} else {
			log.Printf("[WebSocket] child lookup failed: %v", err)
		}
		s.reject(session, code, text)
		return
	}
	session.ChildHash = child.ChildHash

	conn.SetWriteDeadline(time.Now().Add(s.handshakeTimeout()))
	if err := conn.WriteJSON(connectionEstablished(session.ChildHash, session.ID)); err != nil {
		log.Printf("[WebSocket] handshake write failed for %s: %v", session.ChildHash, err)
		s.reject(session, CloseHandshakeTimeout, "handshake timeout")
		return
	}

	session.setState(StateOpen)
	conn.SetReadDeadline(time.Now().Add(s.readWait()))
	s.Hub.Register(session)
	log.Printf("[WebSocket] connected child %s (session %s)", session.ChildHash, session.ID)

	go session.writePump()
	go session.readPump()
}

// ServeIngestAuth runs the authenticated variant: the first frame must be
// {"type":"auth","child_hash":...} and arrive within the handshake timeout.
func (s *Server) ServeIngestAuth(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WebSocket] upgrade failed: %v", err)
		return
	}

	session := newSession(s, conn)
	conn.SetWriteDeadline(time.Now().Add(s.handshakeTimeout()))
	if err := conn.WriteJSON(authRequired(session.ID)); err != nil {
		log.Printf("[WebSocket] handshake write failed: %v", err)
		s.reject(session, CloseHandshakeTimeout, "handshake timeout")
		return
	}

	session.setState(StateAwaitingAuth)
	conn.SetReadDeadline(time.Now().Add(s.handshakeTimeout()))
	s.Hub.Register(session)
	log.Printf("[WebSocket] session %s awaiting authentication", session.ID)

	go session.writePump()
	go session.readPump()
}

// ServeLive streams a child's stored telemetry to an authorised guardian.
func (s *Server) ServeLive(w http.ResponseWriter, r *http.Request, childHash string, guardianID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WebSocket] upgrade failed: %v", err)
		return
	}

	viewer := NewViewer(s.Hub, conn, childHash, guardianID)
	s.Hub.Subscribe(viewer)
	log.Printf("[WebSocket] guardian %d watching child %s", guardianID, childHash)

	go viewer.WritePump()
	go viewer.ReadPump()
}

// reject closes a session that never reached OPEN.
func (s *Server) reject(session *Session, code int, text string) {
	session.setState(StateClosed)
	session.cancel()
	deadline := time.Now().Add(writeWait)
	if err := session.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline); err != nil {
		log.Printf("[WebSocket] failed to send close %d: %v", code, err)
	}
	session.conn.Close()
}
