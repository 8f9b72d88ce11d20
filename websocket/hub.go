package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

const broadcastBuffer = 256

// Hub tracks open ingest sessions and fans stored telemetry out to the
// guardians watching each child.
type Hub struct {
	// Open ingest sessions
	sessions map[*Session]bool

	// Live viewers grouped by child_hash
	viewers map[string]map[*Viewer]bool

	register    chan *Session
	unregister  chan *Session
	subscribe   chan *Viewer
	unsubscribe chan *Viewer
	broadcast   chan *LiveEvent

	mu sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		sessions:    make(map[*Session]bool),
		viewers:     make(map[string]map[*Viewer]bool),
		register:    make(chan *Session),
		unregister:  make(chan *Session),
		subscribe:   make(chan *Viewer),
		unsubscribe: make(chan *Viewer),
		broadcast:   make(chan *LiveEvent, broadcastBuffer),
	}
}

func (h *Hub) Register(session *Session) {
	h.register <- session
}

func (h *Hub) Unregister(session *Session) {
	h.unregister <- session
}

func (h *Hub) Subscribe(viewer *Viewer) {
	h.subscribe <- viewer
}

func (h *Hub) Unsubscribe(viewer *Viewer) {
	h.unsubscribe <- viewer
}

// ActiveChannels is the number of open ingest sessions.
func (h *Hub) ActiveChannels() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// ViewerCount is the number of live viewers of one child.
func (h *Hub) ViewerCount(childHash string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers[childHash])
}

// PublishTelemetry queues a live event. It never blocks ingestion: when the
// queue is full the event is dropped.
func (h *Hub) PublishTelemetry(childHash, messageType string, result map[string]interface{}) {
	event := &LiveEvent{
		Type:        TypeTelemetry,
		ChildHash:   childHash,
		MessageType: messageType,
		Result:      result,
		Timestamp:   time.Now().UTC(),
	}
	select {
	case h.broadcast <- event:
	default:
		log.Printf("[WebSocket] live queue full, dropping %s event for %s", messageType, childHash)
	}
}

func (h *Hub) Run() {
	for {
		select {
		case session := <-h.register:
			h.mu.Lock()
			h.sessions[session] = true
			h.mu.Unlock()
			log.Printf("[WebSocket] session %s registered", session.ID)

		case session := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.sessions[session]; ok {
				delete(h.sessions, session)
				close(session.send)
			}
			h.mu.Unlock()
			log.Printf("[WebSocket] session %s unregistered", session.ID)

		case viewer := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.viewers[viewer.ChildHash]; !ok {
				h.viewers[viewer.ChildHash] = make(map[*Viewer]bool)
			}
			h.viewers[viewer.ChildHash][viewer] = true
			h.mu.Unlock()

		case viewer := <-h.unsubscribe:
			h.mu.Lock()
			h.dropViewer(viewer)
			h.mu.Unlock()

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("[WebSocket] failed to encode live event: %v", err)
				continue
			}
			h.mu.Lock()
			for viewer := range h.viewers[event.ChildHash] {
				select {
				case viewer.send <- data:
				default:
					// slow viewer
					h.dropViewer(viewer)
				}
			}
			h.mu.Unlock()
		}
	}
}

// dropViewer must be called with h.mu held.
func (h *Hub) dropViewer(viewer *Viewer) {
	viewers, ok := h.viewers[viewer.ChildHash]
	if !ok {
		return
	}
	if _, ok := viewers[viewer]; !ok {
		return
	}
	delete(viewers, viewer)
	close(viewer.send)
	if len(viewers) == 0 {
		delete(h.viewers, viewer.ChildHash)
	}
}
