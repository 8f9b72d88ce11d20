package websocket

import (
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// Viewer is a guardian connection on the live feed of one child.
type Viewer struct {
	hub        *Hub
	conn       *websocket.Conn
	ChildHash  string
	GuardianID uint
	send       chan []byte
}

func NewViewer(hub *Hub, conn *websocket.Conn, childHash string, guardianID uint) *Viewer {
	return &Viewer{
		hub:        hub,
		conn:       conn,
		ChildHash:  childHash,
		GuardianID: guardianID,
		send:       make(chan []byte, sendBufferSize),
	}
}

// ReadPump discards inbound frames; it only keeps the connection alive and
// notices when the guardian leaves.
func (v *Viewer) ReadPump() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[PANIC] Recovered in ReadPump: %v", r)
		}
		v.hub.Unsubscribe(v)
		v.conn.Close()
		log.Printf("[WebSocket] guardian %d stopped watching %s", v.GuardianID, v.ChildHash)
	}()

	v.conn.SetReadLimit(4096)
	v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		v.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WebSocket] viewer read error: %v", err)
			}
			return
		}
	}
}

func (v *Viewer) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[PANIC] Recovered in WritePump: %v", r)
		}
		ticker.Stop()
		v.conn.Close()
	}()

	for {
		select {
		case message, ok := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				v.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := v.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WebSocket] error writing to guardian %d: %v", v.GuardianID, err)
				return
			}

		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
