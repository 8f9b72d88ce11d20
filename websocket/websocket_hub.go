package websocket

import (
	"GuardianAI/services"
	"time"
)

// Application close codes sent on the ingest channels.
const (
	CloseMissingChild     = 4001
	CloseUnknownChild     = 4004
	CloseHandshakeTimeout = 4008
)

// Server -> device message types.
const (
	TypeConnectionEstablished = "connection_established"
	TypeAuthRequired          = "auth_required"
	TypeAuthSuccess           = "auth_success"
	TypeAck                   = "ack"
	TypeError                 = "error"
	TypeAuth                  = "auth"
	TypeTelemetry             = "telemetry"
)

// WebSocketMessage is every frame the server writes to a device.
type WebSocketMessage struct {
	Type        string                 `json:"type"`
	ChildHash   string                 `json:"child_hash,omitempty"`
	SessionID   string                 `json:"session_id,omitempty"`
	Message     string                 `json:"message,omitempty"`
	MessageType string                 `json:"message_type,omitempty"`
	Status      string                 `json:"status,omitempty"`
	Result      map[string]interface{} `json:"result,omitempty"`
}

// LiveEvent is what a guardian's live feed receives for each stored envelope.
type LiveEvent struct {
	Type        string                 `json:"type"`
	ChildHash   string                 `json:"child_hash"`
	MessageType string                 `json:"message_type"`
	Result      map[string]interface{} `json:"result"`
	Timestamp   time.Time              `json:"timestamp"`
}

func connectionEstablished(childHash, sessionID string) WebSocketMessage {
	return WebSocketMessage{
		Type:      TypeConnectionEstablished,
		ChildHash: childHash,
		SessionID: sessionID,
		Message:   "WebSocket connection established successfully",
	}
}

func authRequired(sessionID string) WebSocketMessage {
	return WebSocketMessage{
		Type:      TypeAuthRequired,
		SessionID: sessionID,
		Message:   "Please authenticate with child_hash",
	}
}

func authSuccess(childHash string) WebSocketMessage {
	return WebSocketMessage{
		Type:      TypeAuthSuccess,
		ChildHash: childHash,
		Message:   "Authentication successful",
	}
}

func errorMessage(text string) WebSocketMessage {
	return WebSocketMessage{Type: TypeError, Message: text}
}

// resultMessage turns a routed envelope into an ack or an error frame.
func resultMessage(result services.Result) WebSocketMessage {
	if !result.OK() {
		return errorMessage(result.Err.Error())
	}
	return WebSocketMessage{
		Type:        TypeAck,
		MessageType: result.Name,
		Status:      "success",
		Result:      result.Payload,
	}
}
