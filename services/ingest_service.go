package services

import (
	"GuardianAI/models"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
)

const InvalidEnvelopeMessage = `Invalid message format. Expected "type" and "data" fields.`

// MessageType is the closed set of telemetry envelopes a device may send.
type MessageType int

const (
	MessageUnknown MessageType = iota
	MessageScreenTime
	MessageLocation
	MessageSiteAccess
)

var messageTypeNames = map[MessageType]string{
	MessageScreenTime: "screen_time",
	MessageLocation:   "location",
	MessageSiteAccess: "site_access",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseMessageType maps the wire name to a MessageType; anything else is MessageUnknown.
func ParseMessageType(name string) MessageType {
	for t, n := range messageTypeNames {
		if n == name {
			return t
		}
	}
	return MessageUnknown
}

// Envelope is the {type, data} unit of the channel protocol.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	ChildHash string          `json:"child_hash,omitempty"`
}

// Result is the outcome of one routed envelope. Exactly one of Payload or Err is set.
type Result struct {
	Type    MessageType
	Name    string
	Payload map[string]interface{}
	Err     error
}

func (r Result) OK() bool {
	return r.Err == nil
}

// LivePublisher receives every successfully stored envelope.
type LivePublisher interface {
	PublishTelemetry(childHash, messageType string, result map[string]interface{})
}

// IngestService validates envelopes and routes them to the telemetry store.
type IngestService struct {
	Telemetry *TelemetryService
	Live      LivePublisher
}

func NewIngestService(telemetry *TelemetryService, live LivePublisher) *IngestService {
	return &IngestService{Telemetry: telemetry, Live: live}
}

// DecodeEnvelope parses a raw channel frame.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("Invalid JSON: %v", err)
	}
	return envelope, nil
}

// Route handles one raw frame for an already resolved child.
func (s *IngestService) Route(ctx context.Context, childHash string, raw []byte) Result {
	envelope, err := DecodeEnvelope(raw)
	if err != nil {
		return Result{Err: err}
	}
	return s.Dispatch(ctx, childHash, envelope)
}

// Dispatch routes a decoded envelope. Store errors become the Result, never a panic.
func (s *IngestService) Dispatch(ctx context.Context, childHash string, envelope Envelope) (result Result) {
	if envelope.Type == "" || isEmptyPayload(envelope.Data) {
		return Result{Name: envelope.Type, Err: errors.New(InvalidEnvelopeMessage)}
	}

	messageType := ParseMessageType(envelope.Type)
	result = Result{Type: messageType, Name: envelope.Type}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Ingest] panic handling %s for %s: %v", envelope.Type, childHash, r)
			result.Payload = nil
			result.Err = fmt.Errorf("%w: %v", ErrStorage, r)
		}
	}()

	switch messageType {
	case MessageScreenTime:
		result.Payload, result.Err = s.screenTime(ctx, childHash, envelope.Data)
	case MessageLocation:
		result.Payload, result.Err = s.location(ctx, childHash, envelope.Data)
	case MessageSiteAccess:
		result.Payload, result.Err = s.siteAccess(ctx, childHash, envelope.Data)
	default:
		return Result{Name: envelope.Type, Err: fmt.Errorf("Unknown message type: %s", envelope.Type)}
	}

	if result.Err != nil {
		result.Err = describeFailure(messageType, result.Err)
		log.Printf("[Ingest] %s for %s rejected: %v", envelope.Type, childHash, result.Err)
		return result
	}
	if s.Live != nil {
		s.Live.PublishTelemetry(childHash, envelope.Type, result.Payload)
	}
	return result
}

func (s *IngestService) screenTime(ctx context.Context, childHash string, data json.RawMessage) (map[string]interface{}, error) {
	var info models.ScreenTimeInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, invalidField("screen time data is malformed: %v", err)
	}
	stored, err := s.Telemetry.StoreScreenTime(ctx, childHash, info)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"stored":  true,
		"created": stored.Created,
		"date":    stored.Record.DateString(),
	}, nil
}

func (s *IngestService) location(ctx context.Context, childHash string, data json.RawMessage) (map[string]interface{}, error) {
	var info models.LocationInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, invalidField("location data is malformed: %v", err)
	}
	sample, err := s.Telemetry.StoreLocation(ctx, childHash, info)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"stored":    true,
		"timestamp": sample.Timestamp.Format(time.RFC3339),
	}, nil
}

func (s *IngestService) siteAccess(ctx context.Context, childHash string, data json.RawMessage) (map[string]interface{}, error) {
	var info models.SiteAccessInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, invalidField("site access data is malformed: %v", err)
	}
	stored, err := s.Telemetry.StoreSiteAccessBatch(ctx, childHash, info.Logs)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"stored": true,
		"count":  stored.Count,
	}, nil
}

// IngestStateless stores every provided kind independently. Partial success is allowed.
func (s *IngestService) IngestStateless(ctx context.Context, req models.IngestRequest) map[string]interface{} {
	response := map[string]interface{}{
		"child_hash":  req.ChildHash,
		"screen_time": "not provided",
		"location":    "not provided",
		"site_access": "not provided",
	}

	parts := []struct {
		key  string
		kind MessageType
		data json.RawMessage
	}{
		{"screen_time", MessageScreenTime, req.ScreenTimeInfo},
		{"location", MessageLocation, req.LocationInfo},
		{"site_access", MessageSiteAccess, req.SiteAccessInfo},
	}
	for _, part := range parts {
		if isEmptyPayload(part.data) {
			continue
		}
		result := s.Dispatch(ctx, req.ChildHash, Envelope{Type: part.kind.String(), Data: part.data})
		if !result.OK() {
			response[part.key] = map[string]interface{}{"error": result.Err.Error()}
			continue
		}
		status := map[string]interface{}{"status": "ok"}
		for k, v := range result.Payload {
			status[k] = v
		}
		response[part.key] = status
	}
	return response
}

func describeFailure(t MessageType, err error) error {
	label := map[MessageType]string{
		MessageScreenTime: "Screen time",
		MessageLocation:   "Location",
		MessageSiteAccess: "Site access",
	}[t]
	switch {
	case errors.Is(err, ErrValidation):
		return fmt.Errorf("%s validation error: %w", label, err)
	case errors.Is(err, ErrUnknownChild):
		return fmt.Errorf("%s error: %w", label, err)
	default:
		return fmt.Errorf("%s storage error: %w", label, err)
	}
}

func isEmptyPayload(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 ||
		bytes.Equal(trimmed, []byte("null")) ||
		bytes.Equal(trimmed, []byte("{}"))
}
