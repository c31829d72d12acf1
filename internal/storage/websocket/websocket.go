package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/OCAP2/sentry/pkg/core"
	"github.com/OCAP2/sentry/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams turret telemetry over WebSocket to a collector.
// It implements storage.Backend but not storage.Exportable.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket storage backend. A nil logger uses slog.Default.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("component", "websocket")),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Dropped returns how many messages were discarded because the send queue was full.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartSession announces the session and waits for server ack.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedStart = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

// EndSession sends end_session and waits for server ack.
func (b *Backend) EndSession() error {
	data, err := marshalEnvelope(streaming.TypeEndSession, nil)
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndSession, ackTimeout)

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedStart = nil
	b.conn.mu.Unlock()

	return err
}

// RecordTelemetry streams a captured frame.
func (b *Backend) RecordTelemetry(frame uint64, t *core.Telemetry) error {
	return b.sendEnvelope(streaming.TypeTelemetry, streaming.TelemetryPayload{Frame: frame, Telemetry: t})
}

// RecordFireEvent streams a shot.
func (b *Backend) RecordFireEvent(frame uint64, e *core.FireEvent) error {
	return b.sendEnvelope(streaming.TypeFireEvent, streaming.FireEventPayload{Frame: frame, Event: e})
}
