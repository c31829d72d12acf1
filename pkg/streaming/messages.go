// Package streaming defines the JSON envelope protocol used to stream turret
// telemetry over WebSocket.
package streaming

import (
	"encoding/json"

	"github.com/OCAP2/sentry/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeTelemetry    = "telemetry"
	TypeFireEvent    = "fire_event"
	TypeAck          = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload announces the recording session.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
}

// TelemetryPayload carries one captured frame.
type TelemetryPayload struct {
	Frame     uint64          `json:"frame"`
	Telemetry *core.Telemetry `json:"telemetry"`
}

// FireEventPayload carries one shot together with its capture frame.
type FireEventPayload struct {
	Frame uint64          `json:"frame"`
	Event *core.FireEvent `json:"event"`
}
