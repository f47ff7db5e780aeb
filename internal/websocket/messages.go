package websocket

import "github.com/vntrieu/impostor/internal/games"

// ServerEnvelope is the envelope for messages from server to client.
// Type: "event" | "error"
type ServerEnvelope struct {
	Type    string         `json:"type"`
	Event   string         `json:"event,omitempty"`
	Private bool           `json:"private,omitempty"`
	Payload *games.Message `json:"payload,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Server envelope types.
const (
	ServerTypeEvent = "event"
	ServerTypeError = "error"
)

// envelopeFor wraps an engine message. Private marks prompts addressed to a single user.
func envelopeFor(msg games.Message, private bool) *ServerEnvelope {
	m := msg
	return &ServerEnvelope{
		Type:    ServerTypeEvent,
		Event:   msg.Event,
		Private: private,
		Payload: &m,
	}
}
