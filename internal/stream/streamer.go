// Package stream builds the server-sent-event frames a remediation
// request streams back to its caller, and keeps the transcript of
// everything emitted for persistence.
package stream

import "encoding/json"

// Streamer accumulates the events of one remediation run. Not safe
// for concurrent use; each run owns its Streamer.
type Streamer struct {
	events []string
}

// New returns an empty Streamer.
func New() *Streamer {
	return &Streamer{}
}

// prepareMessage builds the payload for a message type. Error and diff
// carry dedicated keys; done is bare; everything else wraps its text
// under "data".
func prepareMessage(messageType, text string) map[string]interface{} {
	switch messageType {
	case "error":
		return map[string]interface{}{"type": "error", "error": text}
	case "diff":
		return map[string]interface{}{"type": "diff", "content": text}
	case "done":
		return map[string]interface{}{"type": "done"}
	default:
		return map[string]interface{}{"type": messageType, "data": text}
	}
}

// Emit records a typed message and returns it framed for SSE delivery.
func (s *Streamer) Emit(messageType, text string) string {
	return s.emit(prepareMessage(messageType, text))
}

// EmitRaw records an arbitrary payload and returns it framed for SSE
// delivery. Used to relay agent events without reshaping them.
func (s *Streamer) EmitRaw(data map[string]interface{}) string {
	return s.emit(data)
}

func (s *Streamer) emit(data map[string]interface{}) string {
	encoded, err := json.Marshal(data)
	if err != nil {
		// Payloads are built from strings and decoded JSON; marshalling
		// them cannot fail without a programming error upstream.
		encoded = []byte(`{"type":"error","error":"internal encoding failure"}`)
	}
	s.events = append(s.events, string(encoded))
	return "data: " + string(encoded) + "\n\n"
}

// All returns the raw JSON transcript of every emitted event, in order.
func (s *Streamer) All() []string {
	return s.events
}
