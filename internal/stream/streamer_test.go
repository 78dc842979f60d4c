package stream

import (
	"encoding/json"
	"strings"
	"testing"
)

func decodeFrame(t *testing.T, frame string) map[string]interface{} {
	t.Helper()
	if !strings.HasPrefix(frame, "data: ") || !strings.HasSuffix(frame, "\n\n") {
		t.Fatalf("frame not SSE formatted: %q", frame)
	}
	payload := strings.TrimSuffix(strings.TrimPrefix(frame, "data: "), "\n\n")
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		t.Fatalf("frame payload not JSON: %v", err)
	}
	return data
}

func TestEmitShapes(t *testing.T) {
	s := New()

	data := decodeFrame(t, s.Emit("error", "clone failed"))
	if data["type"] != "error" || data["error"] != "clone failed" {
		t.Errorf("error payload: %v", data)
	}

	data = decodeFrame(t, s.Emit("diff", "--- a/go.mod"))
	if data["type"] != "diff" || data["content"] != "--- a/go.mod" {
		t.Errorf("diff payload: %v", data)
	}

	data = decodeFrame(t, s.Emit("done", ""))
	if data["type"] != "done" {
		t.Errorf("done payload: %v", data)
	}
	if _, ok := data["data"]; ok {
		t.Errorf("done payload carries extra field: %v", data)
	}

	data = decodeFrame(t, s.Emit("debug", "cloning repository"))
	if data["type"] != "debug" || data["data"] != "cloning repository" {
		t.Errorf("default payload: %v", data)
	}
}

func TestEmitRawPassthrough(t *testing.T) {
	s := New()
	frame := s.EmitRaw(map[string]interface{}{
		"type":       "result",
		"session_id": "sess-1",
		"cost_usd":   0.01,
	})
	data := decodeFrame(t, frame)
	if data["session_id"] != "sess-1" {
		t.Errorf("raw payload reshaped: %v", data)
	}
}

func TestAllKeepsTranscriptOrder(t *testing.T) {
	s := New()
	s.Emit("debug", "first")
	s.Emit("content", "second")
	s.Emit("done", "")

	all := s.All()
	if len(all) != 3 {
		t.Fatalf("transcript length = %d, want 3", len(all))
	}
	if !strings.Contains(all[0], "first") || !strings.Contains(all[1], "second") {
		t.Errorf("transcript out of order: %v", all)
	}
	for _, raw := range all {
		if strings.HasPrefix(raw, "data: ") {
			t.Errorf("transcript stores framed event, want raw JSON: %q", raw)
		}
	}
}
