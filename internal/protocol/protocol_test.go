package protocol

import (
	"testing"
)

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Error("Expected error for non-JSON frame")
	}
	if _, err := Decode([]byte(`{"payload":{}}`)); err == nil {
		t.Error("Expected error for frame without event name")
	}
}

func TestEncodeRawKeepsPayloadOpaque(t *testing.T) {
	delta := `{"ops":[{"insert":"hi","attributes":{"bold":true}}]}`

	frame, err := EncodeRaw(EventReceiveChanges, []byte(delta))
	if err != nil {
		t.Fatalf("EncodeRaw failed: %v", err)
	}

	env, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if env.Event != EventReceiveChanges {
		t.Errorf("Expected %s, got %s", EventReceiveChanges, env.Event)
	}
	if string(env.Payload) != delta {
		t.Errorf("Payload changed in transit: %s", env.Payload)
	}
}

func TestEncodeDecodeEnvelope(t *testing.T) {
	frame, err := Encode(EventGetDocument, "doc-1")
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	env, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if env.Event != EventGetDocument {
		t.Errorf("Expected %s, got %s", EventGetDocument, env.Event)
	}
	if string(env.Payload) != `"doc-1"` {
		t.Errorf("Unexpected payload: %s", env.Payload)
	}
}
