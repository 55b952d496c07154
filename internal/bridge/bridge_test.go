package bridge

import (
	"encoding/json"
	"testing"
)

type captured struct {
	documentID string
	frame      []byte
}

func newTestBridge(instanceID string) (*Bridge, *[]captured) {
	var got []captured
	b := New(nil, instanceID, func(documentID string, frame []byte) {
		got = append(got, captured{documentID, frame})
	})
	return b, &got
}

func mustEnvelope(t *testing.T, origin string, frame string) []byte {
	t.Helper()
	payload, err := json.Marshal(&envelope{Origin: origin, Frame: json.RawMessage(frame)})
	if err != nil {
		t.Fatal(err)
	}
	return payload
}

func TestDispatchDeliversRemoteFrames(t *testing.T) {
	b, got := newTestBridge("instance-a")

	b.dispatch(channelPrefix+"doc-1", mustEnvelope(t, "instance-b", `{"event":"receive-changes"}`))

	if len(*got) != 1 {
		t.Fatalf("Expected 1 delivery, got %d", len(*got))
	}
	if (*got)[0].documentID != "doc-1" {
		t.Errorf("Expected doc-1, got %s", (*got)[0].documentID)
	}
}

func TestDispatchSkipsOwnFrames(t *testing.T) {
	b, got := newTestBridge("instance-a")

	b.dispatch(channelPrefix+"doc-1", mustEnvelope(t, "instance-a", `{}`))

	if len(*got) != 0 {
		t.Errorf("Expected own frames skipped, got %d deliveries", len(*got))
	}
}

func TestDispatchIgnoresMalformed(t *testing.T) {
	b, got := newTestBridge("instance-a")

	b.dispatch(channelPrefix+"doc-1", []byte("not json"))
	b.dispatch("unrelated-channel", mustEnvelope(t, "instance-b", `{}`))
	b.dispatch(channelPrefix, mustEnvelope(t, "instance-b", `{}`))

	if len(*got) != 0 {
		t.Errorf("Expected nothing delivered, got %d", len(*got))
	}
}
