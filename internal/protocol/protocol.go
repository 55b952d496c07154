package protocol

import (
	"encoding/json"
	"fmt"
)

// Event names exchanged over a session's websocket connection. Client-to-server
// events trigger coordinator transitions; server-to-client events carry relayed
// payloads back out.
const (
	// Client asks for a document snapshot; payload is the document id string.
	EventGetDocument = "get-document"

	// One-shot response carrying the snapshot.
	EventLoadDocument = "load-document"

	// Emitted when the store could not produce a snapshot; the client may
	// retry get-document.
	EventLoadError = "load-error"

	// Client joins a document room and announces its display name.
	EventJoinDocument = "join-document"

	// Ordered list of display names currently in the room.
	EventUpdateActiveUsers = "update-active-users"

	// Incremental edit from a client; relayed to peers as receive-changes.
	EventSendChanges    = "send-changes"
	EventReceiveChanges = "receive-changes"

	// Client pushes its current snapshot for persistence.
	EventSaveDocument = "save-document"

	// Cursor position from a client; relayed to peers as receive-cursor.
	EventSendCursor    = "send-cursor"
	EventReceiveCursor = "receive-cursor"
)

// Envelope is the wire frame for every event. The payload is opaque to the
// relay: deltas and snapshots are forwarded without interpretation.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinDocument is the payload of a join-document event.
type JoinDocument struct {
	DocumentID string `json:"documentId"`
	UserName   string `json:"userName"`
}

// CursorUpdate is the payload of send-cursor/receive-cursor events. The
// position is an opaque index into the document and is passed through
// unadjusted.
type CursorUpdate struct {
	UserID         string `json:"userId"`
	CursorPosition int    `json:"cursorPosition"`
}

// LoadError is the payload of a load-error event.
type LoadError struct {
	DocumentID string `json:"documentId"`
	Message    string `json:"message"`
}

// Decode parses a wire frame into an envelope.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("frame missing event name")
	}
	return &env, nil
}

// Encode builds a wire frame from an event name and payload value.
func Encode(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return EncodeRaw(event, raw)
}

// EncodeRaw builds a wire frame around an already-encoded payload, used when
// relaying a client's payload verbatim.
func EncodeRaw(event string, payload json.RawMessage) ([]byte, error) {
	return json.Marshal(&Envelope{Event: event, Payload: payload})
}
