package store

import (
	"context"
	"errors"
)

// DefaultContent is the snapshot a never-seen document is created with: the
// JSON encoding of an empty document, matching what the editing surface sends
// for an empty buffer.
const DefaultContent = `""`

// ErrUnavailable classifies load/save failures where the backing store could
// not be reached or timed out.
var ErrUnavailable = errors.New("document store unavailable")

// Store persists document snapshots keyed by the client-supplied document id.
// Snapshots are opaque values stored and returned wholesale; the store never
// inspects or merges them. Concurrent updates of the same document are
// last-write-wins.
type Store interface {
	// LoadOrCreate returns the document's snapshot, creating the document
	// with DefaultContent if it does not exist.
	LoadOrCreate(ctx context.Context, id string) (string, error)

	// Update overwrites the document's snapshot.
	Update(ctx context.Context, id, content string) error

	Ping(ctx context.Context) error
	Close() error
}
