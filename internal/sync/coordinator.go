package sync

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"textsync/server/internal/presence"
	"textsync/server/internal/protocol"
	"textsync/server/internal/store"
	"textsync/server/internal/ws"
)

// Session lifecycle. A session must request a document before it can join its
// room, and must join before its edits, cursors, and saves are honored.
// Events arriving outside their valid state are dropped: the relay favors
// availability over strict protocol enforcement.
type state int

const (
	stateConnected state = iota
	stateAwaitingDocument
	stateJoined
	stateDisconnected
)

type session struct {
	state      state
	documentID string
	userName   string
}

// Relay publishes outbound frames to peer server instances. Implemented by
// the Redis bridge; nil when running standalone.
type Relay interface {
	Publish(documentID string, frame []byte)
}

type Config struct {
	// Per-attempt bound on store calls
	LoadTimeout time.Duration
	SaveTimeout time.Duration

	// Total load attempts before the session gets a load-error
	LoadAttempts  uint64
	RetryInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		LoadTimeout:   5 * time.Second,
		SaveTimeout:   5 * time.Second,
		LoadAttempts:  3,
		RetryInterval: 200 * time.Millisecond,
	}
}

// Routes session events: load-or-create on request, relay of edits and
// cursors within a document's room, presence updates on join and disconnect,
// and forwarding of saves to the store.
type Coordinator struct {
	hub      *ws.Hub
	registry *presence.Registry
	store    store.Store
	cfg      Config
	relay    Relay

	mu       sync.Mutex
	sessions map[string]*session
}

func New(hub *ws.Hub, registry *presence.Registry, st store.Store, cfg Config) *Coordinator {
	return &Coordinator{
		hub:      hub,
		registry: registry,
		store:    st,
		cfg:      cfg,
		sessions: make(map[string]*session),
	}
}

// SetRelay attaches a cross-instance relay. Must be called before serving.
func (c *Coordinator) SetRelay(r Relay) {
	c.relay = r
}

// DeliverRemote rebroadcasts a frame that originated on another instance to
// the local members of the document's room.
func (c *Coordinator) DeliverRemote(documentID string, frame []byte) {
	c.hub.BroadcastAll(documentID, frame)
}

func (c *Coordinator) session(p ws.Peer) *session {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[p.ID()]
	if !ok {
		s = &session{state: stateConnected}
		c.sessions[p.ID()] = s
	}
	return s
}

// HandleEvent processes one event from a session. Events from a single
// session arrive in order on its read loop, so the state machine needs no
// per-session locking; store calls suspend only this session's loop.
func (c *Coordinator) HandleEvent(p ws.Peer, env *protocol.Envelope) {
	s := c.session(p)

	switch env.Event {
	case protocol.EventGetDocument:
		c.handleGetDocument(p, s, env.Payload)
	case protocol.EventJoinDocument:
		c.handleJoinDocument(p, s, env.Payload)
	case protocol.EventSendChanges:
		c.handleSendChanges(p, s, env.Payload)
	case protocol.EventSendCursor:
		c.handleSendCursor(p, s, env.Payload)
	case protocol.EventSaveDocument:
		c.handleSaveDocument(p, s, env.Payload)
	default:
		log.Printf("Ignoring unknown event %q from session %s", env.Event, p.ID())
	}
}

func (c *Coordinator) handleGetDocument(p ws.Peer, s *session, payload json.RawMessage) {
	// Honored once per connection; duplicates while loading or after a
	// successful load are ignored, so at most one load-document goes out
	// per accepted request.
	if s.state != stateConnected {
		return
	}

	var documentID string
	if err := json.Unmarshal(payload, &documentID); err != nil || documentID == "" {
		log.Printf("Ignoring get-document with bad payload from session %s", p.ID())
		return
	}

	s.state = stateAwaitingDocument

	content, err := c.loadWithRetry(documentID)
	if err != nil {
		log.Printf("Failed to load document %s for session %s: %v", documentID, p.ID(), err)
		frame, encErr := protocol.Encode(protocol.EventLoadError, &protocol.LoadError{
			DocumentID: documentID,
			Message:    "document store unavailable",
		})
		if encErr == nil {
			p.Send(frame)
		}
		// Back to connected so the client can retry get-document.
		s.state = stateConnected
		return
	}

	frame, err := protocol.EncodeRaw(protocol.EventLoadDocument, json.RawMessage(content))
	if err != nil {
		log.Printf("Failed to encode snapshot of document %s: %v", documentID, err)
		s.state = stateConnected
		return
	}
	p.Send(frame)
}

func (c *Coordinator) loadWithRetry(documentID string) (string, error) {
	var content string
	op := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.LoadTimeout)
		defer cancel()

		var err error
		content, err = c.store.LoadOrCreate(ctx, documentID)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInterval

	attempts := c.cfg.LoadAttempts
	if attempts == 0 {
		attempts = 1
	}
	if err := backoff.Retry(op, backoff.WithMaxRetries(b, attempts-1)); err != nil {
		return "", err
	}
	return content, nil
}

func (c *Coordinator) handleJoinDocument(p ws.Peer, s *session, payload json.RawMessage) {
	var join protocol.JoinDocument
	if err := json.Unmarshal(payload, &join); err != nil || join.DocumentID == "" {
		log.Printf("Ignoring join-document with bad payload from session %s", p.ID())
		return
	}

	switch s.state {
	case stateAwaitingDocument:
	case stateJoined:
		// Re-join of the current document refreshes presence; a session
		// belongs to at most one room, so a different document is dropped.
		if join.DocumentID != s.documentID {
			log.Printf("Ignoring join-document for second document from session %s", p.ID())
			return
		}
	default:
		return
	}

	name := join.UserName
	if name == "" {
		name = "Unknown"
	}

	c.hub.Join(join.DocumentID, p)
	c.registry.AddMember(join.DocumentID, p.ID(), name)
	s.state = stateJoined
	s.documentID = join.DocumentID
	s.userName = name

	c.broadcastPresence(join.DocumentID)
}

func (c *Coordinator) broadcastPresence(documentID string) {
	frame, err := protocol.Encode(protocol.EventUpdateActiveUsers, c.registry.Names(documentID))
	if err != nil {
		log.Printf("Failed to encode presence list for document %s: %v", documentID, err)
		return
	}
	c.hub.BroadcastAll(documentID, frame)
}

func (c *Coordinator) handleSendChanges(p ws.Peer, s *session, payload json.RawMessage) {
	if s.state != stateJoined {
		return
	}

	frame, err := protocol.EncodeRaw(protocol.EventReceiveChanges, payload)
	if err != nil {
		log.Printf("Failed to encode delta from session %s: %v", p.ID(), err)
		return
	}
	c.hub.BroadcastExcept(s.documentID, p, frame)
	if c.relay != nil {
		c.relay.Publish(s.documentID, frame)
	}
}

func (c *Coordinator) handleSendCursor(p ws.Peer, s *session, payload json.RawMessage) {
	if s.state != stateJoined {
		return
	}

	var cursor protocol.CursorUpdate
	if err := json.Unmarshal(payload, &cursor); err != nil {
		log.Printf("Ignoring send-cursor with bad payload from session %s", p.ID())
		return
	}

	// Relay the original payload untouched; no position adjustment.
	frame, err := protocol.EncodeRaw(protocol.EventReceiveCursor, payload)
	if err != nil {
		log.Printf("Failed to encode cursor from session %s: %v", p.ID(), err)
		return
	}
	c.hub.BroadcastExcept(s.documentID, p, frame)
	if c.relay != nil {
		c.relay.Publish(s.documentID, frame)
	}
}

func (c *Coordinator) handleSaveDocument(p ws.Peer, s *session, payload json.RawMessage) {
	if s.state != stateJoined {
		return
	}
	if len(payload) == 0 {
		log.Printf("Ignoring save-document with empty payload from session %s", p.ID())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.SaveTimeout)
	defer cancel()

	// Best-effort: no acknowledgment to the sender, failures never end the
	// session.
	if err := c.store.Update(ctx, s.documentID, string(payload)); err != nil {
		log.Printf("Failed to save document %s: %v", s.documentID, err)
	}
}

// HandleDisconnect removes the session from its room and from the presence
// registry, then republishes the presence list of every document the session
// appeared in.
func (c *Coordinator) HandleDisconnect(p ws.Peer) {
	c.mu.Lock()
	s, ok := c.sessions[p.ID()]
	delete(c.sessions, p.ID())
	c.mu.Unlock()

	if ok {
		s.state = stateDisconnected
	}

	affected := c.registry.RemoveSession(p.ID())
	for _, documentID := range affected {
		c.hub.Leave(documentID, p)
		c.broadcastPresence(documentID)
	}

	log.Printf("Session %s disconnected", p.ID())
}
