package ws

import (
	"log"
	"sync"
)

// A session participating in a document room. Clients satisfy this; tests use
// mock peers.
type Peer interface {
	ID() string

	// Send queues a frame for delivery and reports whether it was accepted.
	// It must never block.
	Send(frame []byte) bool

	Close()
}

// The set of active sessions grouped by document, and room-scoped broadcast
type Hub struct {
	// Registered peers by document id
	rooms map[string]map[Peer]bool

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[Peer]bool),
	}
}

// Join adds the peer to a document's room. Joining a room the peer is already
// in has no effect.
func (h *Hub) Join(documentID string, p Peer) {
	h.mu.Lock()
	room, ok := h.rooms[documentID]
	if !ok {
		room = make(map[Peer]bool)
		h.rooms[documentID] = room
	}
	room[p] = true
	size := len(room)
	h.mu.Unlock()

	log.Printf("Session %s joined document %s (total: %d)", p.ID(), documentID, size)
}

// Leave removes the peer from a document's room; a no-op if absent. Empty
// rooms are deleted.
func (h *Hub) Leave(documentID string, p Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[documentID]
	if !ok {
		return
	}
	if _, ok := room[p]; !ok {
		return
	}
	delete(room, p)
	if len(room) == 0 {
		delete(h.rooms, documentID)
		log.Printf("Document room %s closed (empty)", documentID)
	}
}

// BroadcastExcept delivers a frame to every member of the room except the
// sender. A peer whose transport cannot accept the frame is dropped from the
// room and closed; the remaining members still receive the frame.
func (h *Hub) BroadcastExcept(documentID string, sender Peer, frame []byte) {
	h.deliver(documentID, sender, frame)
}

// BroadcastAll delivers a frame to every member of the room, used for
// server-initiated events such as presence updates.
func (h *Hub) BroadcastAll(documentID string, frame []byte) {
	h.deliver(documentID, nil, frame)
}

func (h *Hub) deliver(documentID string, skip Peer, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[documentID]
	if !ok {
		return
	}
	for p := range room {
		if p == skip {
			continue
		}
		if !p.Send(frame) {
			log.Printf("Dropping unresponsive session %s from document %s", p.ID(), documentID)
			delete(room, p)
			p.Close()
		}
	}
	if len(room) == 0 {
		delete(h.rooms, documentID)
	}
}

// RoomCount returns the number of rooms with at least one member.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// SessionCount returns the total number of joined sessions across all rooms.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, room := range h.rooms {
		count += len(room)
	}
	return count
}

// ActiveDocuments returns the member count per active document id.
func (h *Hub) ActiveDocuments() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	active := make(map[string]int, len(h.rooms))
	for documentID, room := range h.rooms {
		active[documentID] = len(room)
	}
	return active
}
