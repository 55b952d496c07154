package ws

import (
	"sync"
	"testing"
)

// Simulates a session for testing
type MockPeer struct {
	id       string
	dead     bool
	closed   bool
	received [][]byte
	mu       sync.Mutex
}

func NewMockPeer(id string) *MockPeer {
	return &MockPeer{id: id}
}

func (m *MockPeer) ID() string { return m.id }

func (m *MockPeer) Send(frame []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dead {
		return false
	}
	m.received = append(m.received, frame)
	return true
}

func (m *MockPeer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *MockPeer) Received() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([][]byte, len(m.received))
	copy(result, m.received)
	return result
}

func TestHubCreation(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("Hub should not be nil")
	}
	if hub.rooms == nil {
		t.Error("Hub rooms map should be initialized")
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	hub := NewHub()
	peer := NewMockPeer("s1")

	hub.Join("doc-1", peer)
	hub.Join("doc-1", peer)

	if hub.SessionCount() != 1 {
		t.Errorf("Expected 1 session, got %d", hub.SessionCount())
	}
	if hub.RoomCount() != 1 {
		t.Errorf("Expected 1 room, got %d", hub.RoomCount())
	}
}

func TestLeaveUnknownIsNoop(t *testing.T) {
	hub := NewHub()
	peer := NewMockPeer("s1")

	hub.Leave("doc-1", peer)

	hub.Join("doc-1", peer)
	hub.Leave("doc-1", NewMockPeer("other"))
	if hub.SessionCount() != 1 {
		t.Errorf("Expected 1 session, got %d", hub.SessionCount())
	}
}

func TestEmptyRoomIsDeleted(t *testing.T) {
	hub := NewHub()
	peer := NewMockPeer("s1")

	hub.Join("doc-1", peer)
	hub.Leave("doc-1", peer)

	if hub.RoomCount() != 0 {
		t.Errorf("Expected 0 rooms, got %d", hub.RoomCount())
	}
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	hub := NewHub()
	sender := NewMockPeer("s1")
	other := NewMockPeer("s2")

	hub.Join("doc-1", sender)
	hub.Join("doc-1", other)

	hub.BroadcastExcept("doc-1", sender, []byte("delta"))

	if len(sender.Received()) != 0 {
		t.Error("Sender should not receive its own broadcast")
	}
	got := other.Received()
	if len(got) != 1 || string(got[0]) != "delta" {
		t.Errorf("Expected exactly one delta delivery, got %v", got)
	}
}

func TestBroadcastAllIncludesEveryone(t *testing.T) {
	hub := NewHub()
	peers := []*MockPeer{NewMockPeer("s1"), NewMockPeer("s2"), NewMockPeer("s3")}
	for _, p := range peers {
		hub.Join("doc-1", p)
	}

	hub.BroadcastAll("doc-1", []byte("presence"))

	for _, p := range peers {
		if len(p.Received()) != 1 {
			t.Errorf("Peer %s: expected 1 delivery, got %d", p.ID(), len(p.Received()))
		}
	}
}

func TestBroadcastScopedToRoom(t *testing.T) {
	hub := NewHub()
	inRoom := NewMockPeer("s1")
	elsewhere := NewMockPeer("s2")

	hub.Join("doc-1", inRoom)
	hub.Join("doc-2", elsewhere)

	hub.BroadcastAll("doc-1", []byte("x"))

	if len(elsewhere.Received()) != 0 {
		t.Error("Broadcast leaked into another room")
	}
}

func TestDeadPeerDoesNotBlockRoom(t *testing.T) {
	hub := NewHub()
	alive1 := NewMockPeer("s1")
	dead := NewMockPeer("s2")
	dead.dead = true
	alive2 := NewMockPeer("s3")

	hub.Join("doc-1", alive1)
	hub.Join("doc-1", dead)
	hub.Join("doc-1", alive2)

	hub.BroadcastAll("doc-1", []byte("x"))

	if len(alive1.Received()) != 1 || len(alive2.Received()) != 1 {
		t.Error("Live peers should still receive the broadcast")
	}
	if !dead.closed {
		t.Error("Dead peer should be closed")
	}
	if hub.SessionCount() != 2 {
		t.Errorf("Dead peer should be removed from the room, got %d sessions", hub.SessionCount())
	}
}

func TestActiveDocuments(t *testing.T) {
	hub := NewHub()
	hub.Join("doc-1", NewMockPeer("s1"))
	hub.Join("doc-1", NewMockPeer("s2"))
	hub.Join("doc-2", NewMockPeer("s3"))

	active := hub.ActiveDocuments()
	if active["doc-1"] != 2 || active["doc-2"] != 1 {
		t.Errorf("Unexpected active documents: %v", active)
	}
}
