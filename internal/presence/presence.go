package presence

import (
	"sync"
)

type member struct {
	sessionID string
	name      string
}

// Tracks which display names are active per document
type Registry struct {
	mu   sync.Mutex
	docs map[string][]member
}

func NewRegistry() *Registry {
	return &Registry{
		docs: make(map[string][]member),
	}
}

// AddMember records a session's display name for a document. Re-adding the
// same session overwrites the recorded name in place; it never duplicates the
// entry or moves it to the end, so the presence list order stays the order of
// first join. Names are stored as given, including empty ones.
func (r *Registry) AddMember(documentID, sessionID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.docs[documentID]
	for i := range members {
		if members[i].sessionID == sessionID {
			members[i].name = name
			return
		}
	}
	r.docs[documentID] = append(members, member{sessionID: sessionID, name: name})
}

// RemoveSession drops the session from every document it appears in and
// returns the ids of the documents that were affected. A session only ever
// joins one document, but the scan covers all of them so a stale entry can
// never outlive its session.
func (r *Registry) RemoveSession(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var affected []string
	for documentID, members := range r.docs {
		for i := range members {
			if members[i].sessionID == sessionID {
				r.docs[documentID] = append(members[:i], members[i+1:]...)
				affected = append(affected, documentID)
				break
			}
		}
		if len(r.docs[documentID]) == 0 {
			delete(r.docs, documentID)
		}
	}
	return affected
}

// Names returns the display names for a document in join order. The slice is
// a copy and safe to hand to broadcasts.
func (r *Registry) Names(documentID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.docs[documentID]
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.name
	}
	return names
}

// DocumentCount returns the number of documents with at least one member.
func (r *Registry) DocumentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}
