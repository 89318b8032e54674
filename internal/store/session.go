package store

import (
	"sort"

	"github.com/efreitasn/tradingrelay/internal/domain"
)

// SessionStore is an in-memory registry of sessions keyed by session_id.
// It is not safe for concurrent use; the engine serializes every call under
// its state lock.
type SessionStore struct {
	sessions map[string]*domain.Session
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.Session),
	}
}

// Create adds a session to the store. It returns
// domain.ErrSessionExists if a session with the same ID is present.
func (s *SessionStore) Create(sess *domain.Session) error {
	if _, exists := s.sessions[sess.SessionID]; exists {
		return domain.ErrSessionExists
	}
	s.sessions[sess.SessionID] = sess
	return nil
}

// Get retrieves a session by ID. The returned pointer is the stored
// session itself. It returns domain.ErrUnknownSession if absent.
func (s *SessionStore) Get(id string) (*domain.Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrUnknownSession
	}
	return sess, nil
}

// Delete removes a session. It returns domain.ErrUnknownSession if absent.
func (s *SessionStore) Delete(id string) error {
	if _, ok := s.sessions[id]; !ok {
		return domain.ErrUnknownSession
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of registered sessions.
func (s *SessionStore) Len() int {
	return len(s.sessions)
}

// IDs returns every registered session ID in ascending order.
func (s *SessionStore) IDs() []string {
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
