package session

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is the default Store: safe for concurrent use, with no
// durability across process restarts. Production deployments wire a
// durable Store (e.g. a database-backed implementation) behind the
// same interface.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewInMemoryStore builds an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]Session)}
}

func (s *InMemoryStore) CreateSession(_ context.Context, sessionID, userID, userName string, createdAt time.Time) (Session, error) {
	if sessionID == "" {
		return Session{}, requiredField("session id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[sessionID]; ok {
		return existing, nil
	}
	at := createdAt.UTC()
	out := Session{
		ID:             sessionID,
		UserID:         userID,
		UserName:       userName,
		CurrentContext: "general",
		CreatedAt:      at,
		UpdatedAt:      at,
		Metadata:       make(map[string]any),
	}
	s.sessions[sessionID] = out
	return out, nil
}

func (s *InMemoryStore) LoadSession(_ context.Context, sessionID string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// SaveSession upserts sess, stamping UpdatedAt to now.
func (s *InMemoryStore) SaveSession(_ context.Context, sess Session) (Session, error) {
	if sess.ID == "" {
		return Session{}, requiredField("session id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.UpdatedAt = time.Now().UTC()
	s.sessions[sess.ID] = sess
	return sess, nil
}

// DeleteSession removes sessionID, reporting whether it existed.
func (s *InMemoryStore) DeleteSession(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return existed, nil
}

// Cleanup removes every session whose UpdatedAt predates olderThan,
// returning the count removed.
func (s *InMemoryStore) Cleanup(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(olderThan) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Count reports the number of sessions currently held.
func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

func requiredField(what string) error {
	return &requiredFieldError{what: what}
}

type requiredFieldError struct{ what string }

func (e *requiredFieldError) Error() string { return e.what + " is required" }
