package verification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type record struct {
	userID    string
	typ       string
	expiresAt time.Time
}

// MemoryStore is a map-backed Store for tests and single-process setups.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]record
	now    func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]record),
		now:    time.Now,
	}
}

// Issue implements Store.
func (s *MemoryStore) Issue(_ context.Context, userID, typ string, ttl time.Duration) (string, error) {
	token := uuid.NewString()

	s.mu.Lock()
	s.tokens[token] = record{
		userID:    userID,
		typ:       typ,
		expiresAt: s.now().Add(ttl),
	}
	s.mu.Unlock()

	return token, nil
}

// Consume implements Store.
func (s *MemoryStore) Consume(_ context.Context, token, typ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tokens[token]
	if !ok {
		return "", ErrNotFound
	}
	if rec.typ != typ {
		return "", ErrTypeMismatch
	}

	delete(s.tokens, token)

	if s.now().After(rec.expiresAt) {
		return "", ErrExpired
	}
	return rec.userID, nil
}
