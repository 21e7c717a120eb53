package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRegistry is a mutex-guarded in-process Registry. It backs tests and
// single-process deployments; production services use the Redis or SQL
// registries.
type MemoryRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byUser   map[string][]string
}

// NewMemoryRegistry returns an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[string]*Session),
		byUser:   make(map[string][]string),
	}
}

// Create implements Registry.
func (r *MemoryRegistry) Create(ctx context.Context, userID, parentID string) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ParentID:  parentID,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sess.ID] = sess
	r.byUser[userID] = append(r.byUser[userID], sess.ID)

	copied := *sess
	return &copied, nil
}

// Get implements Registry.
func (r *MemoryRegistry) Get(ctx context.Context, sessionID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}

	copied := *sess
	return &copied, nil
}

// Revoke implements Registry. The read of the revoked flag and the flip
// happen under one lock acquisition, so exactly one caller wins.
func (r *MemoryRegistry) Revoke(ctx context.Context, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return false, ErrNotFound
	}
	if sess.Revoked {
		return false, nil
	}

	sess.Revoked = true
	if sess.RotatedAt.IsZero() {
		sess.RotatedAt = time.Now().UTC()
	}
	return true, nil
}

// RevokeAllForUser implements Registry.
func (r *MemoryRegistry) RevokeAllForUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, id := range r.byUser[userID] {
		sess := r.sessions[id]
		if sess == nil || sess.Revoked {
			continue
		}
		sess.Revoked = true
		if sess.RotatedAt.IsZero() {
			sess.RotatedAt = now
		}
	}
	return nil
}
