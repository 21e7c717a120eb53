// Package memstore provides an in-memory authcore.UserStore for tests and
// local development. Data does not survive a restart.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keshvara/authcore"
)

// UserStore is a map-backed authcore.UserStore. Safe for concurrent use.
type UserStore struct {
	mu      sync.Mutex
	byID    map[string]*authcore.User
	byEmail map[string]string
}

// New returns an empty UserStore.
func New() *UserStore {
	return &UserStore{
		byID:    make(map[string]*authcore.User),
		byEmail: make(map[string]string),
	}
}

// GetByEmail implements authcore.UserStore.
func (s *UserStore) GetByEmail(_ context.Context, email string) (*authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	out := *s.byID[id]
	return &out, nil
}

// GetByID implements authcore.UserStore.
func (s *UserStore) GetByID(_ context.Context, id string) (*authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	out := *user
	return &out, nil
}

// Create implements authcore.UserStore.
func (s *UserStore) Create(_ context.Context, input authcore.CreateUserInput) (*authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(input.Email)
	if _, exists := s.byEmail[email]; exists {
		return nil, authcore.ErrEmailInUse
	}

	now := time.Now()
	user := &authcore.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         input.Name,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byID[user.ID] = user
	s.byEmail[email] = user.ID

	out := *user
	return &out, nil
}

// UpdatePasswordHash implements authcore.UserStore.
func (s *UserStore) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return authcore.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now()
	return nil
}

// MarkEmailVerified implements authcore.UserStore.
func (s *UserStore) MarkEmailVerified(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return authcore.ErrUserNotFound
	}
	user.EmailVerified = true
	user.UpdatedAt = time.Now()
	return nil
}
