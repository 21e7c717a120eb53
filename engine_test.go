package authcore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/keshvara/authcore/session"
	"github.com/keshvara/authcore/verification"
)

// mockUserStore is a map-backed UserStore for engine tests.
type mockUserStore struct {
	mu      sync.Mutex
	byID    map[string]*User
	byEmail map[string]string
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

func (s *mockUserStore) GetByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *s.byID[id]
	return &out, nil
}

func (s *mockUserStore) GetByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *user
	return &out, nil
}

func (s *mockUserStore) Create(_ context.Context, input CreateUserInput) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[input.Email]; exists {
		return nil, ErrEmailInUse
	}

	now := time.Now()
	user := &User{
		ID:           uuid.NewString(),
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byID[user.ID] = user
	s.byEmail[user.Email] = user.ID

	out := *user
	return &out, nil
}

func (s *mockUserStore) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now()
	return nil
}

func (s *mockUserStore) MarkEmailVerified(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	user.EmailVerified = true
	user.UpdatedAt = time.Now()
	return nil
}

// captureMailSink records every event handed to it.
type captureMailSink struct {
	mu     sync.Mutex
	events []MailEvent
}

func (s *captureMailSink) Send(_ context.Context, event MailEvent) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

func (s *captureMailSink) last(t *testing.T) MailEvent {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		t.Fatal("no mail captured")
	}
	return s.events[len(s.events)-1]
}

type testEnv struct {
	engine   *Engine
	users    *mockUserStore
	sessions *session.MemoryRegistry
	tokens   *verification.MemoryStore
	mail     *captureMailSink
}

// testConfig drops the argon2 time cost to the floor so each test stays fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = []byte("test-access-secret-0123456789abcdef")
	cfg.JWT.RefreshSecret = []byte("test-refresh-secret-0123456789abcde")
	cfg.Password.Time = 1
	return cfg
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		users:    newMockUserStore(),
		sessions: session.NewMemoryRegistry(),
		tokens:   verification.NewMemoryStore(),
		mail:     &captureMailSink{},
	}

	engine, err := New().
		WithConfig(testConfig()).
		WithUserStore(env.users).
		WithSessionRegistry(env.sessions).
		WithVerificationStore(env.tokens).
		WithMailSink(env.mail).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	env.engine = engine
	return env
}

// registerVerified registers an account and marks it verified through the
// token flow, returning the user.
func (env *testEnv) registerVerified(t *testing.T, email, password string) PublicUser {
	t.Helper()
	ctx := context.Background()

	user, err := env.engine.Register(ctx, email, password, "Test User")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	mail := env.mail.last(t)
	if err := env.engine.VerifyEmail(ctx, email, mail.Token); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	return user
}

func TestBuilderRequiresStores(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("expected error without stores")
	}

	b := New().
		WithUserStore(newMockUserStore()).
		WithSessionRegistry(session.NewMemoryRegistry()).
		WithVerificationStore(verification.NewMemoryStore())
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on builder reuse")
	}
}

func TestValidateAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.registerVerified(t, "alice@example.com", "correct horse battery")

	res, err := env.engine.Login(ctx, "alice@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	id, err := env.engine.ValidateAccess(res.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess failed: %v", err)
	}
	if id.UserID != user.ID {
		t.Errorf("UserID = %q, want %q", id.UserID, user.ID)
	}
	if id.Role != RoleUser {
		t.Errorf("Role = %q, want %q", id.Role, RoleUser)
	}

	// Refresh tokens are not access tokens.
	if _, err := env.engine.ValidateAccess(res.Tokens.RefreshToken); err != ErrInvalidToken {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestRoleAllows(t *testing.T) {
	if !RoleAdmin.Allows(RoleAdmin) {
		t.Error("admin must satisfy admin")
	}
	if RoleUser.Allows(RoleAdmin) {
		t.Error("user must not satisfy admin")
	}
	if !RoleUser.Allows(RoleAdmin, RoleUser) {
		t.Error("user must satisfy a list containing user")
	}
}
