package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.registerVerified(t, "alice@example.com", "correct horse battery")

	res, err := env.engine.Login(ctx, "alice@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.User.ID != user.ID {
		t.Errorf("user = %q, want %q", res.User.ID, user.ID)
	}
	if res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}

	// Login opened a root session bound to the refresh token.
	claims, err := env.engine.jwtManager.ParseRefresh(res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("ParseRefresh failed: %v", err)
	}
	sess, err := env.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		t.Fatalf("session lookup failed: %v", err)
	}
	if sess.UserID != user.ID {
		t.Errorf("session user = %q, want %q", sess.UserID, user.ID)
	}
	if sess.ParentID != "" {
		t.Errorf("root session parent = %q, want empty", sess.ParentID)
	}
}

// TestLoginUnknownEmailAndWrongPassword checks that the two failure modes
// are indistinguishable to the caller.
func TestLoginUnknownEmailAndWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerVerified(t, "alice@example.com", "correct horse battery")

	for name, attempt := range map[string][2]string{
		"unknown email":  {"nobody@example.com", "correct horse battery"},
		"wrong password": {"alice@example.com", "wrong password here"},
	} {
		_, err := env.engine.Login(ctx, attempt[0], attempt[1])
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("%s: err = %v, want ErrInvalidCredentials", name, err)
		}
	}
}

func TestLoginUnverifiedEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.Register(ctx, "bob@example.com", "correct horse battery", "Bob"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Correct password, unverified account.
	_, err := env.engine.Login(ctx, "bob@example.com", "correct horse battery")
	if !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("err = %v, want ErrEmailNotVerified", err)
	}

	// Wrong password still reads as bad credentials, not as unverified.
	_, err = env.engine.Login(ctx, "bob@example.com", "some other password")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginEmailCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerVerified(t, "alice@example.com", "correct horse battery")

	if _, err := env.engine.Login(ctx, "ALICE@Example.COM", "correct horse battery"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
}

func TestConcurrentLoginsCreateIndependentSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerVerified(t, "alice@example.com", "correct horse battery")

	first, err := env.engine.Login(ctx, "alice@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("first Login failed: %v", err)
	}
	second, err := env.engine.Login(ctx, "alice@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("second Login failed: %v", err)
	}

	// Both refresh tokens rotate independently.
	if _, err := env.engine.Refresh(ctx, first.Tokens.RefreshToken); err != nil {
		t.Fatalf("refresh of first session failed: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, second.Tokens.RefreshToken); err != nil {
		t.Fatalf("refresh of second session failed: %v", err)
	}
}
