package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerVerified(t, "alice@example.com", "correct horse battery")

	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	mail := env.mail.last(t)
	if mail.Kind != MailPasswordReset {
		t.Fatalf("mail kind = %q, want %q", mail.Kind, MailPasswordReset)
	}

	if err := env.engine.ResetPassword(ctx, mail.Token, "a brand new password"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	// Old password out, new password in.
	if _, err := env.engine.Login(ctx, "alice@example.com", "correct horse battery"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := env.engine.Login(ctx, "alice@example.com", "a brand new password"); err != nil {
		t.Fatalf("new password login failed: %v", err)
	}
}

// TestPasswordResetRequestSilentForUnknownEmail verifies the request gives
// the same answer whether or not the account exists.
func TestPasswordResetRequestSilentForUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	if err := env.engine.RequestPasswordReset(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("err = %v, want nil", err)
	}

	env.mail.mu.Lock()
	sent := len(env.mail.events)
	env.mail.mu.Unlock()
	if sent != 0 {
		t.Fatalf("mail sent = %d, want 0", sent)
	}
}

func TestPasswordResetTokenSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerVerified(t, "alice@example.com", "correct horse battery")

	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	token := env.mail.last(t).Token

	if err := env.engine.ResetPassword(ctx, token, "a brand new password"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if err := env.engine.ResetPassword(ctx, token, "yet another password"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("replay err = %v, want ErrInvalidToken", err)
	}
}

func TestPasswordResetWeakPasswordPreservesToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerVerified(t, "alice@example.com", "correct horse battery")

	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	token := env.mail.last(t).Token

	// The policy check runs before consumption.
	if err := env.engine.ResetPassword(ctx, token, "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("err = %v, want ErrWeakPassword", err)
	}
	if err := env.engine.ResetPassword(ctx, token, "a brand new password"); err != nil {
		t.Fatalf("ResetPassword after weak attempt failed: %v", err)
	}
}

func TestPasswordResetKeepsSessionsAlive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerVerified(t, "alice@example.com", "correct horse battery")
	res, err := env.engine.Login(ctx, "alice@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if err := env.engine.ResetPassword(ctx, env.mail.last(t).Token, "a brand new password"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	// Existing sessions keep rotating after the credential change.
	if _, err := env.engine.Refresh(ctx, res.Tokens.RefreshToken); err != nil {
		t.Fatalf("refresh after reset failed: %v", err)
	}
}

func TestPasswordResetUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	err := env.engine.ResetPassword(context.Background(), "no-such-token", "a brand new password")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}
