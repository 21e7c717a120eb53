package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/keshvara/authcore/session"
	"github.com/keshvara/authcore/verification"
)

func TestRegisterAndVerifyEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.engine.Register(ctx, "Alice@Example.com", "correct horse battery", "Alice")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email = %q, want normalized lowercase", user.Email)
	}
	if user.EmailVerified {
		t.Fatal("new account must be unverified")
	}
	if user.Role != RoleUser {
		t.Errorf("role = %q, want %q", user.Role, RoleUser)
	}

	mail := env.mail.last(t)
	if mail.Kind != MailEmailVerify {
		t.Fatalf("mail kind = %q, want %q", mail.Kind, MailEmailVerify)
	}
	if mail.To != "alice@example.com" {
		t.Errorf("mail to = %q", mail.To)
	}

	if err := env.engine.VerifyEmail(ctx, "alice@example.com", mail.Token); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}

	stored, err := env.users.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !stored.EmailVerified {
		t.Fatal("account must be verified")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.Register(ctx, "alice@example.com", "correct horse battery", "Alice"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := env.engine.Register(ctx, "ALICE@example.com", "other password 123", "Imposter"); !errors.Is(err, ErrEmailInUse) {
		t.Fatalf("err = %v, want ErrEmailInUse", err)
	}
}

func TestRegisterWeakPassword(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.engine.Register(context.Background(), "alice@example.com", "short", "Alice"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("err = %v, want ErrWeakPassword", err)
	}
}

func TestVerifyEmailTokenSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.Register(ctx, "alice@example.com", "correct horse battery", "Alice"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	token := env.mail.last(t).Token

	if err := env.engine.VerifyEmail(ctx, "alice@example.com", token); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	if err := env.engine.VerifyEmail(ctx, "alice@example.com", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("replay err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyEmailMismatchBurnsToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.engine.Register(ctx, "alice@example.com", "correct horse battery", "Alice"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	token := env.mail.last(t).Token

	// The token is consumed before the email check, so a mismatched attempt
	// spends it.
	if err := env.engine.VerifyEmail(ctx, "other@example.com", token); !errors.Is(err, ErrEmailMismatch) {
		t.Fatalf("err = %v, want ErrEmailMismatch", err)
	}
	if err := env.engine.VerifyEmail(ctx, "alice@example.com", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyEmailUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	err := env.engine.VerifyEmail(context.Background(), "alice@example.com", "no-such-token")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyEmailAlreadyVerified(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.registerVerified(t, "alice@example.com", "correct horse battery")

	// Issue a second token for the now-verified account.
	token, err := env.tokens.Issue(ctx, user.ID, "email_verify", env.engine.config.Verification.EmailVerifyTTL)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if err := env.engine.VerifyEmail(ctx, "alice@example.com", token); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("err = %v, want ErrAlreadyVerified", err)
	}
}

// TestVerifyEmailRejectsResetToken checks that a password reset token does
// not pass for an email verification token, and survives the attempt.
func TestVerifyEmailRejectsResetToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerVerified(t, "alice@example.com", "correct horse battery")

	if err := env.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	resetToken := env.mail.last(t).Token

	if err := env.engine.VerifyEmail(ctx, "alice@example.com", resetToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}

	// The mismatched attempt must not have consumed the reset token.
	if err := env.engine.ResetPassword(ctx, resetToken, "a brand new password"); err != nil {
		t.Fatalf("ResetPassword after cross-purpose attempt failed: %v", err)
	}
}

// failingVerificationStore rejects every operation, standing in for an
// unreachable backend.
type failingVerificationStore struct{}

func (failingVerificationStore) Issue(context.Context, string, string, time.Duration) (string, error) {
	return "", verification.ErrUnavailable
}

func (failingVerificationStore) Consume(context.Context, string, string) (string, error) {
	return "", verification.ErrUnavailable
}

func TestRegisterVerificationStoreDown(t *testing.T) {
	mail := &captureMailSink{}
	engine, err := New().
		WithConfig(testConfig()).
		WithUserStore(newMockUserStore()).
		WithSessionRegistry(session.NewMemoryRegistry()).
		WithVerificationStore(failingVerificationStore{}).
		WithMailSink(mail).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	ctx := context.Background()
	_, err = engine.Register(ctx, "alice@example.com", "correct horse battery", "Alice")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Register = %v, want ErrStoreUnavailable", err)
	}
	if len(mail.events) != 0 {
		t.Fatal("no mail may be sent when no token was issued")
	}
}
