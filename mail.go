package authcore

import (
	"context"
	"time"
)

// MailKind selects the template a MailSink should render.
type MailKind string

const (
	// MailEmailVerify carries an email confirmation token.
	MailEmailVerify MailKind = "email_verify"
	// MailPasswordReset carries a password reset token.
	MailPasswordReset MailKind = "password_reset"
)

// MailEvent is a request to deliver one transactional email. The engine
// never sends mail itself; it hands events to the configured MailSink.
type MailEvent struct {
	Kind      MailKind  `json:"kind"`
	To        string    `json:"to"`
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MailSink delivers MailEvents. Delivery is best-effort: the engine audits
// sink errors but never fails the triggering operation on them.
type MailSink interface {
	Send(ctx context.Context, event MailEvent) error
}

// NoOpMailSink drops all mail. Useful for tests and setups where tokens
// are surfaced through another channel.
type NoOpMailSink struct{}

func (NoOpMailSink) Send(context.Context, MailEvent) error { return nil }
