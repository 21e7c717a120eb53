// Package verification issues and consumes single-use opaque tokens for
// out-of-band flows such as email confirmation and password reset. A token
// is an unguessable random string handed to the user over a side channel;
// consuming it deletes the record, so each token authorizes at most one
// operation.
package verification

import (
	"context"
	"errors"
	"time"
)

// Token purposes. A token issued for one purpose can never be consumed
// for another.
const (
	TypeEmailVerify   = "email_verify"
	TypePasswordReset = "password_reset"
)

var (
	// ErrNotFound means the token does not exist or was already consumed.
	ErrNotFound = errors.New("verification: token not found")

	// ErrExpired means the token existed but its TTL has passed.
	ErrExpired = errors.New("verification: token expired")

	// ErrTypeMismatch means the token exists but was issued for a
	// different purpose. The token is left intact.
	ErrTypeMismatch = errors.New("verification: token type mismatch")

	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("verification: store unavailable")
)

// Store persists pending verification tokens.
type Store interface {
	// Issue mints a fresh token bound to userID and typ, valid for ttl.
	Issue(ctx context.Context, userID, typ string, ttl time.Duration) (string, error)

	// Consume atomically deletes the token and returns the bound user ID.
	// A type mismatch does not consume the token.
	Consume(ctx context.Context, token, typ string) (string, error)
}
