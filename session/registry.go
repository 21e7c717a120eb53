// Package session keeps the durable record of refresh-token lineage.
//
// Every issued refresh token is bound to exactly one Session row. Rotation
// revokes the parent row and creates a child pointing back at it, forming an
// acyclic chain. Rows are never deleted: a revoked row is the evidence that
// lets a later presentation of its token be recognized as reuse.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound reports a session id with no backing row.
	ErrNotFound = errors.New("session not found")
	// ErrUnavailable wraps backend failures (connectivity, protocol).
	ErrUnavailable = errors.New("session store unavailable")
)

// Session is one refresh-token lineage entry. Revoked is monotonic: once
// true it never transitions back. RotatedAt is zero until the row is
// revoked. ParentID is empty for root sessions created at login.
type Session struct {
	ID        string
	UserID    string
	Revoked   bool
	ParentID  string
	CreatedAt time.Time
	RotatedAt time.Time
}

// Registry is the durable store of Session rows.
//
// Revoke is the rotation-critical operation: it must read the current
// revoked flag and flip it as one atomic step, reporting won=true to
// exactly one caller per row. Concurrent refreshes presenting the same
// token race on Revoke, and the loser must treat the row as already
// rotated past.
type Registry interface {
	// Create allocates a new non-revoked row owned by userID. parentID
	// is empty for login roots and the rotated session's id for children.
	Create(ctx context.Context, userID, parentID string) (*Session, error)

	// Get returns the row for sessionID, or ErrNotFound.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Revoke flips the row to revoked and stamps RotatedAt if unset.
	// It reports won=true iff this call performed the transition; a row
	// that was already revoked reports won=false with a nil error.
	// Missing rows return ErrNotFound.
	Revoke(ctx context.Context, sessionID string) (won bool, err error)

	// RevokeAllForUser revokes every non-revoked row owned by userID.
	// Idempotent; used by reuse detection only.
	RevokeAllForUser(ctx context.Context, userID string) error
}
