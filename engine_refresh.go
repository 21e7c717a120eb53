package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/keshvara/authcore/session"
)

// Refresh rotates a refresh token: the presented token's session is revoked
// and a child session with a fresh token pair takes its place. Presenting a
// token whose session is missing or already revoked is treated as theft
// evidence; the user's entire session tree is revoked and ErrTokenReuse
// is returned.
//
// Exactly one of two concurrent calls with the same token wins the
// rotation; the loser takes the reuse path.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil || e.sessions == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", "", ErrInvalidToken, func() map[string]string {
			return map[string]string{
				"reason": "parse_failed",
			}
		})
		return nil, ErrInvalidToken
	}
	sessionID := claims.SessionID

	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			// A validly signed token whose session is gone is no more
			// trustworthy than one whose session was revoked.
			return nil, e.handleRefreshReuse(ctx, claims.Subject, sessionID)
		}
		e.metricInc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if sess.Revoked {
		return nil, e.handleRefreshReuse(ctx, sess.UserID, sess.ID)
	}

	won, err := e.sessions.Revoke(ctx, sessionID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !won {
		// Lost the rotation race; the token has effectively been used twice.
		return nil, e.handleRefreshReuse(ctx, sess.UserID, sess.ID)
	}

	user, err := e.users.GetByID(ctx, sess.UserID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventRefreshInvalid, false, sess.UserID, "", sessionID, ErrUserNotFound, nil)
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	child, err := e.sessions.Create(ctx, user.ID, sess.ID)
	if err != nil {
		// The parent is already revoked; the caller must log in again or retry.
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, user.ID, user.Email, sessionID, err, func() map[string]string {
			return map[string]string{
				"reason": "child_create_failed",
			}
		})
		return nil, err
	}

	tokens, err := e.issueTokens(user, child.ID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, user.ID, user.Email, child.ID, err, func() map[string]string {
			return map[string]string{
				"reason": "token_signing_failed",
			}
		})
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID, user.Email, child.ID, nil, func() map[string]string {
		return map[string]string{
			"parent_session": sess.ID,
		}
	})

	return &AuthResult{
		User:   user.Public(),
		Tokens: tokens,
	}, nil
}

func (e *Engine) handleRefreshReuse(ctx context.Context, userID, sessionID string) error {
	e.metricInc(MetricRefreshReuseDetected)

	if err := e.sessions.RevokeAllForUser(ctx, userID); err != nil {
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, userID, "", sessionID, err, func() map[string]string {
			return map[string]string{
				"revoke_all": "failed",
			}
		})
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.emitAudit(ctx, auditEventRefreshReuseDetected, false, userID, "", sessionID, ErrTokenReuse, nil)
	return ErrTokenReuse
}
