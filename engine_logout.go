package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/keshvara/authcore/session"
)

// Logout revokes the session named by the refresh token. A token that is
// malformed, expired, unknown, or already logged out returns
// ErrInvalidToken; the second of two logout calls with the same token fails
// without side effects.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.jwtManager == nil || e.sessions == nil {
		return ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseRefresh(refreshToken)
	if err != nil {
		e.emitAudit(ctx, auditEventLogoutSession, false, "", "", "", ErrInvalidToken, func() map[string]string {
			return map[string]string{
				"reason": "parse_failed",
			}
		})
		return ErrInvalidToken
	}

	won, err := e.sessions.Revoke(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			e.emitAudit(ctx, auditEventLogoutSession, false, claims.Subject, "", claims.SessionID, ErrInvalidToken, func() map[string]string {
				return map[string]string{
					"reason": "session_not_found",
				}
			})
			return ErrInvalidToken
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !won {
		e.emitAudit(ctx, auditEventLogoutSession, false, claims.Subject, "", claims.SessionID, ErrInvalidToken, func() map[string]string {
			return map[string]string{
				"reason": "already_revoked",
			}
		})
		return ErrInvalidToken
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, claims.Subject, "", claims.SessionID, nil, nil)
	return nil
}
