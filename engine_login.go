package authcore

import (
	"context"
	"errors"
)

// Login verifies the credentials and opens a new root session. An unknown
// email and a wrong password both cost a full argon2 verification and both
// return ErrInvalidCredentials, so response timing and shape reveal nothing
// about which emails are registered. A correct password on an unverified
// account returns ErrEmailNotVerified.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (*AuthResult, error) {
	if e == nil || e.passwordHash == nil || e.users == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.passwordHash.VerifyDummy(plaintext)
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", email, "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{
					"reason": "unknown_email",
				}
			})
			return nil, ErrInvalidCredentials
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", email, "", err, nil)
		return nil, err
	}

	if !e.passwordHash.Verify(plaintext, user.PasswordHash) {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, email, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "password_mismatch",
			}
		})
		return nil, ErrInvalidCredentials
	}
	plaintext = ""

	if !user.EmailVerified {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, email, "", ErrEmailNotVerified, nil)
		return nil, ErrEmailNotVerified
	}

	sess, err := e.sessions.Create(ctx, user.ID, "")
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, email, "", err, func() map[string]string {
			return map[string]string{
				"reason": "session_create_failed",
			}
		})
		return nil, err
	}

	tokens, err := e.issueTokens(user, sess.ID)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, email, sess.ID, err, func() map[string]string {
			return map[string]string{
				"reason": "token_signing_failed",
			}
		})
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, email, sess.ID, nil, nil)

	return &AuthResult{
		User:   user.Public(),
		Tokens: tokens,
	}, nil
}

func (e *Engine) issueTokens(user *User, sessionID string) (TokenPair, error) {
	access, err := e.jwtManager.SignAccess(user.ID, string(user.Role))
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := e.jwtManager.SignRefresh(user.ID, sessionID)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}
