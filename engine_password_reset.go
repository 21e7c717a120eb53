package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/keshvara/authcore/verification"
)

// RequestPasswordReset issues a single-use reset token for the account, if
// one exists, and hands it to the mail sink. The call succeeds whether or
// not the email is registered, so it cannot be used to probe for accounts.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.verification == nil || e.users == nil {
		return ErrEngineNotReady
	}

	email = normalizeEmail(email)

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, true, "", email, "", nil, func() map[string]string {
				return map[string]string{
					"enumeration_safe": "true",
				}
			})
			return nil
		}
		return err
	}

	ttl := e.config.Verification.PasswordResetTTL
	token, err := e.verification.Issue(ctx, user.ID, verification.TypePasswordReset, ttl)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, user.ID, email, "", err, nil)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.sendMail(ctx, MailEvent{
		Kind:      MailPasswordReset,
		To:        user.Email,
		Name:      user.Name,
		Token:     token,
		ExpiresAt: time.Now().Add(ttl),
	})

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, user.ID, email, "", nil, nil)
	return nil
}

// ResetPassword consumes a reset token and replaces the account's password
// digest. Existing sessions stay alive; their refresh tokens keep rotating
// until revoked or expired.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if e == nil || e.verification == nil || e.users == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}

	if len(newPassword) < e.config.Password.MinLength {
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", "", ErrWeakPassword, nil)
		return ErrWeakPassword
	}

	userID, err := e.verification.Consume(ctx, token, verification.TypePasswordReset)
	if err != nil {
		switch {
		case errors.Is(err, verification.ErrNotFound),
			errors.Is(err, verification.ErrExpired),
			errors.Is(err, verification.ErrTypeMismatch):
			e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", "", "", ErrInvalidToken, nil)
			return ErrInvalidToken
		default:
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetConfirm, false, userID, "", "", ErrUserNotFound, nil)
			return ErrUserNotFound
		}
		return err
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, user.ID, user.Email, "", err, nil)
		return err
	}
	newPassword = ""

	if err := e.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, user.ID, user.Email, "", err, nil)
		return err
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, user.ID, user.Email, "", nil, nil)
	return nil
}
