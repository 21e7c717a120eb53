package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/keshvara/authcore/verification"
)

// VerifyEmail consumes an email verification token and marks the account
// verified. The token is burned on consumption even when a later check
// fails, except for a purpose mismatch, which leaves it intact.
func (e *Engine) VerifyEmail(ctx context.Context, email, token string) error {
	if e == nil || e.verification == nil || e.users == nil {
		return ErrEngineNotReady
	}

	email = normalizeEmail(email)

	userID, err := e.verification.Consume(ctx, token, verification.TypeEmailVerify)
	if err != nil {
		switch {
		case errors.Is(err, verification.ErrNotFound),
			errors.Is(err, verification.ErrExpired),
			errors.Is(err, verification.ErrTypeMismatch):
			e.emitAudit(ctx, auditEventEmailVerifyConfirm, false, "", email, "", ErrInvalidToken, nil)
			return ErrInvalidToken
		default:
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventEmailVerifyConfirm, false, userID, email, "", ErrUserNotFound, nil)
			return ErrUserNotFound
		}
		return err
	}

	if normalizeEmail(user.Email) != email {
		e.emitAudit(ctx, auditEventEmailVerifyConfirm, false, user.ID, email, "", ErrEmailMismatch, nil)
		return ErrEmailMismatch
	}
	if user.EmailVerified {
		e.emitAudit(ctx, auditEventEmailVerifyConfirm, false, user.ID, email, "", ErrAlreadyVerified, nil)
		return ErrAlreadyVerified
	}

	if err := e.users.MarkEmailVerified(ctx, user.ID); err != nil {
		e.emitAudit(ctx, auditEventEmailVerifyConfirm, false, user.ID, email, "", err, nil)
		return err
	}

	e.metricInc(MetricEmailVerified)
	e.emitAudit(ctx, auditEventEmailVerifyConfirm, true, user.ID, email, "", nil, nil)
	return nil
}
