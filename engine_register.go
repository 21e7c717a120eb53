package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/keshvara/authcore/verification"
)

// Register creates a new unverified account and issues an email
// verification token through the mail sink. The returned user never
// contains credential material.
func (e *Engine) Register(ctx context.Context, email, plaintext, name string) (PublicUser, error) {
	if e == nil || e.passwordHash == nil || e.users == nil {
		return PublicUser{}, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if len(plaintext) < e.config.Password.MinLength {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", email, "", ErrWeakPassword, nil)
		return PublicUser{}, ErrWeakPassword
	}

	hash, err := e.passwordHash.Hash(plaintext)
	if err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", email, "", err, nil)
		return PublicUser{}, err
	}
	plaintext = ""

	user, err := e.users.Create(ctx, CreateUserInput{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         RoleUser,
	})
	if err != nil {
		if errors.Is(err, ErrEmailInUse) {
			e.metricInc(MetricRegisterDuplicate)
		}
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", email, "", err, nil)
		return PublicUser{}, err
	}

	ttl := e.config.Verification.EmailVerifyTTL
	token, err := e.verification.Issue(ctx, user.ID, verification.TypeEmailVerify, ttl)
	if err != nil {
		// The account row exists but cannot be verified without a token,
		// so the failure must reach the caller.
		e.emitAudit(ctx, auditEventRegisterFailure, false, user.ID, email, "", err, func() map[string]string {
			return map[string]string{
				"reason": "verify_token_issue_failed",
			}
		})
		return PublicUser{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.sendMail(ctx, MailEvent{
		Kind:      MailEmailVerify,
		To:        user.Email,
		Name:      user.Name,
		Token:     token,
		ExpiresAt: time.Now().Add(ttl),
	})

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, user.ID, email, "", nil, nil)

	return user.Public(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
