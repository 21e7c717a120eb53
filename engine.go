package authcore

import (
	"context"

	"github.com/keshvara/authcore/jwt"
	"github.com/keshvara/authcore/password"
	"github.com/keshvara/authcore/session"
	"github.com/keshvara/authcore/verification"
)

// Engine orchestrates the credential and token lifecycle. Build one with
// the Builder; a zero Engine is not usable.
//
// All methods are safe for concurrent use when the supplied stores are.
type Engine struct {
	config       Config
	users        UserStore
	sessions     session.Registry
	verification verification.Store
	passwordHash *password.Argon2
	jwtManager   *jwt.Manager
	mail         MailSink
	audit        *auditDispatcher
	metrics      *Metrics
}

// Close flushes the audit dispatcher. The engine must not be used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were shed by a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// ValidateAccess parses and verifies an access token and returns the
// identity it asserts. It consults no storage; revocation takes effect at
// the next refresh.
func (e *Engine) ValidateAccess(tokenStr string) (Identity, error) {
	if e == nil || e.jwtManager == nil {
		return Identity{}, ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseAccess(tokenStr)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	role := Role(claims.Role)
	if !role.Valid() {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		UserID: claims.Subject,
		Role:   role,
	}, nil
}

// sendMail hands an event to the mail sink without letting delivery
// problems surface into the calling flow.
func (e *Engine) sendMail(ctx context.Context, event MailEvent) {
	if e.mail == nil {
		return
	}
	if err := e.mail.Send(ctx, event); err != nil {
		e.emitAudit(ctx, auditEventMailDeliveryFailed, false, "", event.To, "", err, func() map[string]string {
			return map[string]string{
				"kind": string(event.Kind),
			}
		})
	}
}
