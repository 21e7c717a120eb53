package authcore

import (
	"crypto/rand"
	"errors"

	"github.com/keshvara/authcore/jwt"
	"github.com/keshvara/authcore/password"
	"github.com/keshvara/authcore/session"
	"github.com/keshvara/authcore/verification"
)

// Builder assembles an Engine. Configure it with the With* methods, then
// call Build once.
type Builder struct {
	config Config

	users        UserStore
	sessions     session.Registry
	verification verification.Store
	mail         MailSink
	auditSink    AuditSink

	built bool
}

// New returns a Builder preloaded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithUserStore sets the account persistence backend. Required.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithSessionRegistry sets the refresh session backend. Required.
func (b *Builder) WithSessionRegistry(reg session.Registry) *Builder {
	b.sessions = reg
	return b
}

// WithVerificationStore sets the single-use token backend. Required.
func (b *Builder) WithVerificationStore(store verification.Store) *Builder {
	b.verification = store
	return b
}

// WithMailSink sets the transactional mail sink. Defaults to NoOpMailSink.
func (b *Builder) WithMailSink(sink MailSink) *Builder {
	b.mail = sink
	return b
}

// WithAuditSink sets the audit event sink. Defaults to NoOpSink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the Engine. When the JWT
// secrets are unset, fresh random secrets are generated; tokens then do not
// survive a process restart, which is acceptable for development only.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.sessions == nil {
		return nil, errors.New("session registry required")
	}
	if b.verification == nil {
		return nil, errors.New("verification store required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if len(cfg.JWT.AccessSecret) == 0 {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.JWT.AccessSecret = secret
	}
	if len(cfg.JWT.RefreshSecret) == 0 {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.JWT.RefreshSecret = secret
	}

	engine := &Engine{
		config:       cfg,
		users:        b.users,
		sessions:     b.sessions,
		verification: b.verification,
		mail:         b.mail,
	}
	if engine.mail == nil {
		engine.mail = NoOpMailSink{}
	}

	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	jm, err := jwt.NewManager(jwt.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	b.built = true

	return engine, nil
}

func randomSecret() ([]byte, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}
