package authcore

import (
	"errors"
	"time"
)

// Config carries every tunable of the engine. Start from DefaultConfig
// and override fields; a partially zero Config fails validation in
// Builder.Build. Unset JWT secrets are the one exception: Build fills
// them with random bytes, suitable only for development.
type Config struct {
	JWT          JWTConfig
	Password     PasswordConfig
	Verification VerificationConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

// JWTConfig controls token signing and lifetime.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

// PasswordConfig controls the argon2id digest parameters. Memory is in KiB.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MinLength is enforced on Register, ResetPassword, and ChangePassword.
	MinLength int
}

// VerificationConfig controls the lifetime of single-use out-of-band tokens.
type VerificationConfig struct {
	EmailVerifyTTL   time.Duration
	PasswordResetTTL time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the production defaults: 15 minute access tokens,
// 7 day refresh tokens, argon2id at 64 MiB / 3 passes, 24 hour email
// verification and 1 hour password reset windows.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   8,
		},
		Verification: VerificationConfig{
			EmailVerifyTTL:   24 * time.Hour,
			PasswordResetTTL: time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the invariants Build relies on.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("jwt ttls must be positive")
	}
	if c.Verification.EmailVerifyTTL <= 0 || c.Verification.PasswordResetTTL <= 0 {
		return errors.New("verification ttls must be positive")
	}
	if c.Password.MinLength <= 0 {
		return errors.New("password min length must be positive")
	}
	return nil
}

func cloneConfig(c Config) Config {
	out := c
	out.JWT.AccessSecret = cloneBytes(c.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(c.JWT.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
