// Package authcore implements the credential and token lifecycle for a
// cookie-based web authentication service: argon2id password storage,
// HS256 access/refresh token issuance, refresh rotation with reuse
// detection, single-use email verification and password reset tokens,
// and a revocation-only session registry.
//
// The Engine is storage-agnostic. Callers supply a UserStore for account
// persistence, a session.Registry for refresh session state, and a
// verification.Store for pending out-of-band tokens. In-memory, Redis,
// and MySQL implementations ship with the module.
//
// Construct an Engine with the Builder:
//
//	engine, err := authcore.New().
//		WithUserStore(users).
//		WithSessionRegistry(sessions).
//		WithVerificationStore(tokens).
//		Build()
package authcore
