package authcore

import "errors"

var (
	// ErrEmailInUse is returned by Register when the email already has an account.
	ErrEmailInUse = errors.New("email already registered")
	// ErrInvalidCredentials is returned by Login for an unknown email or a wrong
	// password. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotVerified is returned by Login when the password is correct but
	// the account has not confirmed its email.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrInvalidToken covers expired, malformed, tampered, unknown, and
	// already-consumed tokens across every flow.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenReuse is returned by Refresh when a rotated-out refresh token is
	// presented again. All of the user's sessions are revoked as a side effect.
	ErrTokenReuse = errors.New("refresh token reuse detected")
	// ErrAlreadyVerified is returned by VerifyEmail for an already verified account.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrEmailMismatch is returned by VerifyEmail when the token belongs to a
	// different email than the one presented.
	ErrEmailMismatch = errors.New("token does not match email")
	// ErrUserNotFound is returned when a token references a user that no longer exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrWeakPassword is returned when a new password fails the length policy.
	ErrWeakPassword = errors.New("password does not meet policy")
	// ErrStoreUnavailable wraps backend failures from the user store, session
	// registry, or verification store.
	ErrStoreUnavailable = errors.New("storage backend unavailable")
	// ErrEngineNotReady is returned when the Engine is missing a required dependency.
	ErrEngineNotReady = errors.New("engine not initialized")
)
