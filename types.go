package authcore

import (
	"context"
	"time"
)

// Role is the coarse authorization level carried in access tokens.
type Role string

const (
	// RoleUser is the default role assigned at registration.
	RoleUser Role = "USER"
	// RoleAdmin grants access to administrative routes.
	RoleAdmin Role = "ADMIN"
)

// Allows reports whether r satisfies any of the required roles.
func (r Role) Allows(required ...Role) bool {
	for _, want := range required {
		if r == want {
			return true
		}
	}
	return false
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the full account record held by a UserStore. PasswordHash is a
// PHC-format argon2id digest and must never leave the engine.
type User struct {
	ID            string
	Email         string
	Name          string
	PasswordHash  string
	Role          Role
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PublicUser is the safe projection of a User returned to callers.
type PublicUser struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          Role      `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Public returns the projection of u with the credential material stripped.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}

// CreateUserInput is the input for UserStore.Create. PasswordHash is already
// an argon2id digest; the store never sees a plaintext password.
type CreateUserInput struct {
	Email        string
	Name         string
	PasswordHash string
	Role         Role
}

// UserStore is the account persistence interface callers must implement to
// integrate the engine with their user database.
//
// GetByEmail and GetByID return ErrUserNotFound for missing accounts and may
// wrap ErrStoreUnavailable for backend failures. Create returns ErrEmailInUse
// when the email is already registered.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, input CreateUserInput) (*User, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	MarkEmailVerified(ctx context.Context, id string) error
}

// TokenPair holds a freshly signed access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult is returned by Login and Refresh.
type AuthResult struct {
	User   PublicUser
	Tokens TokenPair
}
