package authcore

import "context"

type clientIPContextKey struct{}
type identityContextKey struct{}

// Identity is the authenticated caller derived from a valid access token.
type Identity struct {
	UserID string
	Role   Role
}

// WithClientIP attaches the caller's IP address to ctx. The engine records
// it on audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithIdentity attaches an authenticated identity to ctx. HTTP middleware
// uses it to pass the caller downstream after access token validation.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity set by WithIdentity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}

	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
