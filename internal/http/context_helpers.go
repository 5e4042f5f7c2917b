package httpx

import (
	"context"

	domainauth "github.com/ahava-health/ahava-api/internal/domain/auth"
)

// identityKey and requestIDKey are unexported context key types to avoid collisions across packages.
type (
	identityKey  struct{}
	requestIDKey struct{}
)

// SetIdentityInContext returns a child context carrying the authenticated identity.
func SetIdentityInContext(ctx context.Context, id domainauth.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached by the authentication gate.
func IdentityFromContext(ctx context.Context) (domainauth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(domainauth.Identity)
	if !ok || id.UserID == "" {
		return domainauth.Identity{}, false
	}
	return id, true
}

// RequestIDFromContext returns the request ID set by the RequestID middleware, or "".
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}
