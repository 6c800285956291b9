package authz

import (
	"context"

	"github.com/lumeo/edugate/internal/database/models"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the resolved caller attached to the request context by the
// authentication middleware. It is built once per request and treated as
// immutable; gates read it, they never re-validate the credential.
type Identity struct {
	User         models.User
	Organization models.Organization
	Token        string
}

// Role returns the caller's role.
func (id Identity) Role() Role {
	return Role(id.User.Role)
}

// WithIdentity returns a context carrying the resolved identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext extracts the resolved identity, if present.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
