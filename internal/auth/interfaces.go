package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/lumeo/edugate/internal/database/models"
)

// Verification is the identity provider's answer for a bearer credential.
type Verification struct {
	Valid          bool
	SubjectID      uuid.UUID
	EmailConfirmed bool
}

// IdentityProvider validates bearer credentials. The production
// implementation is the local JWT service; the contract keeps the
// authentication gate independent of how credentials are issued.
type IdentityProvider interface {
	Verify(token string) Verification
}

// Authenticator defines the interface for account lifecycle operations.
type Authenticator interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResponse, error)
	Login(ctx context.Context, input LoginInput) (*AuthResponse, error)
	InviteUser(ctx context.Context, creatorID uuid.UUID, input InviteInput) (*InviteResult, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenService defines the interface for JWT token operations.
type TokenService interface {
	GenerateToken(userID, orgID uuid.UUID, email, role string, emailVerified bool) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator    = (*Service)(nil)
	_ TokenService     = (*JWTService)(nil)
	_ IdentityProvider = (*JWTService)(nil)
)
