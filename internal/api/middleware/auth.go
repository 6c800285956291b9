package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lumeo/edugate/internal/auth"
	"github.com/lumeo/edugate/internal/authz"
	"github.com/lumeo/edugate/internal/database/models"
	"gorm.io/gorm"
)

// Auth resolves the caller's identity: it verifies the bearer credential
// against the identity provider, loads the current user and organization
// records, refuses inactive users, and attaches the resolved identity to
// the request context. Downstream gates read the identity; they never
// re-validate the credential.
func Auth(provider auth.IdentityProvider, db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				unauthorized(w, "Missing credentials")
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")

			verification := provider.Verify(token)
			if !verification.Valid {
				unauthorized(w, "Invalid or expired token")
				return
			}

			// State is re-read on every request so gates never act on a
			// stale role, grant list or active flag.
			var user models.User
			if err := db.WithContext(r.Context()).
				Preload("Organization").
				First(&user, "id = ?", verification.SubjectID).Error; err != nil {
				unauthorized(w, "User not found")
				return
			}

			if !user.IsActive {
				unauthorized(w, "User is inactive")
				return
			}

			identity := authz.Identity{
				User:  user,
				Token: token,
			}
			if user.Organization != nil {
				identity.Organization = *user.Organization
			}

			ctx := authz.WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": reason})
}
