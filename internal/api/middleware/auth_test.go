package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lumeo/edugate/internal/api/middleware"
	"github.com/lumeo/edugate/internal/auth"
	"github.com/lumeo/edugate/internal/authz"
	"github.com/lumeo/edugate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware(t *testing.T) {
	db := testutil.SetupTestDB(t)
	jwtService := testutil.CreateTestJWTService()
	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db, org, "teacher")

	var captured *authz.Identity
	handler := middleware.Auth(jwtService, db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := authz.IdentityFromContext(r.Context()); ok {
			captured = &id
		}
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(authorization string) *httptest.ResponseRecorder {
		captured = nil
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing header", func(t *testing.T) {
		rec := serve("")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, captured)
	})

	t.Run("malformed header", func(t *testing.T) {
		rec := serve("Token abcdef")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := serve("Bearer not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token resolves identity", func(t *testing.T) {
		token := testutil.GenerateTestToken(t, jwtService, user)
		rec := serve("Bearer " + token)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, captured)
		assert.Equal(t, user.ID, captured.User.ID)
		assert.Equal(t, "teacher", captured.User.Role)
		assert.Equal(t, org.ID, captured.Organization.ID)
		assert.Equal(t, token, captured.Token)
	})

	t.Run("identity reflects current state", func(t *testing.T) {
		// A role change after token issuance is visible immediately.
		token := testutil.GenerateTestToken(t, jwtService, user)
		require.NoError(t, db.Model(user).Update("role", "coordinator").Error)
		rec := serve("Bearer " + token)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, captured)
		assert.Equal(t, "coordinator", captured.User.Role)
	})

	t.Run("inactive user rejected", func(t *testing.T) {
		token := testutil.GenerateTestToken(t, jwtService, user)
		require.NoError(t, db.Model(user).Update("is_active", false).Error)
		rec := serve("Bearer " + token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, captured)
	})

	t.Run("deleted subject rejected", func(t *testing.T) {
		ghost := testutil.CreateTestUser(t, db, org, "student")
		token := testutil.GenerateTestToken(t, jwtService, ghost)
		require.NoError(t, db.Unscoped().Delete(ghost).Error)
		rec := serve("Bearer " + token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthMiddlewareWrongSigningKey(t *testing.T) {
	db := testutil.SetupTestDB(t)
	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db, org, "student")

	other := auth.NewJWTService("a-different-signing-key", time.Hour)
	token := testutil.GenerateTestToken(t, other, user)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	middleware.Auth(testutil.CreateTestJWTService(), db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
