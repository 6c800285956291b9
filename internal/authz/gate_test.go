package authz_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lumeo/edugate/internal/authz"
	"github.com/lumeo/edugate/internal/database/models"
	"github.com/lumeo/edugate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type gateFixture struct {
	db       *gorm.DB
	org      *models.Organization
	enforcer *authz.Enforcer
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	org := testutil.CreateTestOrg(t, db)

	testutil.SeedPermission(t, db, authz.PermUsersView, "users", "admin", "directorate", "coordinator", "teacher")
	testutil.SeedPermission(t, db, authz.PermUsersInvite, "users", "admin", "directorate", "coordinator")

	logger := testutil.DiscardLogger()
	registry := authz.NewRegistry(db, logger)
	require.NoError(t, registry.Reload(context.Background()))

	plans := authz.NewPlanService(db, logger)
	return &gateFixture{
		db:       db,
		org:      org,
		enforcer: authz.NewEnforcer(registry, plans, logger),
	}
}

// serve runs a request through the gate with the given identity. A nil
// user leaves the context without an identity.
func (f *gateFixture) serve(t *testing.T, user *models.User, req authz.Requirements) *httptest.ResponseRecorder {
	t.Helper()

	handler := f.enforcer.Require(req)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if user != nil {
		identity := authz.Identity{User: *user, Organization: *f.org}
		r = r.WithContext(authz.WithIdentity(r.Context(), identity))
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, r)
	return rr
}

func denialReason(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body["error"]
}

func TestGateMissingIdentity(t *testing.T) {
	f := newGateFixture(t)

	rr := f.serve(t, nil, authz.Requirements{Roles: []authz.Role{authz.RoleAdmin}})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Authentication required", denialReason(t, rr))
}

func TestGateRoleCheck(t *testing.T) {
	f := newGateFixture(t)
	student := testutil.CreateTestUser(t, f.db, f.org, "student")
	admin := testutil.CreateTestUser(t, f.db, f.org, "admin")

	req := authz.Requirements{Roles: []authz.Role{authz.RoleAdmin, authz.RoleDirectorate}}

	rr := f.serve(t, student, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Access denied. Allowed roles: admin, directorate", denialReason(t, rr))

	rr = f.serve(t, admin, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGatePermissionCheck(t *testing.T) {
	f := newGateFixture(t)
	teacher := testutil.CreateTestUser(t, f.db, f.org, "teacher")

	rr := f.serve(t, teacher, authz.Requirements{Permissions: []string{authz.PermUsersView}})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.serve(t, teacher, authz.Requirements{Permissions: []string{authz.PermUsersInvite}})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Access denied. Required permissions: "+authz.PermUsersInvite, denialReason(t, rr))
}

func TestGatePermissionOrSemantics(t *testing.T) {
	f := newGateFixture(t)
	teacher := testutil.CreateTestUser(t, f.db, f.org, "teacher")

	// Holding either of the two listed permissions is enough.
	rr := f.serve(t, teacher, authz.Requirements{
		Permissions: []string{authz.PermUsersInvite, authz.PermUsersView},
	})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGateCustomGrantWidens(t *testing.T) {
	f := newGateFixture(t)
	student := testutil.CreateTestUser(t, f.db, f.org, "student")
	student.CustomPermissions = models.StringArray{authz.PermUsersInvite}

	rr := f.serve(t, student, authz.Requirements{Permissions: []string{authz.PermUsersInvite}})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGatePlanCheck(t *testing.T) {
	f := newGateFixture(t)
	admin := testutil.CreateTestUser(t, f.db, f.org, "admin")

	rr := f.serve(t, admin, authz.Requirements{Plans: []authz.Plan{authz.PlanTrial, authz.PlanBasic}})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.serve(t, admin, authz.Requirements{Plans: []authz.Plan{authz.PlanEnterprise}})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Access denied. This operation requires one of the following plans: enterprise", denialReason(t, rr))
}

// The pipeline evaluates role before feature: a caller passing the role
// gate still stops at the feature gate, and the reason names the feature.
func TestGatePipelineStopsAtFeature(t *testing.T) {
	f := newGateFixture(t)
	admin := testutil.CreateTestUser(t, f.db, f.org, "admin")

	// Expire the trial so the account loses every feature.
	err := f.db.Model(&models.TrialAccount{}).
		Where("id = ?", f.org.TrialAccountID).
		Update("trial_ends_at", time.Now().Add(-time.Hour)).Error
	require.NoError(t, err)

	rr := f.serve(t, admin, authz.Requirements{
		Roles:   []authz.Role{authz.RoleAdmin},
		Feature: authz.FeatureMoodleIntegration,
	})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Access denied. Feature moodle_integration is not available on your plan", denialReason(t, rr))
}

func TestGateSubscriptionCheck(t *testing.T) {
	f := newGateFixture(t)
	admin := testutil.CreateTestUser(t, f.db, f.org, "admin")

	rr := f.serve(t, admin, authz.Requirements{Subscription: true})
	assert.Equal(t, http.StatusOK, rr.Code)

	err := f.db.Model(&models.TrialAccount{}).
		Where("id = ?", f.org.TrialAccountID).
		Update("status", models.SubscriptionCancelled).Error
	require.NoError(t, err)

	rr = f.serve(t, admin, authz.Requirements{Subscription: true})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Access denied. Your subscription has expired. Contact us to renew", denialReason(t, rr))
}

// Gates of different kinds compose with AND: all must pass.
func TestGateComposition(t *testing.T) {
	f := newGateFixture(t)
	coordinator := testutil.CreateTestUser(t, f.db, f.org, "coordinator")

	rr := f.serve(t, coordinator, authz.Requirements{
		Roles:        []authz.Role{authz.RoleAdmin, authz.RoleDirectorate, authz.RoleCoordinator},
		Permissions:  []string{authz.PermUsersInvite},
		Feature:      authz.FeatureUserManagement,
		Subscription: true,
	})
	assert.Equal(t, http.StatusOK, rr.Code)

	// Same requirements fail for a teacher at the first gate.
	teacher := testutil.CreateTestUser(t, f.db, f.org, "teacher")
	rr = f.serve(t, teacher, authz.Requirements{
		Roles:        []authz.Role{authz.RoleAdmin, authz.RoleDirectorate, authz.RoleCoordinator},
		Permissions:  []string{authz.PermUsersInvite},
		Feature:      authz.FeatureUserManagement,
		Subscription: true,
	})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, denialReason(t, rr), "Allowed roles")
}
