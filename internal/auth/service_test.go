package auth_test

import (
	"testing"
	"time"

	"github.com/lumeo/edugate/internal/auth"
	"github.com/lumeo/edugate/internal/authz"
	"github.com/lumeo/edugate/internal/database/models"
	"github.com/lumeo/edugate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newAuthService(db *gorm.DB) *auth.Service {
	jwtService := testutil.CreateTestJWTService()
	plans := authz.NewPlanService(db, testutil.DiscardLogger())
	return auth.NewService(db, jwtService, plans, 7, "http://localhost:3000")
}

func registerInput(email string) auth.RegisterInput {
	return auth.RegisterInput{
		Email:     email,
		Password:  "Passw0rd!",
		FirstName: "Olivia",
		LastName:  "Reyes",
		OrgName:   "Acme Academy",
	}
}

func TestRegisterProvisionsTrial(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newAuthService(db)
	ctx := testutil.TestContext(t)

	resp, err := svc.Register(ctx, registerInput("olivia@acme.test"))
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)

	// First user is the admin and owns the trial.
	assert.Equal(t, "admin", resp.User.Role)
	assert.True(t, resp.User.IsTrialOwner)
	assert.True(t, resp.User.IsActive)

	require.NotNil(t, resp.TrialAccount)
	assert.Equal(t, "trial", resp.TrialAccount.Plan)
	assert.Equal(t, models.SubscriptionTrial, resp.TrialAccount.Status)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 7), resp.TrialAccount.TrialEndsAt, time.Minute)

	// The account records its owner.
	var account models.TrialAccount
	require.NoError(t, db.First(&account, "id = ?", resp.TrialAccount.ID).Error)
	require.NotNil(t, account.OwnerUserID)
	assert.Equal(t, resp.User.ID, *account.OwnerUserID)

	// The organization links back to the account.
	require.NotNil(t, resp.User.Organization)
	assert.Equal(t, account.ID, resp.User.Organization.TrialAccountID)
	assert.NotEmpty(t, resp.User.Organization.Slug)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newAuthService(db)
	ctx := testutil.TestContext(t)

	_, err := svc.Register(ctx, registerInput("dup@acme.test"))
	require.NoError(t, err)

	_, err = svc.Register(ctx, registerInput("dup@acme.test"))
	assert.ErrorIs(t, err, auth.ErrUserExists)
}

func TestLogin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newAuthService(db)
	ctx := testutil.TestContext(t)

	_, err := svc.Register(ctx, registerInput("login@acme.test"))
	require.NoError(t, err)

	resp, err := svc.Login(ctx, auth.LoginInput{Email: "login@acme.test", Password: "Passw0rd!"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	_, err = svc.Login(ctx, auth.LoginInput{Email: "login@acme.test", Password: "wrong"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.Login(ctx, auth.LoginInput{Email: "nobody@acme.test", Password: "Passw0rd!"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLoginInactiveUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newAuthService(db)
	ctx := testutil.TestContext(t)

	resp, err := svc.Register(ctx, registerInput("inactive@acme.test"))
	require.NoError(t, err)
	require.NoError(t, db.Model(resp.User).Update("is_active", false).Error)

	_, err = svc.Login(ctx, auth.LoginInput{Email: "inactive@acme.test", Password: "Passw0rd!"})
	assert.ErrorIs(t, err, auth.ErrInactiveUser)
}

func TestLoginLapsedTrialRecordsExpiry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newAuthService(db)
	ctx := testutil.TestContext(t)

	resp, err := svc.Register(ctx, registerInput("expired@acme.test"))
	require.NoError(t, err)

	err = db.Model(&models.TrialAccount{}).
		Where("id = ?", resp.TrialAccount.ID).
		Update("trial_ends_at", time.Now().Add(-time.Hour)).Error
	require.NoError(t, err)

	_, err = svc.Login(ctx, auth.LoginInput{Email: "expired@acme.test", Password: "Passw0rd!"})
	assert.ErrorIs(t, err, auth.ErrTrialExpired)

	var account models.TrialAccount
	require.NoError(t, db.First(&account, "id = ?", resp.TrialAccount.ID).Error)
	assert.True(t, account.IsExpired)
	assert.Equal(t, models.SubscriptionExpired, account.Status)

	// The expired state persists across attempts.
	_, err = svc.Login(ctx, auth.LoginInput{Email: "expired@acme.test", Password: "Passw0rd!"})
	assert.ErrorIs(t, err, auth.ErrTrialExpired)
}

func TestInviteUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newAuthService(db)
	ctx := testutil.TestContext(t)

	resp, err := svc.Register(ctx, registerInput("owner@acme.test"))
	require.NoError(t, err)

	result, err := svc.InviteUser(ctx, resp.User.ID, auth.InviteInput{
		Email:             "teacher@acme.test",
		FirstName:         "Tom",
		LastName:          "Nguyen",
		Role:              authz.RoleTeacher,
		CustomPermissions: []string{"reports:view"},
		Department:        "Mathematics",
	})
	require.NoError(t, err)

	assert.Equal(t, "teacher", result.User.Role)
	assert.Equal(t, resp.User.OrganizationID, result.User.OrganizationID)
	assert.True(t, result.User.IsActive)
	assert.False(t, result.User.IsTrialOwner)
	require.NotNil(t, result.User.CreatedByID)
	assert.Equal(t, resp.User.ID, *result.User.CreatedByID)
	assert.NotNil(t, result.User.InvitedAt)
	assert.Contains(t, result.User.CustomPermissions, "reports:view")
	assert.Equal(t, "http://localhost:3000/auth/setup-password?email=teacher@acme.test", result.InviteURL)
}

func TestInviteRoleHierarchy(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newAuthService(db)
	ctx := testutil.TestContext(t)

	resp, err := svc.Register(ctx, registerInput("hier@acme.test"))
	require.NoError(t, err)

	// Admin invites a coordinator; the coordinator cannot invite a peer.
	coord, err := svc.InviteUser(ctx, resp.User.ID, auth.InviteInput{
		Email: "coord@acme.test", FirstName: "Cora", LastName: "Diaz", Role: authz.RoleCoordinator,
	})
	require.NoError(t, err)

	_, err = svc.InviteUser(ctx, coord.User.ID, auth.InviteInput{
		Email: "coord2@acme.test", FirstName: "Cole", LastName: "Park", Role: authz.RoleCoordinator,
	})
	assert.ErrorIs(t, err, auth.ErrRoleNotAllowed)

	// The coordinator may still invite a teacher.
	_, err = svc.InviteUser(ctx, coord.User.ID, auth.InviteInput{
		Email: "teach@acme.test", FirstName: "Tess", LastName: "Iyer", Role: authz.RoleTeacher,
	})
	assert.NoError(t, err)
}

func TestInviteUserLimit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newAuthService(db)
	ctx := testutil.TestContext(t)

	resp, err := svc.Register(ctx, registerInput("limit@acme.test"))
	require.NoError(t, err)

	// Trial allows 20 active users; the admin occupies one slot.
	var org models.Organization
	require.NoError(t, db.First(&org, "id = ?", resp.User.OrganizationID).Error)
	for i := 0; i < 19; i++ {
		testutil.CreateTestUser(t, db, &org, "student")
	}

	_, err = svc.InviteUser(ctx, resp.User.ID, auth.InviteInput{
		Email: "onemore@acme.test", FirstName: "One", LastName: "More", Role: authz.RoleStudent,
	})
	assert.ErrorIs(t, err, auth.ErrUserLimitReached)
}

func TestInviteDuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newAuthService(db)
	ctx := testutil.TestContext(t)

	resp, err := svc.Register(ctx, registerInput("dupinv@acme.test"))
	require.NoError(t, err)

	_, err = svc.InviteUser(ctx, resp.User.ID, auth.InviteInput{
		Email: "dupinv@acme.test", FirstName: "Olivia", LastName: "Reyes", Role: authz.RoleTeacher,
	})
	assert.ErrorIs(t, err, auth.ErrUserExists)
}

func TestGetUserByID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newAuthService(db)
	ctx := testutil.TestContext(t)

	resp, err := svc.Register(ctx, registerInput("get@acme.test"))
	require.NoError(t, err)

	user, err := svc.GetUserByID(ctx, resp.User.ID)
	require.NoError(t, err)
	require.NotNil(t, user.Organization)
	require.NotNil(t, user.Organization.TrialAccount)
	assert.Equal(t, "trial", user.Organization.TrialAccount.Plan)
}
