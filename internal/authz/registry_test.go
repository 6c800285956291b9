package authz_test

import (
	"context"
	"testing"

	"github.com/lumeo/edugate/internal/authz"
	"github.com/lumeo/edugate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryReload(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedPermission(t, db, authz.PermUsersView, "users", "admin", "directorate", "coordinator", "teacher")
	testutil.SeedPermission(t, db, authz.PermUsersInvite, "users", "admin", "directorate", "coordinator")

	registry := authz.NewRegistry(db, testutil.DiscardLogger())
	assert.Equal(t, 0, registry.Size())

	require.NoError(t, registry.Reload(context.Background()))
	assert.Equal(t, 2, registry.Size())
}

func TestHasPermissionDefaultRoles(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedPermission(t, db, authz.PermUsersView, "users", "admin", "directorate", "coordinator", "teacher")

	registry := authz.NewRegistry(db, testutil.DiscardLogger())
	require.NoError(t, registry.Reload(context.Background()))

	assert.True(t, registry.HasPermission(authz.RoleAdmin, authz.PermUsersView, nil))
	assert.True(t, registry.HasPermission(authz.RoleTeacher, authz.PermUsersView, nil))
	assert.False(t, registry.HasPermission(authz.RoleStudent, authz.PermUsersView, nil))
}

func TestHasPermissionCustomGrants(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedPermission(t, db, authz.PermReportsView, "reports", "admin")

	registry := authz.NewRegistry(db, testutil.DiscardLogger())
	require.NoError(t, registry.Reload(context.Background()))

	// Grants widen access without touching the role's defaults.
	assert.False(t, registry.HasPermission(authz.RoleStudent, authz.PermReportsView, nil))
	assert.True(t, registry.HasPermission(authz.RoleStudent, authz.PermReportsView, []string{authz.PermReportsView}))

	// A grant even authorizes a name the registry has never seen.
	assert.True(t, registry.HasPermission(authz.RoleStudent, "custom:thing", []string{"custom:thing"}))
}

func TestHasPermissionUnknownDenies(t *testing.T) {
	db := testutil.SetupTestDB(t)
	registry := authz.NewRegistry(db, testutil.DiscardLogger())
	require.NoError(t, registry.Reload(context.Background()))

	assert.False(t, registry.HasPermission(authz.RoleAdmin, "nonexistent:permission", nil))
}

func TestEmptyRegistryDeniesEverything(t *testing.T) {
	db := testutil.SetupTestDB(t)
	registry := authz.NewRegistry(db, testutil.DiscardLogger())

	// Never reloaded: every lookup must deny, even for admin.
	assert.False(t, registry.HasPermission(authz.RoleAdmin, authz.PermUsersView, nil))
}

func TestReloadFailureKeepsPreviousCache(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedPermission(t, db, authz.PermUsersView, "users", "admin")

	registry := authz.NewRegistry(db, testutil.DiscardLogger())
	require.NoError(t, registry.Reload(context.Background()))
	require.True(t, registry.HasPermission(authz.RoleAdmin, authz.PermUsersView, nil))

	// Sever the connection; the next reload fails and the cache stands.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	assert.Error(t, registry.Reload(context.Background()))
	assert.True(t, registry.HasPermission(authz.RoleAdmin, authz.PermUsersView, nil))
}

func TestHasAnyPermissionOrSemantics(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedPermission(t, db, authz.PermUsersView, "users", "teacher")
	testutil.SeedPermission(t, db, authz.PermUsersEdit, "users", "admin")

	registry := authz.NewRegistry(db, testutil.DiscardLogger())
	require.NoError(t, registry.Reload(context.Background()))

	names := []string{authz.PermUsersEdit, authz.PermUsersView}
	assert.True(t, registry.HasAnyPermission(authz.RoleTeacher, names, nil))
	assert.True(t, registry.HasAnyPermission(authz.RoleAdmin, names, nil))
	assert.False(t, registry.HasAnyPermission(authz.RoleStudent, names, nil))
}

func TestRolePermissions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedPermission(t, db, authz.PermUsersView, "users", "teacher")
	testutil.SeedPermission(t, db, authz.PermCoursesView, "courses", "teacher", "student")

	registry := authz.NewRegistry(db, testutil.DiscardLogger())
	require.NoError(t, registry.Reload(context.Background()))

	perms := registry.RolePermissions(authz.RoleTeacher, []string{authz.PermUsersView, "custom:extra"})
	assert.ElementsMatch(t, []string{authz.PermUsersView, authz.PermCoursesView, "custom:extra"}, perms)
}
