package moodle

import (
	"context"
	"net/url"
	"testing"

	"github.com/lumeo/edugate/internal/database/models"
	"github.com/lumeo/edugate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callsTo(seen *[]url.Values, wsfunction string) []url.Values {
	var out []url.Values
	for _, form := range *seen {
		if form.Get("wsfunction") == wsfunction {
			out = append(out, form)
		}
	}
	return out
}

func TestSyncCourses(t *testing.T) {
	db := testutil.SetupTestDB(t)
	org := testutil.CreateTestOrg(t, db)

	srv, _ := fakeMoodle(t, map[string]string{
		"core_course_get_courses": `[
			{"id":1,"shortname":"site","fullname":"Front Page","summary":"","visible":1},
			{"id":10,"shortname":"ALG1","fullname":"Algebra I","summary":"Linear equations","visible":1},
			{"id":11,"shortname":"BIO1","fullname":"Biology I","summary":"","visible":0}
		]`,
	})
	syncer := NewSyncer(db, NewClient(srv.URL, "tok", testLogger()), testLogger())

	result, err := syncer.SyncCourses(context.Background(), org.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Errors)

	// The front page (course id 1) is never mirrored.
	var count int64
	require.NoError(t, db.Model(&models.Course{}).Where("organization_id = ?", org.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	var algebra models.Course
	require.NoError(t, db.First(&algebra, "moodle_course_id = ?", 10).Error)
	assert.Equal(t, "Algebra I", algebra.Name)
	assert.Equal(t, "ALG1", algebra.ShortName)
	assert.True(t, algebra.IsVisible)
	assert.NotNil(t, algebra.LastSyncedAt)

	var biology models.Course
	require.NoError(t, db.First(&biology, "moodle_course_id = ?", 11).Error)
	assert.False(t, biology.IsVisible)

	// A second pass updates existing mirrors instead of duplicating them.
	result, err = syncer.SyncCourses(context.Background(), org.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 2, result.Updated)

	require.NoError(t, db.Model(&models.Course{}).Where("organization_id = ?", org.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestSyncUsersProvisionsMissingAccounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	org := testutil.CreateTestOrg(t, db)
	present := testutil.CreateTestUser(t, db, org, "teacher")
	missing := testutil.CreateTestUser(t, db, org, "student")
	inactive := testutil.CreateTestUser(t, db, org, "student")
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)

	srv, seen := fakeMoodle(t, map[string]string{
		"core_user_get_users_by_field": `[{"id":7,"username":"` + present.Email + `","email":"` + present.Email + `"}]`,
		"core_user_create_users":       `[{"id":8,"username":"` + missing.Email + `"}]`,
	})
	syncer := NewSyncer(db, NewClient(srv.URL, "tok", testLogger()), testLogger())

	result, err := syncer.SyncUsers(context.Background(), org.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Errors)

	creates := callsTo(seen, "core_user_create_users")
	require.Len(t, creates, 1)
	form := creates[0]
	assert.Equal(t, missing.Email, form.Get("users[0][email]"))
	assert.Equal(t, missing.Email, form.Get("users[0][username]"))
	assert.NotEmpty(t, form.Get("users[0][password]"))

	// Inactive users are never provisioned.
	lookup := callsTo(seen, "core_user_get_users_by_field")
	require.Len(t, lookup, 1)
	assert.NotContains(t, lookup[0], "values[2]")
}

func TestSyncUsersEmptyOrganization(t *testing.T) {
	db := testutil.SetupTestDB(t)
	org := testutil.CreateTestOrg(t, db)

	srv, seen := fakeMoodle(t, nil)
	syncer := NewSyncer(db, NewClient(srv.URL, "tok", testLogger()), testLogger())

	result, err := syncer.SyncUsers(context.Background(), org.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Empty(t, *seen)
}

func TestSyncEnrollments(t *testing.T) {
	db := testutil.SetupTestDB(t)
	org := testutil.CreateTestOrg(t, db)
	teacher := testutil.CreateTestUser(t, db, org, "teacher")
	student := testutil.CreateTestUser(t, db, org, "student")
	course := testutil.CreateTestCourse(t, db, org.ID, "Algebra I")
	require.NoError(t, db.Model(course).Update("moodle_course_id", 10).Error)

	srv, _ := fakeMoodle(t, map[string]string{
		"core_enrol_get_enrolled_users": `[
			{"id":7,"email":"` + teacher.Email + `","roles":[{"roleid":3,"shortname":"editingteacher"}]},
			{"id":8,"email":"` + student.Email + `","roles":[{"roleid":5,"shortname":"student"}]},
			{"id":9,"email":"stranger@elsewhere.test","roles":[{"roleid":5,"shortname":"student"}]}
		]`,
	})
	syncer := NewSyncer(db, NewClient(srv.URL, "tok", testLogger()), testLogger())

	result, err := syncer.SyncEnrollments(context.Background(), org.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Errors)

	var enrollments []models.Enrollment
	require.NoError(t, db.Where("course_id = ?", course.ID).Find(&enrollments).Error)
	require.Len(t, enrollments, 2)

	roles := map[string]string{}
	for _, e := range enrollments {
		switch e.UserID {
		case teacher.ID:
			roles["teacher"] = e.RoleInCourse
		case student.ID:
			roles["student"] = e.RoleInCourse
		}
	}
	assert.Equal(t, "teacher", roles["teacher"])
	assert.Equal(t, "student", roles["student"])

	// Reruns recognize existing rows.
	result, err = syncer.SyncEnrollments(context.Background(), org.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 2, result.Updated)
}

func TestRemoteRoleMapping(t *testing.T) {
	assert.Equal(t, "teacher", remoteRole(EnrolledUser{Roles: []Role{{ShortName: "editingteacher"}}}))
	assert.Equal(t, "teacher", remoteRole(EnrolledUser{Roles: []Role{{ShortName: "student"}, {ShortName: "teacher"}}}))
	assert.Equal(t, "student", remoteRole(EnrolledUser{Roles: []Role{{ShortName: "student"}}}))
	assert.Equal(t, "student", remoteRole(EnrolledUser{}))
}
