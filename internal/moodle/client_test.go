package moodle

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeMoodle serves canned JSON per wsfunction and records requests.
func fakeMoodle(t *testing.T, responses map[string]string) (*httptest.Server, *[]url.Values) {
	t.Helper()
	var seen []url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/webservice/rest/server.php", r.URL.Path)
		require.Equal(t, "json", r.URL.Query().Get("moodlewsrestformat"))
		require.NoError(t, r.ParseForm())
		seen = append(seen, r.Form)

		fn := r.URL.Query().Get("wsfunction")
		body, ok := responses[fn]
		if !ok {
			body = `{"exception":"moodle_exception","errorcode":"invalidfunction","message":"unknown function"}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestClientConfigured(t *testing.T) {
	assert.False(t, NewClient("", "", testLogger()).Configured())
	assert.False(t, NewClient("https://lms.example.com", "", testLogger()).Configured())
	assert.True(t, NewClient("https://lms.example.com", "tok", testLogger()).Configured())
}

func TestClientNotConfigured(t *testing.T) {
	c := NewClient("", "", testLogger())
	_, err := c.GetSiteInfo(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGetSiteInfo(t *testing.T) {
	srv, _ := fakeMoodle(t, map[string]string{
		"core_webservice_get_site_info": `{"sitename":"Acme LMS","username":"wsuser","release":"4.3","version":"2023100900","siteurl":"https://lms.example.com","userid":2}`,
	})

	c := NewClient(srv.URL, "tok", testLogger())
	info, err := c.GetSiteInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Acme LMS", info.SiteName)
	assert.Equal(t, 2, info.UserID)
	assert.NoError(t, c.TestConnection(context.Background()))
}

func TestAPIErrorInside200(t *testing.T) {
	srv, _ := fakeMoodle(t, map[string]string{
		"core_webservice_get_site_info": `{"exception":"moodle_exception","errorcode":"invalidtoken","message":"Invalid token"}`,
	})

	c := NewClient(srv.URL, "bad", testLogger())
	_, err := c.GetSiteInfo(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalidtoken", apiErr.ErrorCode)
	assert.Contains(t, apiErr.Error(), "Invalid token")
}

func TestGetUsersByField(t *testing.T) {
	srv, seen := fakeMoodle(t, map[string]string{
		"core_user_get_users_by_field": `[{"id":7,"username":"jane@acme.test","firstname":"Jane","lastname":"Doe","email":"jane@acme.test"}]`,
	})

	c := NewClient(srv.URL, "tok", testLogger())
	users, err := c.GetUsersByField(context.Background(), "email", []string{"jane@acme.test", "bob@acme.test"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, 7, users[0].ID)

	form := (*seen)[0]
	assert.Equal(t, "email", form.Get("field"))
	assert.Equal(t, "jane@acme.test", form.Get("values[0]"))
	assert.Equal(t, "bob@acme.test", form.Get("values[1]"))
}

func TestCreateUsersEncodesNestedParams(t *testing.T) {
	srv, seen := fakeMoodle(t, map[string]string{
		"core_user_create_users": `[{"id":42,"username":"jane@acme.test"}]`,
	})

	c := NewClient(srv.URL, "tok", testLogger())
	created, err := c.CreateUsers(context.Background(), []NewUser{{
		Username:  "jane@acme.test",
		Password:  "S3cret!pw",
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@acme.test",
	}})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, 42, created[0].ID)

	form := (*seen)[0]
	assert.Equal(t, "jane@acme.test", form.Get("users[0][username]"))
	assert.Equal(t, "Doe", form.Get("users[0][lastname]"))
}

func TestGetCoursesSkipsNothing(t *testing.T) {
	srv, _ := fakeMoodle(t, map[string]string{
		"core_course_get_courses": `[{"id":1,"shortname":"site","fullname":"Front page","visible":1},{"id":3,"shortname":"alg1","fullname":"Algebra I","summary":"Linear equations","visible":1}]`,
	})

	c := NewClient(srv.URL, "tok", testLogger())
	courses, err := c.GetCourses(context.Background())
	require.NoError(t, err)
	assert.Len(t, courses, 2)
	assert.Equal(t, "Algebra I", courses[1].FullName)
}

func TestEnrolUsers(t *testing.T) {
	srv, seen := fakeMoodle(t, map[string]string{
		"enrol_manual_enrol_users": `null`,
	})

	c := NewClient(srv.URL, "tok", testLogger())
	err := c.EnrolUsers(context.Background(), []Enrolment{{CourseID: 3, UserID: 7, RoleID: 5}})
	require.NoError(t, err)

	form := (*seen)[0]
	assert.Equal(t, "3", form.Get("enrolments[0][courseid]"))
	assert.Equal(t, "7", form.Get("enrolments[0][userid]"))
	assert.Equal(t, "5", form.Get("enrolments[0][roleid]"))
}

func TestGetGrades(t *testing.T) {
	srv, seen := fakeMoodle(t, map[string]string{
		"gradereport_user_get_grade_items": `{"usergrades":[{"courseid":3,"userid":7,"userfullname":"Jane Doe","gradeitems":[{"id":11,"itemname":"Quiz 1","graderaw":8.5,"grademax":10}]}]}`,
	})

	c := NewClient(srv.URL, "tok", testLogger())
	report, err := c.GetGrades(context.Background(), 3, 7)
	require.NoError(t, err)
	require.Len(t, report.UserGrades, 1)
	assert.InDelta(t, 8.5, report.UserGrades[0].GradeItems[0].GradeRaw, 0.001)

	form := (*seen)[0]
	assert.Equal(t, "3", form.Get("courseid"))
	assert.Equal(t, "7", form.Get("userid"))
}
