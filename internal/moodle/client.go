package moodle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("moodle integration is not configured")

// APIError is a structured error returned by the Moodle webservice.
type APIError struct {
	ErrorCode string `json:"errorcode"`
	Message   string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("moodle api error: %s - %s", e.ErrorCode, e.Message)
}

// Client talks to a Moodle instance over its REST webservice protocol:
// every call is a form-encoded POST to the webservice endpoint carrying
// wstoken, wsfunction and moodlewsrestformat=json.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// Configured reports whether the client has an endpoint and token.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.token != ""
}

func (c *Client) call(ctx context.Context, function string, params url.Values, out interface{}) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/webservice/rest/server.php?wstoken=%s&wsfunction=%s&moodlewsrestformat=json",
		c.baseURL, url.QueryEscape(c.token), url.QueryEscape(function))

	if params == nil {
		params = url.Values{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling moodle function %s: %w", function, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading moodle response: %w", err)
	}

	// Moodle reports errors inside a 200 response.
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.ErrorCode != "" {
		c.logger.Error("moodle call failed", "function", function, "errorcode", apiErr.ErrorCode)
		return &apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding moodle response for %s: %w", function, err)
	}
	return nil
}

// SiteInfo describes the connected Moodle instance.
type SiteInfo struct {
	SiteName    string `json:"sitename"`
	Username    string `json:"username"`
	Release     string `json:"release"`
	Version     string `json:"version"`
	SiteURL     string `json:"siteurl"`
	UserID      int    `json:"userid"`
}

func (c *Client) GetSiteInfo(ctx context.Context) (*SiteInfo, error) {
	var info SiteInfo
	if err := c.call(ctx, "core_webservice_get_site_info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// TestConnection verifies the endpoint and token by fetching site info.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.GetSiteInfo(ctx)
	return err
}

// GetUsers searches Moodle users by field criteria (key/value pairs).
func (c *Client) GetUsers(ctx context.Context, criteria map[string]string) ([]User, error) {
	params := url.Values{}
	i := 0
	for k, v := range criteria {
		params.Set(fmt.Sprintf("criteria[%d][key]", i), k)
		params.Set(fmt.Sprintf("criteria[%d][value]", i), v)
		i++
	}
	if i == 0 {
		params.Set("criteria[0][key]", "email")
		params.Set("criteria[0][value]", "%")
	}

	var resp struct {
		Users []User `json:"users"`
	}
	if err := c.call(ctx, "core_user_get_users", params, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// GetUsersByField fetches users matching one field against many values.
func (c *Client) GetUsersByField(ctx context.Context, field string, values []string) ([]User, error) {
	params := url.Values{}
	params.Set("field", field)
	for i, v := range values {
		params.Set(fmt.Sprintf("values[%d]", i), v)
	}

	var users []User
	if err := c.call(ctx, "core_user_get_users_by_field", params, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUsers provisions users in Moodle and returns their new IDs.
func (c *Client) CreateUsers(ctx context.Context, users []NewUser) ([]CreatedUser, error) {
	params := url.Values{}
	for i, u := range users {
		prefix := fmt.Sprintf("users[%d]", i)
		params.Set(prefix+"[username]", u.Username)
		params.Set(prefix+"[password]", u.Password)
		params.Set(prefix+"[firstname]", u.FirstName)
		params.Set(prefix+"[lastname]", u.LastName)
		params.Set(prefix+"[email]", u.Email)
	}

	var created []CreatedUser
	if err := c.call(ctx, "core_user_create_users", params, &created); err != nil {
		return nil, err
	}
	return created, nil
}

// DeleteUsers removes users from Moodle by ID.
func (c *Client) DeleteUsers(ctx context.Context, userIDs []int) error {
	params := url.Values{}
	for i, id := range userIDs {
		params.Set(fmt.Sprintf("userids[%d]", i), strconv.Itoa(id))
	}
	return c.call(ctx, "core_user_delete_users", params, nil)
}

// GetCourses lists courses visible to the webservice user.
func (c *Client) GetCourses(ctx context.Context) ([]Course, error) {
	var courses []Course
	if err := c.call(ctx, "core_course_get_courses", nil, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// GetCoursesByField fetches courses matching a single field value.
func (c *Client) GetCoursesByField(ctx context.Context, field, value string) ([]Course, error) {
	params := url.Values{}
	params.Set("field", field)
	params.Set("value", value)

	var resp struct {
		Courses []Course `json:"courses"`
	}
	if err := c.call(ctx, "core_course_get_courses_by_field", params, &resp); err != nil {
		return nil, err
	}
	return resp.Courses, nil
}

// GetCourseContents returns the module structure of a course.
func (c *Client) GetCourseContents(ctx context.Context, courseID int) ([]CourseSection, error) {
	params := url.Values{}
	params.Set("courseid", strconv.Itoa(courseID))

	var sections []CourseSection
	if err := c.call(ctx, "core_course_get_contents", params, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// GetEnrolledUsers lists users enrolled in a course.
func (c *Client) GetEnrolledUsers(ctx context.Context, courseID int) ([]EnrolledUser, error) {
	params := url.Values{}
	params.Set("courseid", strconv.Itoa(courseID))

	var users []EnrolledUser
	if err := c.call(ctx, "core_enrol_get_enrolled_users", params, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUserCourses lists the courses a user is enrolled in.
func (c *Client) GetUserCourses(ctx context.Context, userID int) ([]Course, error) {
	params := url.Values{}
	params.Set("userid", strconv.Itoa(userID))

	var courses []Course
	if err := c.call(ctx, "core_enrol_get_users_courses", params, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// EnrolUsers enrols users into courses with the manual enrolment plugin.
func (c *Client) EnrolUsers(ctx context.Context, enrolments []Enrolment) error {
	params := url.Values{}
	for i, e := range enrolments {
		prefix := fmt.Sprintf("enrolments[%d]", i)
		params.Set(prefix+"[courseid]", strconv.Itoa(e.CourseID))
		params.Set(prefix+"[userid]", strconv.Itoa(e.UserID))
		params.Set(prefix+"[roleid]", strconv.Itoa(e.RoleID))
	}
	return c.call(ctx, "enrol_manual_enrol_users", params, nil)
}

// UnenrolUsers removes users from courses.
func (c *Client) UnenrolUsers(ctx context.Context, enrolments []Enrolment) error {
	params := url.Values{}
	for i, e := range enrolments {
		prefix := fmt.Sprintf("enrolments[%d]", i)
		params.Set(prefix+"[courseid]", strconv.Itoa(e.CourseID))
		params.Set(prefix+"[userid]", strconv.Itoa(e.UserID))
	}
	return c.call(ctx, "enrol_manual_unenrol_users", params, nil)
}

// GetGrades fetches grade items for a course, optionally one user.
func (c *Client) GetGrades(ctx context.Context, courseID int, userID int) (*GradeReport, error) {
	params := url.Values{}
	params.Set("courseid", strconv.Itoa(courseID))
	if userID > 0 {
		params.Set("userid", strconv.Itoa(userID))
	}

	var report GradeReport
	if err := c.call(ctx, "gradereport_user_get_grade_items", params, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
