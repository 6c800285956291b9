package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lumeo/edugate/internal/auth"
	"github.com/lumeo/edugate/internal/database/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Run migrations
	err = db.AutoMigrate(
		&models.TrialAccount{},
		&models.Organization{},
		&models.User{},
		&models.UserPermission{},
		&models.Course{},
		&models.Enrollment{},
		&models.CourseProgress{},
		&models.WebhookEvent{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// DiscardLogger returns a logger that swallows all output
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CreateTestOrg creates an organization backed by an active trial account
func CreateTestOrg(t *testing.T, db *gorm.DB) *models.Organization {
	t.Helper()

	now := time.Now()
	account := &models.TrialAccount{
		Base:          models.Base{ID: uuid.New()},
		CompanyName:   "Test Academy",
		Plan:          "trial",
		Status:        models.SubscriptionTrial,
		TrialStartsAt: now,
		TrialEndsAt:   now.Add(7 * 24 * time.Hour),
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create trial account: %v", err)
	}

	org := &models.Organization{
		Base:           models.Base{ID: uuid.New()},
		Name:           "Test Academy",
		Slug:           "test-academy-" + uuid.New().String()[:8],
		TrialAccountID: account.ID,
	}
	if err := db.Create(org).Error; err != nil {
		t.Fatalf("failed to create test organization: %v", err)
	}

	org.TrialAccount = account
	return org
}

// CreateTestUser creates a user with the given role in the organization
func CreateTestUser(t *testing.T, db *gorm.DB, org *models.Organization, role string) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("Testpassw0rd")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Base:           models.Base{ID: uuid.New()},
		Email:          "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash:   hash,
		FirstName:      "Test",
		LastName:       "User",
		OrganizationID: org.ID,
		TrialAccountID: org.TrialAccountID,
		Role:           role,
		IsActive:       true,
		EmailVerified:  true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	user.Organization = org
	return user
}

// SeedPermission inserts one permission definition
func SeedPermission(t *testing.T, db *gorm.DB, name, category string, defaultRoles ...string) *models.UserPermission {
	t.Helper()

	perm := &models.UserPermission{
		Base:         models.Base{ID: uuid.New()},
		Name:         name,
		Category:     category,
		DefaultRoles: models.StringArray(defaultRoles),
	}
	if err := db.Create(perm).Error; err != nil {
		t.Fatalf("failed to seed permission %s: %v", name, err)
	}
	return perm
}

// CreateTestCourse creates a course in the organization
func CreateTestCourse(t *testing.T, db *gorm.DB, orgID uuid.UUID, name string) *models.Course {
	t.Helper()

	course := &models.Course{
		Base:           models.Base{ID: uuid.New()},
		OrganizationID: orgID,
		Name:           name,
		IsVisible:      true,
	}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("failed to create test course: %v", err)
	}
	return course
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.OrganizationID, user.Email, user.Role, user.EmailVerified)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Org        *models.Organization
	Admin      *models.User
	Token      string
}

// NewTestContext creates a complete test setup with DB, org, admin user
// and token
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	org := CreateTestOrg(t, db)
	admin := CreateTestUser(t, db, org, "admin")
	token := GenerateTestToken(t, jwtService, admin)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Org:        org,
		Admin:      admin,
		Token:      token,
	}
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
