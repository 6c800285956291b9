package moodle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lumeo/edugate/internal/database/models"
	"gorm.io/gorm"
)

// SyncResult summarizes one synchronization pass.
type SyncResult struct {
	Created       int       `json:"created"`
	Updated       int       `json:"updated"`
	Errors        int       `json:"errors"`
	ErrorMessages []string  `json:"error_messages,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Syncer reconciles local records with the connected Moodle instance.
// Courses and enrollments mirror inbound; users provision outbound so
// invited platform users gain LMS accounts.
type Syncer struct {
	db     *gorm.DB
	client *Client
	logger *slog.Logger
}

func NewSyncer(db *gorm.DB, client *Client, logger *slog.Logger) *Syncer {
	return &Syncer{db: db, client: client, logger: logger}
}

// SyncCourses pulls the Moodle course list and upserts the organization's
// course mirror, keyed by the remote course ID.
func (s *Syncer) SyncCourses(ctx context.Context, orgID uuid.UUID) (*SyncResult, error) {
	remote, err := s.client.GetCourses(ctx)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{}
	now := time.Now().Unix()

	for _, rc := range remote {
		// Course id 1 is Moodle's front page, not a real course.
		if rc.ID == 1 {
			continue
		}

		var course models.Course
		err := s.db.WithContext(ctx).
			Where("organization_id = ? AND moodle_course_id = ?", orgID, rc.ID).
			First(&course).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			course = models.Course{
				OrganizationID: orgID,
				Name:           rc.FullName,
				ShortName:      rc.ShortName,
				Description:    rc.Summary,
				IsVisible:      rc.Visible == 1,
				MoodleCourseID: rc.ID,
				LastSyncedAt:   &now,
			}
			if err := s.db.WithContext(ctx).Create(&course).Error; err != nil {
				result.Errors++
				result.ErrorMessages = append(result.ErrorMessages, fmt.Sprintf("course %d: %v", rc.ID, err))
				continue
			}
			result.Created++
		case err != nil:
			result.Errors++
			result.ErrorMessages = append(result.ErrorMessages, fmt.Sprintf("course %d: %v", rc.ID, err))
		default:
			updates := map[string]interface{}{
				"name":           rc.FullName,
				"short_name":     rc.ShortName,
				"description":    rc.Summary,
				"is_visible":     rc.Visible == 1,
				"last_synced_at": now,
			}
			if err := s.db.WithContext(ctx).Model(&course).Updates(updates).Error; err != nil {
				result.Errors++
				result.ErrorMessages = append(result.ErrorMessages, fmt.Sprintf("course %d: %v", rc.ID, err))
				continue
			}
			result.Updated++
		}
	}

	result.CompletedAt = time.Now()
	s.logger.Info("courses sync completed",
		"organization_id", orgID,
		"created", result.Created,
		"updated", result.Updated,
		"errors", result.Errors,
	)
	return result, nil
}

// SyncUsers provisions local active users that have no Moodle account.
// Matching is by email; existing accounts count as updated.
func (s *Syncer) SyncUsers(ctx context.Context, orgID uuid.UUID) (*SyncResult, error) {
	var locals []models.User
	if err := s.db.WithContext(ctx).
		Where("organization_id = ? AND is_active = ?", orgID, true).
		Find(&locals).Error; err != nil {
		return nil, err
	}

	result := &SyncResult{}
	if len(locals) == 0 {
		result.CompletedAt = time.Now()
		return result, nil
	}

	emails := make([]string, len(locals))
	for i, u := range locals {
		emails[i] = u.Email
	}

	remote, err := s.client.GetUsersByField(ctx, "email", emails)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(remote))
	for _, ru := range remote {
		existing[ru.Email] = true
	}

	for _, u := range locals {
		if existing[u.Email] {
			result.Updated++
			continue
		}

		tempPassword, err := randomMoodlePassword()
		if err != nil {
			result.Errors++
			result.ErrorMessages = append(result.ErrorMessages, fmt.Sprintf("user %s: %v", u.Email, err))
			continue
		}

		_, err = s.client.CreateUsers(ctx, []NewUser{{
			Username:  u.Email,
			Password:  tempPassword,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
		}})
		if err != nil {
			result.Errors++
			result.ErrorMessages = append(result.ErrorMessages, fmt.Sprintf("user %s: %v", u.Email, err))
			continue
		}
		result.Created++
	}

	result.CompletedAt = time.Now()
	s.logger.Info("users sync completed",
		"organization_id", orgID,
		"created", result.Created,
		"updated", result.Updated,
		"errors", result.Errors,
	)
	return result, nil
}

// SyncEnrollments pulls enrolments for every mirrored course and upserts
// local enrollment rows, matching remote users to local ones by email.
func (s *Syncer) SyncEnrollments(ctx context.Context, orgID uuid.UUID) (*SyncResult, error) {
	var courses []models.Course
	if err := s.db.WithContext(ctx).
		Where("organization_id = ? AND moodle_course_id > 0", orgID).
		Find(&courses).Error; err != nil {
		return nil, err
	}

	var locals []models.User
	if err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Find(&locals).Error; err != nil {
		return nil, err
	}
	byEmail := make(map[string]uuid.UUID, len(locals))
	for _, u := range locals {
		byEmail[u.Email] = u.ID
	}

	result := &SyncResult{}

	for _, course := range courses {
		enrolled, err := s.client.GetEnrolledUsers(ctx, course.MoodleCourseID)
		if err != nil {
			result.Errors++
			result.ErrorMessages = append(result.ErrorMessages, fmt.Sprintf("course %d: %v", course.MoodleCourseID, err))
			continue
		}

		for _, ru := range enrolled {
			userID, ok := byEmail[ru.Email]
			if !ok {
				continue
			}

			var enrollment models.Enrollment
			err := s.db.WithContext(ctx).
				Where("course_id = ? AND user_id = ?", course.ID, userID).
				First(&enrollment).Error

			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				enrollment = models.Enrollment{
					OrganizationID: orgID,
					CourseID:       course.ID,
					UserID:         userID,
					RoleInCourse:   remoteRole(ru),
				}
				if err := s.db.WithContext(ctx).Create(&enrollment).Error; err != nil {
					result.Errors++
					result.ErrorMessages = append(result.ErrorMessages, fmt.Sprintf("enrollment %s: %v", ru.Email, err))
					continue
				}
				result.Created++
			case err != nil:
				result.Errors++
				result.ErrorMessages = append(result.ErrorMessages, fmt.Sprintf("enrollment %s: %v", ru.Email, err))
			default:
				result.Updated++
			}
		}
	}

	result.CompletedAt = time.Now()
	s.logger.Info("enrollments sync completed",
		"organization_id", orgID,
		"created", result.Created,
		"updated", result.Updated,
		"errors", result.Errors,
	)
	return result, nil
}

// randomMoodlePassword generates a throwaway password for provisioned
// accounts. Users reset it through Moodle's own flow on first login.
func randomMoodlePassword() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	// Moodle's default policy wants mixed case, a digit and a symbol.
	return "Aa1!" + base64.RawURLEncoding.EncodeToString(buf), nil
}

func remoteRole(u EnrolledUser) string {
	for _, r := range u.Roles {
		if r.ShortName == "editingteacher" || r.ShortName == "teacher" {
			return "teacher"
		}
	}
	return "student"
}
