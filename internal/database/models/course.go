package models

import "github.com/google/uuid"

type Course struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;index" json:"organization_id"`
	Name           string    `gorm:"not null" json:"name"`
	ShortName      string    `json:"short_name"`
	Description    string    `json:"description,omitempty"`
	Category       string    `json:"category,omitempty"`
	IsVisible      bool      `gorm:"default:true" json:"is_visible"`

	// Moodle mirror. Zero when the course exists only locally.
	MoodleCourseID int    `gorm:"index" json:"moodle_course_id,omitempty"`
	LastSyncedAt   *int64 `json:"last_synced_at,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

type Enrollment struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;index" json:"organization_id"`
	CourseID       uuid.UUID `gorm:"type:uuid;index" json:"course_id"`
	UserID         uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	RoleInCourse   string    `gorm:"default:'student'" json:"role_in_course"`

	Course *Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	User   *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

type CourseProgress struct {
	Base
	OrganizationID  uuid.UUID `gorm:"type:uuid;index" json:"organization_id"`
	CourseID        uuid.UUID `gorm:"type:uuid;index" json:"course_id"`
	UserID          uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	CompletedItems  int       `json:"completed_items"`
	TotalItems      int       `json:"total_items"`
	ProgressPercent float64   `json:"progress_percent"`
	Grade           float64   `json:"grade,omitempty"`
	LastActivityAt  *int64    `json:"last_activity_at,omitempty"`
}

func (CourseProgress) TableName() string {
	return "course_progress"
}
