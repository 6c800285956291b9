package models

import "github.com/google/uuid"

type User struct {
	Base
	Email          string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash   string    `gorm:"not null" json:"-"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Phone          string    `json:"phone,omitempty"`
	OrganizationID uuid.UUID `gorm:"type:uuid;index" json:"organization_id"`
	TrialAccountID uuid.UUID `gorm:"type:uuid;index" json:"trial_account_id"`
	Role           string    `gorm:"default:'student'" json:"role"` // admin, directorate, coordinator, teacher, student
	IsActive       bool      `gorm:"default:true" json:"is_active"`
	IsTrialOwner   bool      `gorm:"default:false" json:"is_trial_owner"`
	EmailVerified  bool      `gorm:"default:false" json:"email_verified"`

	// Additive per-user permission grants, on top of the role defaults.
	CustomPermissions StringArray `gorm:"type:text" json:"custom_permissions"`

	// Educational profile
	Department string `json:"department,omitempty"`
	Grade      string `json:"grade,omitempty"`

	CreatedByID *uuid.UUID `gorm:"type:uuid" json:"created_by_id,omitempty"`
	InvitedAt   *int64     `json:"invited_at,omitempty"`

	// Relationships
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}

func (User) TableName() string {
	return "users"
}
