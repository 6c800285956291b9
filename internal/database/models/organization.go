package models

import "github.com/google/uuid"

type Organization struct {
	Base
	Name           string    `gorm:"not null" json:"name"`
	Slug           string    `gorm:"uniqueIndex;not null" json:"slug"`
	Description    string    `json:"description,omitempty"`
	TrialAccountID uuid.UUID `gorm:"type:uuid;index" json:"trial_account_id"`

	// Relationships
	TrialAccount *TrialAccount `gorm:"foreignKey:TrialAccountID" json:"trial_account,omitempty"`
	Users        []User        `gorm:"foreignKey:OrganizationID" json:"-"`
	Courses      []Course      `gorm:"foreignKey:OrganizationID" json:"-"`
}

func (Organization) TableName() string {
	return "organizations"
}
