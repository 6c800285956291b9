package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription lifecycle states. Expired, suspended and cancelled are
// terminal for gating purposes; the record itself is never deleted.
const (
	SubscriptionTrial     = "trial"
	SubscriptionActive    = "active"
	SubscriptionExpired   = "expired"
	SubscriptionCancelled = "cancelled"
	SubscriptionSuspended = "suspended"
)

// TrialAccount is the per-organization commercial record: current plan,
// lifecycle status and trial window. One per organization.
type TrialAccount struct {
	Base
	CompanyName  string     `gorm:"not null" json:"company_name"`
	Plan         string     `gorm:"default:'trial'" json:"plan"` // trial, basic, premium, enterprise
	Status       string     `gorm:"default:'trial';index" json:"status"`
	IsExpired    bool       `gorm:"default:false" json:"is_expired"`
	TrialStartsAt time.Time `json:"trial_starts_at"`
	TrialEndsAt   time.Time `json:"trial_ends_at"`
	OwnerUserID  *uuid.UUID `gorm:"type:uuid" json:"owner_user_id,omitempty"`
}

func (TrialAccount) TableName() string {
	return "trial_accounts"
}
