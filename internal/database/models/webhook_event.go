package models

import "github.com/google/uuid"

const (
	WebhookStatusPending   = "pending"
	WebhookStatusProcessed = "processed"
	WebhookStatusFailed    = "failed"
)

// WebhookEvent records an inbound event from an external system before it
// is handed to the webhook queue.
type WebhookEvent struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;index" json:"organization_id"`
	Source         string    `gorm:"index" json:"source"`
	EventType      string    `json:"event_type"`
	Payload        string    `json:"payload"` // raw JSON
	Status         string    `gorm:"default:'pending'" json:"status"`
	Error          string    `json:"error,omitempty"`
	ProcessedAt    *int64    `json:"processed_at,omitempty"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
