package dto

import "encoding/json"

type WebhookEventRequest struct {
	OrganizationID string          `json:"organization_id"`
	Source         string          `json:"source"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

func (r WebhookEventRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.OrganizationID == "" {
		errors["organization_id"] = "Organization ID is required"
	}
	if r.Source == "" {
		errors["source"] = "Source is required"
	}
	if r.EventType == "" {
		errors["event_type"] = "Event type is required"
	}

	return errors
}

type SyncRequest struct {
	Scope string `json:"scope,omitempty"` // users, courses, enrollments or all
}
