package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeSyncUsers       = "sync:users"
	TypeSyncCourses     = "sync:courses"
	TypeSyncEnrollments = "sync:enrollments"
	TypeSyncAll         = "sync:all"
	TypeWebhookEvent    = "webhook:event"
	TypeReportGenerate  = "report:generate"
)

// SyncPayload identifies the organization a sync pass runs for.
type SyncPayload struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	RequestedByID  uuid.UUID `json:"requested_by_id"`
}

func NewSyncUsersTask(payload SyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSyncUsers, data), nil
}

func NewSyncCoursesTask(payload SyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSyncCourses, data), nil
}

func NewSyncEnrollmentsTask(payload SyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSyncEnrollments, data), nil
}

func NewSyncAllTask(payload SyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSyncAll, data), nil
}

// WebhookPayload points at a stored inbound event awaiting processing.
type WebhookPayload struct {
	EventID        uuid.UUID `json:"event_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
}

func NewWebhookEventTask(payload WebhookPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeWebhookEvent, data), nil
}

// ReportPayload describes a progress report request.
type ReportPayload struct {
	OrganizationID uuid.UUID  `json:"organization_id"`
	CourseID       *uuid.UUID `json:"course_id,omitempty"`
	RequestedByID  uuid.UUID  `json:"requested_by_id"`
}

func NewReportGenerateTask(payload ReportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReportGenerate, data), nil
}
