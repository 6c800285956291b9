package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/lumeo/edugate/internal/database/models"
	"github.com/lumeo/edugate/internal/moodle"
	"gorm.io/gorm"
)

type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
	syncer *moodle.Syncer
}

func NewHandler(db *gorm.DB, logger *slog.Logger, syncer *moodle.Syncer) *Handler {
	return &Handler{
		db:     db,
		logger: logger,
		syncer: syncer,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeSyncUsers, h.HandleSyncUsers)
	mux.HandleFunc(TypeSyncCourses, h.HandleSyncCourses)
	mux.HandleFunc(TypeSyncEnrollments, h.HandleSyncEnrollments)
	mux.HandleFunc(TypeSyncAll, h.HandleSyncAll)
	mux.HandleFunc(TypeWebhookEvent, h.HandleWebhookEvent)
	mux.HandleFunc(TypeReportGenerate, h.HandleReportGenerate)
}

func (h *Handler) HandleSyncUsers(ctx context.Context, t *asynq.Task) error {
	var payload SyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	h.logger.Info("starting user sync", "org_id", payload.OrganizationID)

	result, err := h.syncer.SyncUsers(ctx, payload.OrganizationID)
	if err != nil {
		h.logger.Error("user sync failed", "org_id", payload.OrganizationID, "error", err)
		return err
	}

	h.logger.Info("completed user sync",
		"org_id", payload.OrganizationID,
		"created", result.Created,
		"updated", result.Updated,
		"errors", result.Errors,
	)
	return nil
}

func (h *Handler) HandleSyncCourses(ctx context.Context, t *asynq.Task) error {
	var payload SyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	h.logger.Info("starting course sync", "org_id", payload.OrganizationID)

	result, err := h.syncer.SyncCourses(ctx, payload.OrganizationID)
	if err != nil {
		h.logger.Error("course sync failed", "org_id", payload.OrganizationID, "error", err)
		return err
	}

	h.logger.Info("completed course sync",
		"org_id", payload.OrganizationID,
		"created", result.Created,
		"updated", result.Updated,
		"errors", result.Errors,
	)
	return nil
}

func (h *Handler) HandleSyncEnrollments(ctx context.Context, t *asynq.Task) error {
	var payload SyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	h.logger.Info("starting enrollment sync", "org_id", payload.OrganizationID)

	result, err := h.syncer.SyncEnrollments(ctx, payload.OrganizationID)
	if err != nil {
		h.logger.Error("enrollment sync failed", "org_id", payload.OrganizationID, "error", err)
		return err
	}

	h.logger.Info("completed enrollment sync",
		"org_id", payload.OrganizationID,
		"created", result.Created,
		"updated", result.Updated,
		"errors", result.Errors,
	)
	return nil
}

// HandleSyncAll runs the three sync passes in dependency order. Courses
// come before enrollments so new mirrors pick up their rosters in the
// same pass.
func (h *Handler) HandleSyncAll(ctx context.Context, t *asynq.Task) error {
	var payload SyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	h.logger.Info("starting full sync", "org_id", payload.OrganizationID)

	if _, err := h.syncer.SyncUsers(ctx, payload.OrganizationID); err != nil {
		return fmt.Errorf("user sync: %w", err)
	}
	if _, err := h.syncer.SyncCourses(ctx, payload.OrganizationID); err != nil {
		return fmt.Errorf("course sync: %w", err)
	}
	if _, err := h.syncer.SyncEnrollments(ctx, payload.OrganizationID); err != nil {
		return fmt.Errorf("enrollment sync: %w", err)
	}

	h.logger.Info("completed full sync", "org_id", payload.OrganizationID)
	return nil
}

func (h *Handler) HandleWebhookEvent(ctx context.Context, t *asynq.Task) error {
	var payload WebhookPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	var event models.WebhookEvent
	if err := h.db.WithContext(ctx).First(&event, "id = ?", payload.EventID).Error; err != nil {
		return fmt.Errorf("load webhook event %s: %w", payload.EventID, err)
	}
	if event.Status == models.WebhookStatusProcessed {
		return nil
	}

	h.logger.Info("processing webhook event",
		"event_id", event.ID,
		"source", event.Source,
		"event_type", event.EventType,
	)

	err := h.dispatchWebhook(ctx, &event)
	now := time.Now().Unix()
	if err != nil {
		h.db.WithContext(ctx).Model(&event).Updates(map[string]interface{}{
			"status":       models.WebhookStatusFailed,
			"error":        err.Error(),
			"processed_at": now,
		})
		return err
	}

	return h.db.WithContext(ctx).Model(&event).Updates(map[string]interface{}{
		"status":       models.WebhookStatusProcessed,
		"error":        "",
		"processed_at": now,
	}).Error
}

// dispatchWebhook maps event types to the sync pass that absorbs them.
// Unknown event types are recorded as processed so Moodle plugins can
// emit more than we consume.
func (h *Handler) dispatchWebhook(ctx context.Context, event *models.WebhookEvent) error {
	switch event.EventType {
	case "user_created", "user_updated", "user_deleted":
		_, err := h.syncer.SyncUsers(ctx, event.OrganizationID)
		return err
	case "course_created", "course_updated", "course_deleted":
		_, err := h.syncer.SyncCourses(ctx, event.OrganizationID)
		return err
	case "user_enrolled", "user_unenrolled":
		_, err := h.syncer.SyncEnrollments(ctx, event.OrganizationID)
		return err
	default:
		h.logger.Warn("ignoring unknown webhook event type", "event_type", event.EventType)
		return nil
	}
}

// HandleReportGenerate recomputes stored progress percentages for an
// organization, or a single course when the payload names one.
func (h *Handler) HandleReportGenerate(ctx context.Context, t *asynq.Task) error {
	var payload ReportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	query := h.db.WithContext(ctx).Where("organization_id = ?", payload.OrganizationID)
	if payload.CourseID != nil {
		query = query.Where("course_id = ?", *payload.CourseID)
	}

	var records []models.CourseProgress
	if err := query.Find(&records).Error; err != nil {
		return fmt.Errorf("load progress records: %w", err)
	}

	updated := 0
	for i := range records {
		rec := &records[i]
		percent := 0.0
		if rec.TotalItems > 0 {
			percent = float64(rec.CompletedItems) / float64(rec.TotalItems) * 100
		}
		if percent == rec.ProgressPercent {
			continue
		}
		if err := h.db.WithContext(ctx).Model(rec).
			Update("progress_percent", percent).Error; err != nil {
			h.logger.Error("failed to update progress record", "record_id", rec.ID, "error", err)
			continue
		}
		updated++
	}

	h.logger.Info("completed progress report",
		"org_id", payload.OrganizationID,
		"records", len(records),
		"updated", updated,
	)
	return nil
}
