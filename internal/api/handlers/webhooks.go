package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/lumeo/edugate/internal/api/dto"
	"github.com/lumeo/edugate/internal/database/models"
	"github.com/lumeo/edugate/internal/tasks"
	"github.com/lumeo/edugate/pkg/queue"
	"gorm.io/gorm"
)

type WebhookHandler struct {
	db          *gorm.DB
	asynqClient *asynq.Client
	logger      *slog.Logger
}

func NewWebhookHandler(db *gorm.DB, asynqClient *asynq.Client, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{db: db, asynqClient: asynqClient, logger: logger}
}

// Receive handles POST /api/v1/webhooks/moodle. The endpoint is public;
// the event is persisted first and processed asynchronously so the
// sender gets a fast acknowledgement.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req dto.WebhookEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid organization ID"})
		return
	}

	var org models.Organization
	err = h.db.First(&org, "id = ?", orgID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Organization not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load organization"})
		return
	}

	event := models.WebhookEvent{
		OrganizationID: orgID,
		Source:         req.Source,
		EventType:      req.EventType,
		Payload:        string(req.Payload),
		Status:         models.WebhookStatusPending,
	}
	if err := h.db.Create(&event).Error; err != nil {
		h.logger.Error("webhook persistence failed", "org_id", orgID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to record event"})
		return
	}

	task, err := tasks.NewWebhookEventTask(tasks.WebhookPayload{
		EventID:        event.ID,
		OrganizationID: orgID,
	})
	if err == nil {
		_, err = h.asynqClient.EnqueueContext(r.Context(), task,
			asynq.Queue(queue.QueueWebhooks),
			asynq.MaxRetry(5),
		)
	}
	if err != nil {
		// The event row survives; a later replay can pick it up.
		h.logger.Error("webhook enqueue failed", "event_id", event.ID, "error", err)
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"event_id": event.ID.String()})
}

type WebhookEventResponse struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	EventType   string `json:"event_type"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	ProcessedAt int64  `json:"processed_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// List handles GET /api/v1/webhooks
func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	pagination := parsePagination(r)

	query := h.db.Model(&models.WebhookEvent{}).
		Where("organization_id = ?", id.User.OrganizationID)
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count events"})
		return
	}

	var events []models.WebhookEvent
	if err := query.
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&events).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list events"})
		return
	}

	response := make([]WebhookEventResponse, len(events))
	for i, e := range events {
		response[i] = WebhookEventResponse{
			ID:        e.ID.String(),
			Source:    e.Source,
			EventType: e.EventType,
			Status:    e.Status,
			Error:     e.Error,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
		if e.ProcessedAt != nil {
			response[i].ProcessedAt = *e.ProcessedAt
		}
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       response,
		Total:      total,
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		TotalPages: totalPages(total, pagination.PerPage),
	})
}
