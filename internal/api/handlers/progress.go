package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lumeo/edugate/internal/api/dto"
	"github.com/lumeo/edugate/internal/database/models"
	"gorm.io/gorm"
)

type ProgressHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewProgressHandler(db *gorm.DB, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{db: db, logger: logger}
}

type ProgressResponse struct {
	ID              string  `json:"id"`
	CourseID        string  `json:"course_id"`
	UserID          string  `json:"user_id"`
	CompletedItems  int     `json:"completed_items"`
	TotalItems      int     `json:"total_items"`
	ProgressPercent float64 `json:"progress_percent"`
	Grade           float64 `json:"grade,omitempty"`
	LastActivityAt  int64   `json:"last_activity_at,omitempty"`
}

func progressToResponse(p *models.CourseProgress) ProgressResponse {
	resp := ProgressResponse{
		ID:              p.ID.String(),
		CourseID:        p.CourseID.String(),
		UserID:          p.UserID.String(),
		CompletedItems:  p.CompletedItems,
		TotalItems:      p.TotalItems,
		ProgressPercent: p.ProgressPercent,
		Grade:           p.Grade,
	}
	if p.LastActivityAt != nil {
		resp.LastActivityAt = *p.LastActivityAt
	}
	return resp
}

// Mine handles GET /api/v1/progress and returns the caller's own
// progress across courses. Every role can reach this.
func (h *ProgressHandler) Mine(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	var records []models.CourseProgress
	if err := h.db.
		Where("organization_id = ? AND user_id = ?", id.User.OrganizationID, id.User.ID).
		Find(&records).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load progress"})
		return
	}

	response := make([]ProgressResponse, len(records))
	for i := range records {
		response[i] = progressToResponse(&records[i])
	}
	writeJSON(w, http.StatusOK, response)
}

// Course handles GET /api/v1/courses/{id}/progress. The route gate
// restricts this to roles with the view-all permission.
func (h *ProgressHandler) Course(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	courseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid course ID"})
		return
	}

	var course models.Course
	err = h.db.Where("id = ? AND organization_id = ?", courseID, id.User.OrganizationID).
		First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Course not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load course"})
		return
	}

	var records []models.CourseProgress
	if err := h.db.Where("course_id = ?", course.ID).Find(&records).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load progress"})
		return
	}

	response := make([]ProgressResponse, len(records))
	for i := range records {
		response[i] = progressToResponse(&records[i])
	}
	writeJSON(w, http.StatusOK, response)
}

// Upsert handles PUT /api/v1/progress. Teachers and above record
// progress for any user in the organization; the user field defaults to
// the caller.
func (h *ProgressHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	var req dto.ProgressUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	courseID, err := uuid.Parse(req.CourseID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid course ID"})
		return
	}

	userID := id.User.ID
	if req.UserID != "" {
		userID, err = uuid.Parse(req.UserID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user ID"})
			return
		}
	}

	var course models.Course
	err = h.db.Where("id = ? AND organization_id = ?", courseID, id.User.OrganizationID).
		First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Course not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load course"})
		return
	}

	percent := 0.0
	if req.TotalItems > 0 {
		percent = float64(req.CompletedItems) / float64(req.TotalItems) * 100
	}
	now := time.Now().Unix()

	var record models.CourseProgress
	err = h.db.Where("course_id = ? AND user_id = ?", course.ID, userID).
		First(&record).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		record = models.CourseProgress{
			OrganizationID:  id.User.OrganizationID,
			CourseID:        course.ID,
			UserID:          userID,
			CompletedItems:  req.CompletedItems,
			TotalItems:      req.TotalItems,
			ProgressPercent: percent,
			Grade:           req.Grade,
			LastActivityAt:  &now,
		}
		if err := h.db.Create(&record).Error; err != nil {
			h.logger.Error("progress creation failed", "course_id", course.ID, "user_id", userID, "error", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to record progress"})
			return
		}
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load progress"})
		return
	default:
		updates := map[string]interface{}{
			"completed_items":  req.CompletedItems,
			"total_items":      req.TotalItems,
			"progress_percent": percent,
			"grade":            req.Grade,
			"last_activity_at": now,
		}
		if err := h.db.Model(&record).Updates(updates).Error; err != nil {
			h.logger.Error("progress update failed", "record_id", record.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to record progress"})
			return
		}
	}

	writeJSON(w, http.StatusOK, progressToResponse(&record))
}
