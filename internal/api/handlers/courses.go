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

type CourseHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewCourseHandler(db *gorm.DB, logger *slog.Logger) *CourseHandler {
	return &CourseHandler{db: db, logger: logger}
}

// CourseResponse represents a course in API responses
type CourseResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ShortName      string `json:"short_name,omitempty"`
	Description    string `json:"description,omitempty"`
	Category       string `json:"category,omitempty"`
	IsVisible      bool   `json:"is_visible"`
	MoodleCourseID int    `json:"moodle_course_id,omitempty"`
	LastSyncedAt   int64  `json:"last_synced_at,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func courseToResponse(c *models.Course) CourseResponse {
	resp := CourseResponse{
		ID:             c.ID.String(),
		Name:           c.Name,
		ShortName:      c.ShortName,
		Description:    c.Description,
		Category:       c.Category,
		IsVisible:      c.IsVisible,
		MoodleCourseID: c.MoodleCourseID,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
	}
	if c.LastSyncedAt != nil {
		resp.LastSyncedAt = *c.LastSyncedAt
	}
	return resp
}

// List handles GET /api/v1/courses
func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	pagination := parsePagination(r)

	query := h.db.Model(&models.Course{}).Where("organization_id = ?", id.User.OrganizationID)
	if category := r.URL.Query().Get("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count courses"})
		return
	}

	var courses []models.Course
	if err := query.
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&courses).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list courses"})
		return
	}

	response := make([]CourseResponse, len(courses))
	for i := range courses {
		response[i] = courseToResponse(&courses[i])
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       response,
		Total:      total,
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		TotalPages: totalPages(total, pagination.PerPage),
	})
}

// Get handles GET /api/v1/courses/{id}
func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	course, ok := h.loadCourse(w, r, id.User.OrganizationID)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, courseToResponse(course))
}

// Create handles POST /api/v1/courses
func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	var req dto.CreateCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	course := models.Course{
		OrganizationID: id.User.OrganizationID,
		Name:           req.Name,
		ShortName:      req.ShortName,
		Description:    req.Description,
		Category:       req.Category,
		IsVisible:      true,
	}
	if req.IsVisible != nil {
		course.IsVisible = *req.IsVisible
	}

	if err := h.db.Create(&course).Error; err != nil {
		h.logger.Error("course creation failed", "org_id", id.User.OrganizationID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create course"})
		return
	}

	writeJSON(w, http.StatusCreated, courseToResponse(&course))
}

// Update handles PATCH /api/v1/courses/{id}
func (h *CourseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	var req dto.UpdateCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	course, ok := h.loadCourse(w, r, id.User.OrganizationID)
	if !ok {
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.ShortName != nil {
		updates["short_name"] = *req.ShortName
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.IsVisible != nil {
		updates["is_visible"] = *req.IsVisible
	}

	if len(updates) > 0 {
		if err := h.db.Model(course).Updates(updates).Error; err != nil {
			h.logger.Error("course update failed", "course_id", course.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update course"})
			return
		}
	}

	writeJSON(w, http.StatusOK, courseToResponse(course))
}

// Delete handles DELETE /api/v1/courses/{id}
func (h *CourseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	course, ok := h.loadCourse(w, r, id.User.OrganizationID)
	if !ok {
		return
	}

	if err := h.db.Delete(course).Error; err != nil {
		h.logger.Error("course deletion failed", "course_id", course.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete course"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Course deleted"})
}

// Enroll handles POST /api/v1/courses/{id}/enrollments
func (h *CourseHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	var req dto.EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	course, ok := h.loadCourse(w, r, id.User.OrganizationID)
	if !ok {
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user ID"})
		return
	}
	var target models.User
	err = h.db.Where("id = ? AND organization_id = ?", userID, id.User.OrganizationID).
		First(&target).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load user"})
		return
	}

	var existing models.Enrollment
	err = h.db.Where("course_id = ? AND user_id = ?", course.ID, target.ID).
		First(&existing).Error
	if err == nil {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "User is already enrolled"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to check enrollment"})
		return
	}

	role := req.RoleInCourse
	if role == "" {
		role = "student"
	}
	enrollment := models.Enrollment{
		OrganizationID: id.User.OrganizationID,
		CourseID:       course.ID,
		UserID:         target.ID,
		RoleInCourse:   role,
	}
	if err := h.db.Create(&enrollment).Error; err != nil {
		h.logger.Error("enrollment failed", "course_id", course.ID, "user_id", target.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to enroll user"})
		return
	}

	writeJSON(w, http.StatusCreated, dto.SuccessResponse{Message: "User enrolled"})
}

// Unenroll handles DELETE /api/v1/courses/{id}/enrollments/{userID}
func (h *CourseHandler) Unenroll(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	course, ok := h.loadCourse(w, r, id.User.OrganizationID)
	if !ok {
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user ID"})
		return
	}

	result := h.db.Where("course_id = ? AND user_id = ?", course.ID, userID).
		Delete(&models.Enrollment{})
	if result.Error != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to unenroll user"})
		return
	}
	if result.RowsAffected == 0 {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Enrollment not found"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "User unenrolled"})
}

// Enrollments handles GET /api/v1/courses/{id}/enrollments
func (h *CourseHandler) Enrollments(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	course, ok := h.loadCourse(w, r, id.User.OrganizationID)
	if !ok {
		return
	}

	var enrollments []models.Enrollment
	if err := h.db.Preload("User").
		Where("course_id = ?", course.ID).
		Find(&enrollments).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list enrollments"})
		return
	}

	type enrollmentResponse struct {
		UserID       string      `json:"user_id"`
		RoleInCourse string      `json:"role_in_course"`
		User         dto.UserDTO `json:"user"`
	}
	response := make([]enrollmentResponse, len(enrollments))
	for i, e := range enrollments {
		response[i] = enrollmentResponse{
			UserID:       e.UserID.String(),
			RoleInCourse: e.RoleInCourse,
		}
		if e.User != nil {
			response[i].User = userToDTO(e.User)
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *CourseHandler) loadCourse(w http.ResponseWriter, r *http.Request, orgID uuid.UUID) (*models.Course, bool) {
	courseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid course ID"})
		return nil, false
	}

	var course models.Course
	err = h.db.Where("id = ? AND organization_id = ?", courseID, orgID).
		First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Course not found"})
		return nil, false
	}
	if err != nil {
		h.logger.Error("course lookup failed", "course_id", courseID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load course"})
		return nil, false
	}
	return &course, true
}
