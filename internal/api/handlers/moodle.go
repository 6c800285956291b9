package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/lumeo/edugate/internal/api/dto"
	"github.com/lumeo/edugate/internal/database/models"
	"github.com/lumeo/edugate/internal/moodle"
	"github.com/lumeo/edugate/internal/tasks"
	"github.com/lumeo/edugate/pkg/queue"
	"gorm.io/gorm"
)

type MoodleHandler struct {
	db          *gorm.DB
	client      *moodle.Client
	asynqClient *asynq.Client
	logger      *slog.Logger
}

func NewMoodleHandler(db *gorm.DB, client *moodle.Client, asynqClient *asynq.Client, logger *slog.Logger) *MoodleHandler {
	return &MoodleHandler{db: db, client: client, asynqClient: asynqClient, logger: logger}
}

// TestConnection handles POST /api/v1/moodle/test-connection
func (h *MoodleHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.client.TestConnection(r.Context()); err != nil {
		h.writeMoodleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Moodle connection is working"})
}

// SiteInfo handles GET /api/v1/moodle/site-info
func (h *MoodleHandler) SiteInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.client.GetSiteInfo(r.Context())
	if err != nil {
		h.writeMoodleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Courses handles GET /api/v1/moodle/courses and lists courses straight
// from the LMS, bypassing the local mirror.
func (h *MoodleHandler) Courses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.client.GetCourses(r.Context())
	if err != nil {
		h.writeMoodleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

// CourseContents handles GET /api/v1/moodle/courses/{moodleID}/contents
func (h *MoodleHandler) CourseContents(w http.ResponseWriter, r *http.Request) {
	moodleID, err := strconv.Atoi(chi.URLParam(r, "moodleID"))
	if err != nil || moodleID < 1 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid Moodle course ID"})
		return
	}

	sections, err := h.client.GetCourseContents(r.Context(), moodleID)
	if err != nil {
		h.writeMoodleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sections)
}

// Grades handles GET /api/v1/moodle/courses/{moodleID}/grades
func (h *MoodleHandler) Grades(w http.ResponseWriter, r *http.Request) {
	moodleID, err := strconv.Atoi(chi.URLParam(r, "moodleID"))
	if err != nil || moodleID < 1 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid Moodle course ID"})
		return
	}

	userID := 0
	if raw := r.URL.Query().Get("moodle_user_id"); raw != "" {
		userID, err = strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid Moodle user ID"})
			return
		}
	}

	report, err := h.client.GetGrades(r.Context(), moodleID, userID)
	if err != nil {
		h.writeMoodleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Sync handles POST /api/v1/moodle/sync and enqueues the requested sync
// pass on the sync queue.
func (h *MoodleHandler) Sync(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	if !h.client.Configured() {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Moodle integration is not configured"})
		return
	}

	var req dto.SyncRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	payload := tasks.SyncPayload{
		OrganizationID: id.User.OrganizationID,
		RequestedByID:  id.User.ID,
	}

	var (
		task *asynq.Task
		err  error
	)
	switch req.Scope {
	case "users":
		task, err = tasks.NewSyncUsersTask(payload)
	case "courses":
		task, err = tasks.NewSyncCoursesTask(payload)
	case "enrollments":
		task, err = tasks.NewSyncEnrollmentsTask(payload)
	case "", "all":
		task, err = tasks.NewSyncAllTask(payload)
	default:
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Unknown sync scope: " + req.Scope})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to build sync task"})
		return
	}

	info, err := h.asynqClient.EnqueueContext(r.Context(), task, asynq.Queue(queue.QueueSync))
	if err != nil {
		h.logger.Error("sync enqueue failed", "org_id", id.User.OrganizationID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to enqueue sync"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"task_id": info.ID,
		"queue":   info.Queue,
	})
}

// LinkCourse handles POST /api/v1/moodle/courses/{moodleID}/link/{courseID}
// and binds a local course to its LMS counterpart.
func (h *MoodleHandler) LinkCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	moodleID, err := strconv.Atoi(chi.URLParam(r, "moodleID"))
	if err != nil || moodleID < 1 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid Moodle course ID"})
		return
	}
	courseID, err := uuid.Parse(chi.URLParam(r, "courseID"))
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

	if err := h.db.Model(&course).Update("moodle_course_id", moodleID).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to link course"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Course linked"})
}

func (h *MoodleHandler) writeMoodleError(w http.ResponseWriter, err error) {
	var apiErr *moodle.APIError
	switch {
	case errors.Is(err, moodle.ErrNotConfigured):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Moodle integration is not configured"})
	case errors.As(err, &apiErr):
		writeJSON(w, http.StatusBadGateway, dto.ErrorResponse{Error: "Moodle rejected the request: " + apiErr.Message})
	default:
		h.logger.Error("moodle request failed", "error", err)
		writeJSON(w, http.StatusBadGateway, dto.ErrorResponse{Error: "Failed to reach Moodle"})
	}
}
