package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lumeo/edugate/internal/api/dto"
	"github.com/lumeo/edugate/internal/authz"
	"github.com/lumeo/edugate/internal/database/models"
	"gorm.io/gorm"
)

type UserHandler struct {
	db     *gorm.DB
	plans  *authz.PlanService
	logger *slog.Logger
}

func NewUserHandler(db *gorm.DB, plans *authz.PlanService, logger *slog.Logger) *UserHandler {
	return &UserHandler{db: db, plans: plans, logger: logger}
}

// List handles GET /api/v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	pagination := parsePagination(r)

	query := h.db.Model(&models.User{}).Where("organization_id = ?", id.User.OrganizationID)

	if role := r.URL.Query().Get("role"); role != "" {
		if !authz.ValidRole(authz.Role(role)) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Unknown role: " + role})
			return
		}
		query = query.Where("role = ?", role)
	}
	if active := r.URL.Query().Get("is_active"); active != "" {
		query = query.Where("is_active = ?", active == "true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count users"})
		return
	}

	var users []models.User
	if err := query.
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&users).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list users"})
		return
	}

	response := make([]dto.UserDTO, len(users))
	for i := range users {
		response[i] = userToDTO(&users[i])
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       response,
		Total:      total,
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		TotalPages: totalPages(total, pagination.PerPage),
	})
}

// Get handles GET /api/v1/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	target, ok := h.loadUser(w, r, id)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, userToDTO(target))
}

// Update handles PATCH /api/v1/users/{id}. Role changes are double
// checked: the caller must be allowed to edit the target's current role
// and to assign the new one.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	var req dto.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	target, ok := h.loadUser(w, r, id)
	if !ok {
		return
	}

	if !authz.CanEditUser(id.Role(), authz.Role(target.Role)) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Your role cannot edit users with role " + target.Role})
		return
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Department != nil {
		updates["department"] = *req.Department
	}
	if req.Grade != nil {
		updates["grade"] = *req.Grade
	}
	if req.Permissions != nil {
		updates["custom_permissions"] = models.StringArray(*req.Permissions)
	}
	if req.Role != nil && *req.Role != target.Role {
		newRole := authz.Role(*req.Role)
		if !authz.ValidRole(newRole) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Unknown role: " + *req.Role})
			return
		}
		if !authz.CanCreateRole(id.Role(), newRole) {
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Your role cannot assign role " + *req.Role})
			return
		}
		updates["role"] = *req.Role
	}

	if len(updates) > 0 {
		if err := h.db.Model(target).Updates(updates).Error; err != nil {
			h.logger.Error("user update failed", "user_id", target.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update user"})
			return
		}
	}

	writeJSON(w, http.StatusOK, userToDTO(target))
}

// Deactivate handles POST /api/v1/users/{id}/deactivate
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	target, ok := h.loadUser(w, r, id)
	if !ok {
		return
	}

	if !authz.CanEditUser(id.Role(), authz.Role(target.Role)) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Your role cannot edit users with role " + target.Role})
		return
	}
	if target.ID == id.User.ID {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "You cannot deactivate your own account"})
		return
	}

	if err := h.db.Model(target).Update("is_active", false).Error; err != nil {
		h.logger.Error("user deactivation failed", "user_id", target.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to deactivate user"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "User deactivated"})
}

// Reactivate handles POST /api/v1/users/{id}/reactivate. Reactivation
// counts against the plan's user limit the same way a new invite does.
func (h *UserHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	target, ok := h.loadUser(w, r, id)
	if !ok {
		return
	}

	if !authz.CanEditUser(id.Role(), authz.Role(target.Role)) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Your role cannot edit users with role " + target.Role})
		return
	}
	if target.IsActive {
		writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "User is already active"})
		return
	}
	if h.plans.HasReachedUserLimit(r.Context(), id.User.OrganizationID) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "User limit reached for your plan"})
		return
	}

	if err := h.db.Model(target).Update("is_active", true).Error; err != nil {
		h.logger.Error("user reactivation failed", "user_id", target.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to reactivate user"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "User reactivated"})
}

// loadUser resolves {id} into a user scoped to the caller's
// organization, writing the error response on failure.
func (h *UserHandler) loadUser(w http.ResponseWriter, r *http.Request, id authz.Identity) (*models.User, bool) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user ID"})
		return nil, false
	}

	var target models.User
	err = h.db.Where("id = ? AND organization_id = ?", userID, id.User.OrganizationID).
		First(&target).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
		return nil, false
	}
	if err != nil {
		h.logger.Error("user lookup failed", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load user"})
		return nil, false
	}
	return &target, true
}
