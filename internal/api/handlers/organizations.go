package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lumeo/edugate/internal/api/dto"
	"github.com/lumeo/edugate/internal/authz"
	"github.com/lumeo/edugate/internal/database/models"
	"gorm.io/gorm"
)

type OrganizationHandler struct {
	db     *gorm.DB
	plans  *authz.PlanService
	logger *slog.Logger
}

func NewOrganizationHandler(db *gorm.DB, plans *authz.PlanService, logger *slog.Logger) *OrganizationHandler {
	return &OrganizationHandler{db: db, plans: plans, logger: logger}
}

// Get handles GET /api/v1/organization. Callers only ever see their own
// organization.
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	plan, err := h.plans.OrganizationPlan(r.Context(), id.User.OrganizationID)
	if err != nil {
		h.logger.Error("plan lookup failed", "org_id", id.User.OrganizationID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load organization"})
		return
	}

	writeJSON(w, http.StatusOK, dto.OrganizationResponse{
		ID:          id.Organization.ID.String(),
		Name:        id.Organization.Name,
		Slug:        id.Organization.Slug,
		Description: id.Organization.Description,
		Plan:        planSummaryDTO(plan),
	})
}

// Plan handles GET /api/v1/organization/plan. It returns the plan summary
// together with seat usage so clients can warn before the user limit hits.
func (h *OrganizationHandler) Plan(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	plan, err := h.plans.OrganizationPlan(r.Context(), id.User.OrganizationID)
	if err != nil {
		h.logger.Error("plan lookup failed", "org_id", id.User.OrganizationID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load plan"})
		return
	}

	var activeUsers int64
	if err := h.db.Model(&models.User{}).
		Where("organization_id = ? AND is_active = ?", id.User.OrganizationID, true).
		Count(&activeUsers).Error; err != nil {
		h.logger.Error("user count failed", "org_id", id.User.OrganizationID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load plan"})
		return
	}

	remaining := int64(-1)
	if plan.Limits.MaxUsers >= 0 {
		remaining = int64(plan.Limits.MaxUsers) - activeUsers
		if remaining < 0 {
			remaining = 0
		}
	}

	writeJSON(w, http.StatusOK, dto.PlanUsageResponse{
		Plan:           planSummaryDTO(plan),
		ActiveUsers:    activeUsers,
		SeatsRemaining: remaining,
	})
}

func planSummaryDTO(plan *authz.OrganizationPlan) dto.PlanSummary {
	features := make([]string, 0, len(plan.Features))
	for f, enabled := range plan.Features {
		if enabled {
			features = append(features, string(f))
		}
	}

	return dto.PlanSummary{
		Plan:         string(plan.Plan),
		Status:       plan.Status,
		IsExpired:    plan.IsExpired,
		TrialEndsAt:  plan.TrialEndsAt.Unix(),
		MaxUsers:     plan.Limits.MaxUsers,
		MaxStorageGB: plan.Limits.MaxStorageGB,
		Features:     features,
	}
}

// Update handles PATCH /api/v1/organization
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	var req dto.UpdateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}

	if len(updates) > 0 {
		if err := h.db.Model(&id.Organization).Updates(updates).Error; err != nil {
			h.logger.Error("organization update failed", "org_id", id.Organization.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update organization"})
			return
		}
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Organization updated"})
}
