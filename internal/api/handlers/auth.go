package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lumeo/edugate/internal/api/dto"
	"github.com/lumeo/edugate/internal/auth"
	"github.com/lumeo/edugate/internal/authz"
)

type AuthHandler struct {
	authService *auth.Service
	registry    *authz.Registry
	logger      *slog.Logger
}

func NewAuthHandler(authService *auth.Service, registry *authz.Registry, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, registry: registry, logger: logger}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	resp, err := h.authService.Register(r.Context(), auth.RegisterInput{
		Email:          req.User.Email,
		Password:       req.User.Password,
		FirstName:      req.User.FirstName,
		LastName:       req.User.LastName,
		Phone:          req.User.Phone,
		OrgName:        req.Organization.Name,
		OrgDescription: req.Organization.Description,
	})

	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "User already exists"})
		default:
			h.logger.Error("registration failed", "email", req.User.Email, "error", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Registration failed"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, dto.AuthResponse{
		Token: resp.Token,
		User:  userToDTO(resp.User),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	resp, err := h.authService.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})

	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid credentials"})
		case errors.Is(err, auth.ErrInactiveUser):
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Account is inactive"})
		case errors.Is(err, auth.ErrTrialExpired):
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Your subscription has expired. Contact us to renew"})
		default:
			h.logger.Error("login failed", "email", req.Email, "error", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Login failed"})
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.AuthResponse{
		Token: resp.Token,
		User:  userToDTO(resp.User),
	})
}

// Me returns the caller's own profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	writeJSON(w, http.StatusOK, userToDTO(&id.User))
}

func (h *AuthHandler) Invite(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	var req dto.InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	role := authz.Role(req.Role)
	if !authz.ValidRole(role) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Unknown role: " + req.Role})
		return
	}

	result, err := h.authService.InviteUser(r.Context(), id.User.ID, auth.InviteInput{
		Email:             req.Email,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Role:              role,
		CustomPermissions: req.Permissions,
		Department:        req.Department,
		Grade:             req.Grade,
	})

	if err != nil {
		switch {
		case errors.Is(err, auth.ErrRoleNotAllowed):
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Your role cannot create users with role " + req.Role})
		case errors.Is(err, auth.ErrUserLimitReached):
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "User limit reached for your plan"})
		case errors.Is(err, auth.ErrUserExists):
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "User already exists"})
		default:
			h.logger.Error("invite failed", "email", req.Email, "error", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Invite failed"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, dto.InviteResponse{
		User:      userToDTO(result.User),
		InviteURL: result.InviteURL,
	})
}

// Logout ends the caller's session. Tokens are stateless, so there is
// nothing to revoke server-side; the client discards its token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity(r); !ok {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthenticated"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Logged out"})
}

// ReloadPermissions refreshes the in-memory permission cache from the
// database.
func (h *AuthHandler) ReloadPermissions(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Reload(r.Context()); err != nil {
		h.logger.Error("permission reload failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to reload permissions"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Permissions reloaded"})
}
