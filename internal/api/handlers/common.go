package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/lumeo/edugate/internal/api/dto"
	"github.com/lumeo/edugate/internal/authz"
	"github.com/lumeo/edugate/internal/database/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parsePagination(r *http.Request) dto.PaginationParams {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	p := dto.PaginationParams{Page: page, PerPage: perPage}
	p.Normalize()
	return p
}

func totalPages(total int64, perPage int) int {
	pages := int(total) / perPage
	if int(total)%perPage > 0 {
		pages++
	}
	return pages
}

// identity returns the resolved caller. Handlers behind the auth
// middleware can assume it is present; the false branch only fires when
// a route is miswired.
func identity(r *http.Request) (authz.Identity, bool) {
	return authz.IdentityFromContext(r.Context())
}

func userToDTO(u *models.User) dto.UserDTO {
	return dto.UserDTO{
		ID:             u.ID.String(),
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Role:           u.Role,
		OrganizationID: u.OrganizationID.String(),
		IsActive:       u.IsActive,
		Department:     u.Department,
		Grade:          u.Grade,
		Permissions:    u.CustomPermissions,
	}
}
