package dto

import "github.com/lumeo/edugate/internal/api/validation"

type RegisterOrganization struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type RegisterUser struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
}

type RegisterRequest struct {
	Organization RegisterOrganization `json:"organization"`
	User         RegisterUser         `json:"user"`
}

func (r RegisterRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Organization.Name == "" {
		errors["organization.name"] = "Organization name is required"
	}
	if r.User.Email == "" {
		errors["user.email"] = "Email is required"
	} else if !validation.IsValidEmail(r.User.Email) {
		errors["user.email"] = "Invalid email format"
	}
	if r.User.Password == "" {
		errors["user.password"] = "Password is required"
	} else if ok, msg := validation.IsValidPassword(r.User.Password); !ok {
		errors["user.password"] = msg
	}
	if r.User.FirstName == "" {
		errors["user.first_name"] = "First name is required"
	}
	if r.User.LastName == "" {
		errors["user.last_name"] = "Last name is required"
	}

	return errors
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

type InviteRequest struct {
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Role        string   `json:"role"`
	Department  string   `json:"department,omitempty"`
	Grade       string   `json:"grade,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

func (r InviteRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(r.Email) {
		errors["email"] = "Invalid email format"
	}
	if r.FirstName == "" {
		errors["first_name"] = "First name is required"
	}
	if r.LastName == "" {
		errors["last_name"] = "Last name is required"
	}
	if r.Role == "" {
		errors["role"] = "Role is required"
	}

	return errors
}

type AuthResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

type InviteResponse struct {
	User      UserDTO `json:"user"`
	InviteURL string  `json:"invite_url"`
}

type UserDTO struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	Role           string   `json:"role"`
	OrganizationID string   `json:"organization_id"`
	IsActive       bool     `json:"is_active"`
	Department     string   `json:"department,omitempty"`
	Grade          string   `json:"grade,omitempty"`
	Permissions    []string `json:"permissions,omitempty"`
}
