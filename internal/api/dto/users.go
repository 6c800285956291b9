package dto

type UpdateUserRequest struct {
	FirstName   *string   `json:"first_name,omitempty"`
	LastName    *string   `json:"last_name,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	Role        *string   `json:"role,omitempty"`
	Department  *string   `json:"department,omitempty"`
	Grade       *string   `json:"grade,omitempty"`
	Permissions *[]string `json:"permissions,omitempty"`
}

func (r UpdateUserRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.FirstName != nil && *r.FirstName == "" {
		errors["first_name"] = "First name cannot be empty"
	}
	if r.LastName != nil && *r.LastName == "" {
		errors["last_name"] = "Last name cannot be empty"
	}
	if r.Role != nil && *r.Role == "" {
		errors["role"] = "Role cannot be empty"
	}

	return errors
}
