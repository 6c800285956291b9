package dto

type UpdateOrganizationRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (r UpdateOrganizationRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Name != nil && *r.Name == "" {
		errors["name"] = "Organization name cannot be empty"
	}

	return errors
}

type OrganizationResponse struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Slug        string       `json:"slug"`
	Description string       `json:"description,omitempty"`
	Plan        PlanSummary  `json:"plan"`
}

type PlanUsageResponse struct {
	Plan           PlanSummary `json:"plan"`
	ActiveUsers    int64       `json:"active_users"`
	SeatsRemaining int64       `json:"seats_remaining"` // -1 when the plan is unlimited
}

type PlanSummary struct {
	Plan         string   `json:"plan"`
	Status       string   `json:"status"`
	IsExpired    bool     `json:"is_expired"`
	TrialEndsAt  int64    `json:"trial_ends_at,omitempty"`
	MaxUsers     int      `json:"max_users"`
	MaxStorageGB int      `json:"max_storage_gb"`
	Features     []string `json:"features"`
}
