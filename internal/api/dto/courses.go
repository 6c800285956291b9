package dto

type CreateCourseRequest struct {
	Name        string `json:"name"`
	ShortName   string `json:"short_name,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	IsVisible   *bool  `json:"is_visible,omitempty"`
}

func (r CreateCourseRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Name == "" {
		errors["name"] = "Course name is required"
	}

	return errors
}

type UpdateCourseRequest struct {
	Name        *string `json:"name,omitempty"`
	ShortName   *string `json:"short_name,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	IsVisible   *bool   `json:"is_visible,omitempty"`
}

func (r UpdateCourseRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Name != nil && *r.Name == "" {
		errors["name"] = "Course name cannot be empty"
	}

	return errors
}

type EnrollRequest struct {
	UserID       string `json:"user_id"`
	RoleInCourse string `json:"role_in_course,omitempty"`
}

func (r EnrollRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.UserID == "" {
		errors["user_id"] = "User ID is required"
	}

	return errors
}

type ProgressUpdateRequest struct {
	CourseID       string  `json:"course_id"`
	UserID         string  `json:"user_id,omitempty"`
	CompletedItems int     `json:"completed_items"`
	TotalItems     int     `json:"total_items"`
	Grade          float64 `json:"grade,omitempty"`
}

func (r ProgressUpdateRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.CourseID == "" {
		errors["course_id"] = "Course ID is required"
	}
	if r.TotalItems < 0 || r.CompletedItems < 0 {
		errors["completed_items"] = "Item counts cannot be negative"
	}
	if r.TotalItems > 0 && r.CompletedItems > r.TotalItems {
		errors["completed_items"] = "Completed items cannot exceed total items"
	}

	return errors
}
