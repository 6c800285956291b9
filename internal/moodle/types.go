package moodle

// User is a Moodle user record as returned by core_user_get_users.
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	FullName  string `json:"fullname"`
	Email     string `json:"email"`
	Suspended bool   `json:"suspended"`
}

// NewUser is the payload for core_user_create_users.
type NewUser struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Email     string
}

// CreatedUser is Moodle's acknowledgement of a created user.
type CreatedUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// Course is a Moodle course record.
type Course struct {
	ID          int    `json:"id"`
	ShortName   string `json:"shortname"`
	FullName    string `json:"fullname"`
	DisplayName string `json:"displayname"`
	Summary     string `json:"summary"`
	CategoryID  int    `json:"categoryid"`
	Visible     int    `json:"visible"`
}

// CourseSection is one section of a course's contents.
type CourseSection struct {
	ID      int            `json:"id"`
	Name    string         `json:"name"`
	Modules []CourseModule `json:"modules"`
}

// CourseModule is an activity or resource inside a section.
type CourseModule struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	ModName string `json:"modname"`
	URL     string `json:"url"`
}

// EnrolledUser is a user's enrolment view within one course.
type EnrolledUser struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullname"`
	Email     string `json:"email"`
	Roles     []Role `json:"roles"`
}

// Role is a Moodle course role assignment.
type Role struct {
	RoleID    int    `json:"roleid"`
	Name      string `json:"name"`
	ShortName string `json:"shortname"`
}

// Enrolment links a user to a course for enrol/unenrol calls.
type Enrolment struct {
	CourseID int
	UserID   int
	RoleID   int
}

// GradeReport is the response of gradereport_user_get_grade_items.
type GradeReport struct {
	UserGrades []UserGrade `json:"usergrades"`
}

type UserGrade struct {
	CourseID   int         `json:"courseid"`
	UserID     int         `json:"userid"`
	UserFullName string    `json:"userfullname"`
	GradeItems []GradeItem `json:"gradeitems"`
}

type GradeItem struct {
	ID           int     `json:"id"`
	ItemName     string  `json:"itemname"`
	GradeRaw     float64 `json:"graderaw"`
	GradeMax     float64 `json:"grademax"`
	PercentageFormatted string `json:"percentageformatted"`
}
