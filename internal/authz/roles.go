package authz

// Role is one of five fixed hierarchical identities assigned to a user.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleDirectorate Role = "directorate"
	RoleCoordinator Role = "coordinator"
	RoleTeacher     Role = "teacher"
	RoleStudent     Role = "student"
)

// createHierarchy is the ground truth for who may author a user with a
// given role. It also gates role reassignment: changing a user's role is
// modeled as creating a user with the target role.
var createHierarchy = map[Role][]Role{
	RoleAdmin:       {RoleAdmin, RoleDirectorate, RoleCoordinator, RoleTeacher, RoleStudent},
	RoleDirectorate: {RoleCoordinator, RoleTeacher, RoleStudent},
	RoleCoordinator: {RoleTeacher, RoleStudent},
	RoleTeacher:     {RoleStudent},
	RoleStudent:     {},
}

// roleLevels is a convenience summary for strict-ordering comparisons.
// The create/edit predicates are explicit tables, not level comparisons.
var roleLevels = map[Role]int{
	RoleAdmin:       5,
	RoleDirectorate: 4,
	RoleCoordinator: 3,
	RoleTeacher:     2,
	RoleStudent:     1,
}

// ValidRole reports whether r is one of the five defined roles.
func ValidRole(r Role) bool {
	_, ok := roleLevels[r]
	return ok
}

// CanCreateRole reports whether creator may create (or reassign a user
// into) the target role. Unlisted pairs are false.
func CanCreateRole(creator, target Role) bool {
	for _, allowed := range createHierarchy[creator] {
		if allowed == target {
			return true
		}
	}
	return false
}

// CanEditUser reports whether editor may modify an existing user with the
// target role. This relation is defined independently of the create
// hierarchy and is intentionally looser: a directorate can edit users it
// could not have created into their current role.
func CanEditUser(editor, target Role) bool {
	switch editor {
	case RoleAdmin:
		return true
	case RoleDirectorate:
		return target != RoleAdmin
	case RoleCoordinator:
		return target == RoleTeacher || target == RoleStudent
	case RoleTeacher:
		return target == RoleStudent
	}
	return false
}

// RoleLevel returns the hierarchical level of a role (higher is more
// powerful), or 0 for an unknown role.
func RoleLevel(r Role) int {
	return roleLevels[r]
}
