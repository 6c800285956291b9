package models

// UserPermission is a named capability with the set of roles that hold it
// by default. Rows are loaded into the in-memory registry at startup;
// per-user custom grants reference rows by name.
type UserPermission struct {
	Base
	Name         string      `gorm:"uniqueIndex;not null" json:"name"` // namespaced resource:action
	Description  string      `json:"description"`
	Category     string      `gorm:"index" json:"category"`
	DefaultRoles StringArray `gorm:"type:text" json:"default_roles"`
}

func (UserPermission) TableName() string {
	return "user_permissions"
}
