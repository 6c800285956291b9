package authz

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lumeo/edugate/internal/database/models"
	"gorm.io/gorm"
)

// Permission is a named capability with the roles that hold it by default.
type Permission struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	DefaultRoles []Role   `json:"default_roles"`
}

// Permission name constants, kept for reference; the authoritative set
// lives in the user_permissions table.
const (
	PermUsersView    = "users:view"
	PermUsersCreate  = "users:create"
	PermUsersEdit    = "users:edit"
	PermUsersDelete  = "users:delete"
	PermUsersInvite  = "users:invite"
	PermOrgView      = "organizations:view"
	PermOrgEdit      = "organizations:edit"
	PermOrgSettings  = "organizations:settings"
	PermCoursesView  = "courses:view"
	PermCoursesEdit  = "courses:edit"
	PermReportsView  = "reports:view"
	PermProgressViewOwn = "progress:view:own"
	PermProgressViewAll = "progress:view:all"
	PermIntegrationsManage = "integrations:manage"
	PermWebhooksView   = "webhooks:view"
	PermWebhooksManage = "webhooks:manage"
)

// Registry caches the permission table in memory. It is populated by
// Reload before the server accepts requests; a failed load leaves the
// cache empty, and every lookup against an empty cache denies.
type Registry struct {
	db     *gorm.DB
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]Permission
}

func NewRegistry(db *gorm.DB, logger *slog.Logger) *Registry {
	return &Registry{
		db:     db,
		logger: logger,
		cache:  make(map[string]Permission),
	}
}

// Reload replaces the cache with the current contents of the
// user_permissions table. On error the previous cache is kept.
func (r *Registry) Reload(ctx context.Context) error {
	var rows []models.UserPermission
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		r.logger.Error("failed to load permissions", "error", err)
		return fmt.Errorf("loading permissions: %w", err)
	}

	cache := make(map[string]Permission, len(rows))
	for _, row := range rows {
		roles := make([]Role, 0, len(row.DefaultRoles))
		for _, name := range row.DefaultRoles {
			roles = append(roles, Role(name))
		}
		cache[row.Name] = Permission{
			Name:         row.Name,
			Description:  row.Description,
			Category:     row.Category,
			DefaultRoles: roles,
		}
	}

	r.mu.Lock()
	r.cache = cache
	r.mu.Unlock()

	r.logger.Info("permissions loaded", "count", len(cache))
	return nil
}

// HasPermission reports whether a user with the given role and custom
// grant list holds the named permission. Custom grants always widen
// access: a grant match short-circuits the role check. An unknown
// permission name denies and is logged.
func (r *Registry) HasPermission(role Role, name string, customGrants []string) bool {
	for _, grant := range customGrants {
		if grant == name {
			return true
		}
	}

	r.mu.RLock()
	perm, ok := r.cache[name]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("unknown permission", "permission", name)
		return false
	}

	for _, dr := range perm.DefaultRoles {
		if dr == role {
			return true
		}
	}
	return false
}

// HasAnyPermission applies OR semantics across a list of required
// permissions: holding any one of them authorizes.
func (r *Registry) HasAnyPermission(role Role, names []string, customGrants []string) bool {
	for _, name := range names {
		if r.HasPermission(role, name, customGrants) {
			return true
		}
	}
	return false
}

// RolePermissions returns every permission name the role holds by
// default, merged with the custom grants, deduplicated.
func (r *Registry) RolePermissions(role Role, customGrants []string) []string {
	seen := make(map[string]bool)
	var out []string

	r.mu.RLock()
	for name, perm := range r.cache {
		for _, dr := range perm.DefaultRoles {
			if dr == role {
				seen[name] = true
				out = append(out, name)
				break
			}
		}
	}
	r.mu.RUnlock()

	for _, grant := range customGrants {
		if !seen[grant] {
			seen[grant] = true
			out = append(out, grant)
		}
	}
	return out
}

// All returns every cached permission.
func (r *Registry) All() []Permission {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Permission, 0, len(r.cache))
	for _, perm := range r.cache {
		out = append(out, perm)
	}
	return out
}

// ByCategory returns cached permissions in the given category.
func (r *Registry) ByCategory(category string) []Permission {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Permission
	for _, perm := range r.cache {
		if perm.Category == category {
			out = append(out, perm)
		}
	}
	return out
}

// Size returns the number of cached permissions.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
