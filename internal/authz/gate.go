package authz

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// Requirements declares the gates attached to an operation at route
// registration time. Zero-valued fields skip their gate. Gates of
// different kinds compose with AND; the role and permission lists are
// each satisfied by any one member (OR within a list).
type Requirements struct {
	Roles        []Role
	Permissions  []string
	Plans        []Plan
	Feature      Feature
	Subscription bool
}

// Enforcer evaluates gate requirements against the identity resolved by
// the authentication middleware. Evaluation order is fixed:
// role/permission, plan, feature, subscription. All gates fail closed.
type Enforcer struct {
	registry *Registry
	plans    *PlanService
	logger   *slog.Logger
}

func NewEnforcer(registry *Registry, plans *PlanService, logger *slog.Logger) *Enforcer {
	return &Enforcer{registry: registry, plans: plans, logger: logger}
}

// Require returns middleware enforcing the declared requirements.
func (e *Enforcer) Require(req Requirements) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeDenial(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			if reason, ok := e.check(r, identity, req); !ok {
				e.logger.Warn("access denied",
					"user_id", identity.User.ID,
					"organization_id", identity.User.OrganizationID,
					"path", r.URL.Path,
					"reason", reason,
				)
				writeDenial(w, http.StatusForbidden, reason)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// check runs the gate pipeline and returns the denial reason for the
// first gate that fails.
func (e *Enforcer) check(r *http.Request, identity Identity, req Requirements) (string, bool) {
	ctx := r.Context()
	role := identity.Role()

	if len(req.Roles) > 0 && !containsRole(req.Roles, role) {
		return "Access denied. Allowed roles: " + joinRoles(req.Roles), false
	}

	if len(req.Permissions) > 0 &&
		!e.registry.HasAnyPermission(role, req.Permissions, identity.User.CustomPermissions) {
		return "Access denied. Required permissions: " + strings.Join(req.Permissions, " or "), false
	}

	if len(req.Plans) > 0 && !e.plans.HasAnyPlan(ctx, identity.User.OrganizationID, req.Plans) {
		return "Access denied. This operation requires one of the following plans: " + joinPlans(req.Plans), false
	}

	if req.Feature != "" && !e.plans.HasFeature(ctx, identity.User.OrganizationID, req.Feature) {
		return "Access denied. Feature " + string(req.Feature) + " is not available on your plan", false
	}

	if req.Subscription && !e.plans.IsSubscriptionActive(ctx, identity.User.OrganizationID) {
		return "Access denied. Your subscription has expired. Contact us to renew", false
	}

	return "", true
}

func containsRole(roles []Role, r Role) bool {
	for _, v := range roles {
		if v == r {
			return true
		}
	}
	return false
}

func joinRoles(roles []Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

func joinPlans(plans []Plan) string {
	parts := make([]string, len(plans))
	for i, p := range plans {
		parts[i] = string(p)
	}
	return strings.Join(parts, ", ")
}

func writeDenial(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": reason})
}
