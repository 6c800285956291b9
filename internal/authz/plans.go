package authz

// Plan is a commercial tier determining feature availability and limits.
type Plan string

const (
	PlanTrial      Plan = "trial"
	PlanBasic      Plan = "basic"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

// Feature is a named capability flag toggled per plan.
type Feature string

const (
	FeatureContentUpload     Feature = "content_upload"
	FeatureContentManagement Feature = "content_management"
	FeatureFormsCreate       Feature = "forms_create"
	FeatureFormsResponse     Feature = "forms_response"
	FeatureReportsBasic      Feature = "reports_basic"
	FeatureReportsAdvanced   Feature = "reports_advanced"
	FeatureReportsExport     Feature = "reports_export"
	FeatureDashboardView     Feature = "dashboard_view"
	FeatureDashboardCustom   Feature = "dashboard_custom"
	FeatureNotifications     Feature = "notifications"
	FeatureMoodleIntegration Feature = "moodle_integration"
	FeatureAPIAccess         Feature = "api_access"
	FeatureWebhooks          Feature = "webhooks"
	FeatureUserManagement    Feature = "user_management"
	FeatureCourses           Feature = "courses"
	FeatureProgressTracking  Feature = "progress_tracking"
)

// PlanLimits holds the numeric ceilings for a plan. -1 means unlimited.
type PlanLimits struct {
	MaxUsers     int
	MaxStorageGB int
	TrialDays    int
}

// PlanConfiguration is the static definition of a plan tier.
type PlanConfiguration struct {
	Type        Plan
	Name        string
	Description string
	Limits      PlanLimits
	Features    map[Feature]bool
}

func allFeatures() map[Feature]bool {
	return map[Feature]bool{
		FeatureContentUpload:     true,
		FeatureContentManagement: true,
		FeatureFormsCreate:       true,
		FeatureFormsResponse:     true,
		FeatureReportsBasic:      true,
		FeatureReportsAdvanced:   true,
		FeatureReportsExport:     true,
		FeatureDashboardView:     true,
		FeatureDashboardCustom:   true,
		FeatureNotifications:     true,
		FeatureMoodleIntegration: true,
		FeatureAPIAccess:         true,
		FeatureWebhooks:          true,
		FeatureUserManagement:    true,
		FeatureCourses:           true,
		FeatureProgressTracking:  true,
	}
}

// planCatalog maps plan tiers to their static configuration. All tiers
// currently enable the same feature set; the shape supports per-plan
// differentiation without schema changes.
var planCatalog = map[Plan]PlanConfiguration{
	PlanTrial: {
		Type:        PlanTrial,
		Name:        "Trial",
		Description: "7-day evaluation period, limited to 20 users",
		Limits:      PlanLimits{MaxUsers: 20, MaxStorageGB: 5, TrialDays: 7},
		Features:    allFeatures(),
	},
	PlanBasic: {
		Type:        PlanBasic,
		Name:        "Basic",
		Description: "Essential features",
		Limits:      PlanLimits{MaxUsers: -1, MaxStorageGB: -1},
		Features:    allFeatures(),
	},
	PlanPremium: {
		Type:        PlanPremium,
		Name:        "Premium",
		Description: "All features",
		Limits:      PlanLimits{MaxUsers: -1, MaxStorageGB: -1},
		Features:    allFeatures(),
	},
	PlanEnterprise: {
		Type:        PlanEnterprise,
		Name:        "Enterprise",
		Description: "All features with dedicated support",
		Limits:      PlanLimits{MaxUsers: -1, MaxStorageGB: -1},
		Features:    allFeatures(),
	},
}

// planOrder defines the upgrade ordering, lowest tier first.
var planOrder = []Plan{PlanTrial, PlanBasic, PlanPremium, PlanEnterprise}

// PlanConfig returns the static configuration for a plan. The second
// return is false for an unknown tier.
func PlanConfig(p Plan) (PlanConfiguration, bool) {
	cfg, ok := planCatalog[p]
	return cfg, ok
}

// AllPlans lists every plan configuration in upgrade order.
func AllPlans() []PlanConfiguration {
	out := make([]PlanConfiguration, 0, len(planOrder))
	for _, p := range planOrder {
		out = append(out, planCatalog[p])
	}
	return out
}

// IsPlanHigherThan reports whether a is a strictly higher tier than b.
func IsPlanHigherThan(a, b Plan) bool {
	return planIndex(a) > planIndex(b)
}

func planIndex(p Plan) int {
	for i, v := range planOrder {
		if v == p {
			return i
		}
	}
	return -1
}
