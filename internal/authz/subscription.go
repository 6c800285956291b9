package authz

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lumeo/edugate/internal/database/models"
	"gorm.io/gorm"
)

var ErrOrganizationNotFound = errors.New("organization not found")

// PlanService answers plan, feature and subscription questions for an
// organization. It never caches account state across calls: every check
// re-reads the store so gating always sees current data.
type PlanService struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewPlanService(db *gorm.DB, logger *slog.Logger) *PlanService {
	return &PlanService{db: db, logger: logger, now: time.Now}
}

// WithClock overrides the wall clock. Tests use this to sit on either
// side of a trial boundary.
func (s *PlanService) WithClock(now func() time.Time) *PlanService {
	s.now = now
	return s
}

// resolveAccount loads the organization's trial account and lazily
// reconciles a lapsed trial: the first read past trialEndsAt flips the
// stored status to expired. Once expired, later reads perform no writes.
// Parallel requests crossing the boundary may both write; the write is
// convergent so this is accepted rather than serialized.
func (s *PlanService) resolveAccount(ctx context.Context, orgID uuid.UUID) (*models.TrialAccount, error) {
	var org models.Organization
	if err := s.db.WithContext(ctx).Preload("TrialAccount").First(&org, "id = ?", orgID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, err
	}
	if org.TrialAccount == nil {
		return nil, ErrOrganizationNotFound
	}

	account := org.TrialAccount
	if account.Status == models.SubscriptionTrial && !account.IsExpired && !s.now().Before(account.TrialEndsAt) {
		if err := s.db.WithContext(ctx).Model(&models.TrialAccount{}).
			Where("id = ?", account.ID).
			Updates(map[string]interface{}{"is_expired": true, "status": models.SubscriptionExpired}).Error; err != nil {
			s.logger.Error("failed to record trial expiry", "account_id", account.ID, "error", err)
		} else {
			s.logger.Info("trial expired", "account_id", account.ID, "organization_id", orgID)
		}
		account.IsExpired = true
		account.Status = models.SubscriptionExpired
	}

	return account, nil
}

// healthy reports whether the account may transact at all: not expired
// and not in a terminal lifecycle state.
func healthy(account *models.TrialAccount) bool {
	if account.IsExpired {
		return false
	}
	switch account.Status {
	case models.SubscriptionExpired, models.SubscriptionSuspended, models.SubscriptionCancelled:
		return false
	}
	return true
}

// HasFeature reports whether the organization's plan enables the feature.
// An unhealthy account loses every feature regardless of plan. Resolution
// errors deny.
func (s *PlanService) HasFeature(ctx context.Context, orgID uuid.UUID, feature Feature) bool {
	account, err := s.resolveAccount(ctx, orgID)
	if err != nil {
		s.logger.Warn("feature check failed", "organization_id", orgID, "feature", feature, "error", err)
		return false
	}
	if !healthy(account) {
		return false
	}

	cfg, ok := PlanConfig(Plan(account.Plan))
	if !ok {
		s.logger.Warn("unknown plan", "organization_id", orgID, "plan", account.Plan)
		return false
	}
	return cfg.Features[feature]
}

// HasAnyPlan reports whether the organization's current plan is one of
// the allowed tiers. Unhealthy accounts fail regardless of tier.
func (s *PlanService) HasAnyPlan(ctx context.Context, orgID uuid.UUID, plans []Plan) bool {
	account, err := s.resolveAccount(ctx, orgID)
	if err != nil {
		s.logger.Warn("plan check failed", "organization_id", orgID, "error", err)
		return false
	}
	if !healthy(account) {
		return false
	}

	for _, p := range plans {
		if Plan(account.Plan) == p {
			return true
		}
	}
	return false
}

// IsSubscriptionActive is the single predicate that blocks transactional
// access once a trial lapses or a subscription is non-current.
func (s *PlanService) IsSubscriptionActive(ctx context.Context, orgID uuid.UUID) bool {
	account, err := s.resolveAccount(ctx, orgID)
	if err != nil {
		s.logger.Warn("subscription check failed", "organization_id", orgID, "error", err)
		return false
	}
	if !healthy(account) {
		return false
	}

	if account.Status == models.SubscriptionTrial {
		return s.now().Before(account.TrialEndsAt)
	}
	return account.Status == models.SubscriptionActive
}

// HasReachedUserLimit reports whether the organization is at or over its
// plan's active-user ceiling. Any resolution error reports the limit as
// reached: blocking growth beats silently exceeding a paid tier.
func (s *PlanService) HasReachedUserLimit(ctx context.Context, orgID uuid.UUID) bool {
	account, err := s.resolveAccount(ctx, orgID)
	if err != nil {
		s.logger.Warn("user limit check failed", "organization_id", orgID, "error", err)
		return true
	}

	cfg, ok := PlanConfig(Plan(account.Plan))
	if !ok {
		return true
	}
	if cfg.Limits.MaxUsers == -1 {
		return false
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("organization_id = ? AND is_active = ?", orgID, true).
		Count(&count).Error; err != nil {
		s.logger.Error("failed to count users", "organization_id", orgID, "error", err)
		return true
	}

	return count >= int64(cfg.Limits.MaxUsers)
}

// OrganizationPlan is a read-only summary of the organization's current
// commercial state, used by profile and organization endpoints.
type OrganizationPlan struct {
	Plan        Plan             `json:"plan"`
	Status      string           `json:"status"`
	IsExpired   bool             `json:"is_expired"`
	TrialEndsAt time.Time        `json:"trial_ends_at"`
	Limits      PlanLimits       `json:"limits"`
	Features    map[Feature]bool `json:"features"`
}

func (s *PlanService) OrganizationPlan(ctx context.Context, orgID uuid.UUID) (*OrganizationPlan, error) {
	account, err := s.resolveAccount(ctx, orgID)
	if err != nil {
		return nil, err
	}

	cfg, ok := PlanConfig(Plan(account.Plan))
	if !ok {
		return nil, ErrOrganizationNotFound
	}

	return &OrganizationPlan{
		Plan:        Plan(account.Plan),
		Status:      account.Status,
		IsExpired:   account.IsExpired,
		TrialEndsAt: account.TrialEndsAt,
		Limits:      cfg.Limits,
		Features:    cfg.Features,
	}, nil
}
