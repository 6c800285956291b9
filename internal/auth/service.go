package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lumeo/edugate/internal/authz"
	"github.com/lumeo/edugate/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
	ErrTrialExpired       = errors.New("trial period has expired")
	ErrRoleNotAllowed     = errors.New("creator cannot assign this role")
	ErrUserLimitReached   = errors.New("organization user limit reached")
)

type Service struct {
	db          *gorm.DB
	jwt         *JWTService
	plans       *authz.PlanService
	trialDays   int
	frontendURL string
}

func NewService(db *gorm.DB, jwt *JWTService, plans *authz.PlanService, trialDays int, frontendURL string) *Service {
	if trialDays <= 0 {
		trialDays = 7
	}
	return &Service{db: db, jwt: jwt, plans: plans, trialDays: trialDays, frontendURL: frontendURL}
}

type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Phone       string
	OrgName     string
	OrgDescription string
}

type LoginInput struct {
	Email    string
	Password string
}

type InviteInput struct {
	Email             string
	FirstName         string
	LastName          string
	Phone             string
	Role              authz.Role
	CustomPermissions []string
	Department        string
	Grade             string
}

type AuthResponse struct {
	Token        string               `json:"token"`
	User         *models.User         `json:"user"`
	TrialAccount *models.TrialAccount `json:"trial_account,omitempty"`
}

type InviteResult struct {
	User      *models.User `json:"user"`
	InviteURL string       `json:"invite_url"`
}

// Register provisions a complete trial: trial account, organization and
// the first admin user, in one transaction. The new user owns the trial.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	var existing models.User
	if err := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&existing).Error; err == nil {
		return nil, ErrUserExists
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	account := models.TrialAccount{
		CompanyName:   input.OrgName,
		Plan:          string(authz.PlanTrial),
		Status:        models.SubscriptionTrial,
		TrialStartsAt: now,
		TrialEndsAt:   now.AddDate(0, 0, s.trialDays),
	}

	org := models.Organization{
		Name:        input.OrgName,
		Slug:        generateSlug(input.OrgName),
		Description: input.OrgDescription,
	}

	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&account).Error; err != nil {
			return err
		}

		org.TrialAccountID = account.ID
		if err := tx.Create(&org).Error; err != nil {
			return err
		}

		user = models.User{
			Email:          input.Email,
			PasswordHash:   hash,
			FirstName:      input.FirstName,
			LastName:       input.LastName,
			Phone:          input.Phone,
			OrganizationID: org.ID,
			TrialAccountID: account.ID,
			Role:           string(authz.RoleAdmin),
			IsTrialOwner:   true,
			IsActive:       true,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		return tx.Model(&models.TrialAccount{}).
			Where("id = ?", account.ID).
			Update("owner_user_id", user.ID).Error
	})
	if err != nil {
		return nil, err
	}

	token, err := s.jwt.GenerateToken(user.ID, org.ID, user.Email, user.Role, user.EmailVerified)
	if err != nil {
		return nil, err
	}

	user.Organization = &org

	return &AuthResponse{
		Token:        token,
		User:         &user,
		TrialAccount: &account,
	}, nil
}

// Login verifies credentials and refuses access once the trial window
// has closed, recording the expiry on first crossing.
func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Organization").
		Where("email = ?", input.Email).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	var account models.TrialAccount
	if err := s.db.WithContext(ctx).First(&account, "id = ?", user.TrialAccountID).Error; err == nil {
		if account.Status == models.SubscriptionTrial &&
			(account.IsExpired || !time.Now().Before(account.TrialEndsAt)) {
			if !account.IsExpired {
				if err := s.db.WithContext(ctx).Model(&models.TrialAccount{}).
					Where("id = ?", account.ID).
					Updates(map[string]interface{}{"is_expired": true, "status": models.SubscriptionExpired}).Error; err != nil {
					return nil, err
				}
			}
			return nil, ErrTrialExpired
		}
	}

	token, err := s.jwt.GenerateToken(user.ID, user.OrganizationID, user.Email, user.Role, user.EmailVerified)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		Token:        token,
		User:         &user,
		TrialAccount: &account,
	}, nil
}

// InviteUser creates a subordinate user inside the creator's
// organization. The role hierarchy and the plan's user limit both apply.
func (s *Service) InviteUser(ctx context.Context, creatorID uuid.UUID, input InviteInput) (*InviteResult, error) {
	var creator models.User
	if err := s.db.WithContext(ctx).First(&creator, "id = ?", creatorID).Error; err != nil {
		return nil, ErrUserNotFound
	}

	if !authz.CanCreateRole(authz.Role(creator.Role), input.Role) {
		return nil, ErrRoleNotAllowed
	}

	if s.plans.HasReachedUserLimit(ctx, creator.OrganizationID) {
		return nil, ErrUserLimitReached
	}

	var existing models.User
	if err := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&existing).Error; err == nil {
		return nil, ErrUserExists
	}

	tempPassword, err := GenerateTempPassword()
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(tempPassword)
	if err != nil {
		return nil, err
	}

	invitedAt := time.Now().Unix()
	user := models.User{
		Email:             input.Email,
		PasswordHash:      hash,
		FirstName:         input.FirstName,
		LastName:          input.LastName,
		Phone:             input.Phone,
		OrganizationID:    creator.OrganizationID,
		TrialAccountID:    creator.TrialAccountID,
		Role:              string(input.Role),
		IsActive:          true,
		CustomPermissions: input.CustomPermissions,
		Department:        input.Department,
		Grade:             input.Grade,
		CreatedByID:       &creator.ID,
		InvitedAt:         &invitedAt,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}

	return &InviteResult{
		User:      &user,
		InviteURL: s.frontendURL + "/auth/setup-password?email=" + user.Email,
	}, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Organization").
		Preload("Organization.TrialAccount").
		First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func generateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.ReplaceAll(slug, "'", "")
	// Add timestamp to ensure uniqueness
	return slug + "-" + time.Now().Format("0601021504")
}
