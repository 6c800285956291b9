//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/lumeo/edugate/internal/auth"
	"github.com/lumeo/edugate/internal/authz"
	"github.com/lumeo/edugate/internal/database"
	"github.com/lumeo/edugate/internal/database/models"
	"github.com/lumeo/edugate/pkg/config"
	"github.com/lumeo/edugate/pkg/util"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

var managers = []string{"admin", "directorate", "coordinator"}
var staff = []string{"admin", "directorate", "coordinator", "teacher"}
var everyone = []string{"admin", "directorate", "coordinator", "teacher", "student"}

type permSeed struct {
	name        string
	description string
	category    string
	roles       []string
}

var permissionCatalog = []permSeed{
	{authz.PermUsersView, "View users in the organization", "users", staff},
	{authz.PermUsersCreate, "Create users", "users", managers},
	{authz.PermUsersEdit, "Edit users", "users", managers},
	{authz.PermUsersDelete, "Delete users", "users", []string{"admin", "directorate"}},
	{authz.PermUsersInvite, "Invite users", "users", managers},
	{authz.PermOrgView, "View organization details", "organizations", everyone},
	{authz.PermOrgEdit, "Edit organization details", "organizations", []string{"admin", "directorate"}},
	{authz.PermOrgSettings, "Manage organization settings", "organizations", []string{"admin"}},
	{authz.PermCoursesView, "View courses", "courses", everyone},
	{authz.PermCoursesEdit, "Create and edit courses", "courses", managers},
	{authz.PermReportsView, "View reports", "reports", staff},
	{authz.PermProgressViewOwn, "View own course progress", "progress", everyone},
	{authz.PermProgressViewAll, "View everyone's course progress", "progress", staff},
	{authz.PermIntegrationsManage, "Manage LMS integrations", "integrations", []string{"admin", "directorate"}},
	{authz.PermWebhooksView, "View webhook events", "webhooks", []string{"admin", "directorate"}},
	{authz.PermWebhooksManage, "Manage webhook processing", "webhooks", []string{"admin"}},
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Seed the permission catalog
	seeded := 0
	for _, p := range permissionCatalog {
		var existing models.UserPermission
		err := db.Where("name = ?", p.name).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Fatalf("failed to check permission %s: %v", p.name, err)
		}

		perm := models.UserPermission{
			Name:         p.name,
			Description:  p.description,
			Category:     p.category,
			DefaultRoles: models.StringArray(p.roles),
		}
		if err := db.Create(&perm).Error; err != nil {
			log.Fatalf("failed to seed permission %s: %v", p.name, err)
		}
		seeded++
	}
	fmt.Printf("Permission catalog: %d seeded, %d total\n", seeded, len(permissionCatalog))

	// Create the demo admin and trial organization
	planService := authz.NewPlanService(db, logger)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService, planService, cfg.Trial.DurationDays, cfg.Frontend.URL)

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	orgName := os.Getenv("ADMIN_ORG_NAME")

	if email == "" {
		email = "admin@example.com"
	}
	if password == "" {
		password = "Admin123!"
	}
	if orgName == "" {
		orgName = "Demo Academy"
	}

	resp, err := authService.Register(context.Background(), auth.RegisterInput{
		Email:     email,
		Password:  password,
		FirstName: "Admin",
		LastName:  "User",
		OrgName:   orgName,
	})

	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			fmt.Printf("Admin user already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create admin user: %v", err)
	}

	fmt.Printf("Admin user created successfully!\n")
	fmt.Printf("Email: %s\n", resp.User.Email)
	fmt.Printf("Organization: %s\n", resp.User.Organization.Name)
	fmt.Printf("Token: %s\n", resp.Token)
}
