package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/lumeo/edugate/internal/api/handlers"
	"github.com/lumeo/edugate/internal/api/middleware"
	"github.com/lumeo/edugate/internal/auth"
	"github.com/lumeo/edugate/internal/authz"
	"github.com/lumeo/edugate/internal/moodle"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	Registry       *authz.Registry
	Plans          *authz.PlanService
	Enforcer       *authz.Enforcer
	MoodleClient   *moodle.Client
	AsynqClient    *asynq.Client
	AsynqInspector *asynq.Inspector
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// Rate limiting - applied globally to prevent abuse
	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	// CORS - restrict to configured origins, or allow all in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		// Default to localhost for development - configure in production
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.Registry, cfg.Logger)
	userHandler := handlers.NewUserHandler(cfg.DB, cfg.Plans, cfg.Logger)
	orgHandler := handlers.NewOrganizationHandler(cfg.DB, cfg.Plans, cfg.Logger)
	courseHandler := handlers.NewCourseHandler(cfg.DB, cfg.Logger)
	progressHandler := handlers.NewProgressHandler(cfg.DB, cfg.Logger)
	moodleHandler := handlers.NewMoodleHandler(cfg.DB, cfg.MoodleClient, cfg.AsynqClient, cfg.Logger)
	jobHandler := handlers.NewJobHandler(cfg.AsynqInspector, cfg.Logger)
	webhookHandler := handlers.NewWebhookHandler(cfg.DB, cfg.AsynqClient, cfg.Logger)

	gate := cfg.Enforcer

	manageRoles := []authz.Role{authz.RoleAdmin, authz.RoleDirectorate, authz.RoleCoordinator}
	adminRoles := []authz.Role{authz.RoleAdmin, authz.RoleDirectorate}

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/webhooks/moodle", webhookHandler.Receive)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService, cfg.DB))

			r.Get("/me", authHandler.Me)
			r.Post("/auth/logout", authHandler.Logout)
			r.With(gate.Require(authz.Requirements{
				Roles: []authz.Role{authz.RoleAdmin},
			})).Post("/auth/permissions/reload", authHandler.ReloadPermissions)

			r.With(gate.Require(authz.Requirements{
				Permissions:  []string{authz.PermUsersInvite, authz.PermUsersCreate},
				Subscription: true,
			})).Post("/auth/invite", authHandler.Invite)

			// User endpoints
			r.Route("/users", func(r chi.Router) {
				r.With(gate.Require(authz.Requirements{
					Permissions: []string{authz.PermUsersView},
				})).Get("/", userHandler.List)
				r.With(gate.Require(authz.Requirements{
					Permissions: []string{authz.PermUsersView},
				})).Get("/{id}", userHandler.Get)
				r.With(gate.Require(authz.Requirements{
					Permissions:  []string{authz.PermUsersEdit},
					Subscription: true,
				})).Patch("/{id}", userHandler.Update)
				r.With(gate.Require(authz.Requirements{
					Roles:        manageRoles,
					Subscription: true,
				})).Post("/{id}/deactivate", userHandler.Deactivate)
				r.With(gate.Require(authz.Requirements{
					Roles:        manageRoles,
					Subscription: true,
				})).Post("/{id}/reactivate", userHandler.Reactivate)
			})

			// Organization endpoints
			r.Route("/organization", func(r chi.Router) {
				r.Get("/", orgHandler.Get)
				r.Get("/plan", orgHandler.Plan)
				r.With(gate.Require(authz.Requirements{
					Roles:        adminRoles,
					Permissions:  []string{authz.PermOrgEdit},
					Subscription: true,
				})).Patch("/", orgHandler.Update)
			})

			// Course endpoints
			r.Route("/courses", func(r chi.Router) {
				r.With(gate.Require(authz.Requirements{
					Feature: authz.FeatureCourses,
				})).Get("/", courseHandler.List)
				r.With(gate.Require(authz.Requirements{
					Feature: authz.FeatureCourses,
				})).Get("/{id}", courseHandler.Get)
				r.With(gate.Require(authz.Requirements{
					Roles:        manageRoles,
					Feature:      authz.FeatureCourses,
					Subscription: true,
				})).Post("/", courseHandler.Create)
				r.With(gate.Require(authz.Requirements{
					Roles:        manageRoles,
					Feature:      authz.FeatureCourses,
					Subscription: true,
				})).Patch("/{id}", courseHandler.Update)
				r.With(gate.Require(authz.Requirements{
					Roles:        adminRoles,
					Feature:      authz.FeatureCourses,
					Subscription: true,
				})).Delete("/{id}", courseHandler.Delete)

				r.With(gate.Require(authz.Requirements{
					Feature: authz.FeatureCourses,
				})).Get("/{id}/enrollments", courseHandler.Enrollments)
				r.With(gate.Require(authz.Requirements{
					Roles:        manageRoles,
					Feature:      authz.FeatureCourses,
					Subscription: true,
				})).Post("/{id}/enrollments", courseHandler.Enroll)
				r.With(gate.Require(authz.Requirements{
					Roles:        manageRoles,
					Feature:      authz.FeatureCourses,
					Subscription: true,
				})).Delete("/{id}/enrollments/{userID}", courseHandler.Unenroll)

				r.With(gate.Require(authz.Requirements{
					Permissions: []string{authz.PermProgressViewAll},
					Feature:     authz.FeatureProgressTracking,
				})).Get("/{id}/progress", progressHandler.Course)
			})

			// Progress endpoints
			r.Route("/progress", func(r chi.Router) {
				r.With(gate.Require(authz.Requirements{
					Permissions: []string{authz.PermProgressViewOwn, authz.PermProgressViewAll},
					Feature:     authz.FeatureProgressTracking,
				})).Get("/", progressHandler.Mine)
				r.With(gate.Require(authz.Requirements{
					Roles:        []authz.Role{authz.RoleAdmin, authz.RoleDirectorate, authz.RoleCoordinator, authz.RoleTeacher},
					Feature:      authz.FeatureProgressTracking,
					Subscription: true,
				})).Put("/", progressHandler.Upsert)
			})

			// Moodle integration endpoints
			r.Route("/moodle", func(r chi.Router) {
				r.Use(gate.Require(authz.Requirements{
					Roles:        adminRoles,
					Feature:      authz.FeatureMoodleIntegration,
					Subscription: true,
				}))

				r.Post("/test-connection", moodleHandler.TestConnection)
				r.Get("/site-info", moodleHandler.SiteInfo)
				r.Get("/courses", moodleHandler.Courses)
				r.Get("/courses/{moodleID}/contents", moodleHandler.CourseContents)
				r.Get("/courses/{moodleID}/grades", moodleHandler.Grades)
				r.Post("/courses/{moodleID}/link/{courseID}", moodleHandler.LinkCourse)
				r.Post("/sync", moodleHandler.Sync)
			})

			// Job endpoints
			r.Route("/jobs", func(r chi.Router) {
				r.Use(gate.Require(authz.Requirements{Roles: adminRoles}))

				r.Get("/stats", jobHandler.Stats)
				r.Get("/{queue}/{id}", jobHandler.Get)
				r.Delete("/{queue}/{id}", jobHandler.Cancel)
			})

			// Webhook history
			r.With(gate.Require(authz.Requirements{
				Permissions: []string{authz.PermWebhooksView, authz.PermWebhooksManage},
				Feature:     authz.FeatureWebhooks,
			})).Get("/webhooks", webhookHandler.List)
		})
	})

	return &Router{r}
}

var _ http.Handler = (*Router)(nil)
