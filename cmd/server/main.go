package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lumeo/edugate/internal/api"
	"github.com/lumeo/edugate/internal/auth"
	"github.com/lumeo/edugate/internal/authz"
	"github.com/lumeo/edugate/internal/database"
	"github.com/lumeo/edugate/internal/moodle"
	"github.com/lumeo/edugate/pkg/config"
	"github.com/lumeo/edugate/pkg/crypto"
	"github.com/lumeo/edugate/pkg/queue"
	"github.com/lumeo/edugate/pkg/util"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting edugate server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis, background jobs disabled", "error", err)
		redisClient = nil
	}

	// Asynq client and inspector for enqueuing and job introspection
	var (
		asynqClient    = queue.NewClient(&cfg.Redis)
		asynqInspector = queue.NewInspector(&cfg.Redis)
	)

	// Resolve the Moodle webservice token, decrypting it when stored
	// encrypted.
	moodleToken := cfg.Moodle.Token
	if cfg.Moodle.TokenEncrypted != "" {
		encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
		if err != nil {
			logger.Error("failed to create encryptor", "error", err)
			os.Exit(1)
		}
		moodleToken, err = encryptor.DecryptString(cfg.Moodle.TokenEncrypted)
		if err != nil {
			logger.Error("failed to decrypt Moodle token", "error", err)
			os.Exit(1)
		}
	}
	moodleClient := moodle.NewClient(cfg.Moodle.URL, moodleToken, logger)

	// Authorization core. The permission cache must be warm before the
	// first request; an empty cache denies everything.
	registry := authz.NewRegistry(db, logger)
	if err := registry.Reload(context.Background()); err != nil {
		logger.Error("failed to load permission registry", "error", err)
		os.Exit(1)
	}
	logger.Info("permission registry loaded", "permissions", registry.Size())

	planService := authz.NewPlanService(db, logger)
	enforcer := authz.NewEnforcer(registry, planService, logger)

	// Auth services
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService, planService, cfg.Trial.DurationDays, cfg.Frontend.URL)

	// Create router
	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		JWTService:     jwtService,
		AuthService:    authService,
		Registry:       registry,
		Plans:          planService,
		Enforcer:       enforcer,
		MoodleClient:   moodleClient,
		AsynqClient:    asynqClient,
		AsynqInspector: asynqInspector,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if asynqClient != nil {
		asynqClient.Close()
	}
	if asynqInspector != nil {
		asynqInspector.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}
