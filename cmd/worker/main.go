package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/lumeo/edugate/internal/database"
	"github.com/lumeo/edugate/internal/moodle"
	"github.com/lumeo/edugate/internal/tasks"
	"github.com/lumeo/edugate/pkg/config"
	"github.com/lumeo/edugate/pkg/crypto"
	"github.com/lumeo/edugate/pkg/queue"
	"github.com/lumeo/edugate/pkg/util"
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

	logger.Info("starting edugate worker")

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

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
	syncer := moodle.NewSyncer(db, moodleClient, logger)

	// Create Asynq server
	srv := queue.NewServer(&cfg.Redis, 10)

	// Create task handler
	handler := tasks.NewHandler(db, logger, syncer)

	// Register handlers
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Handle shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		srv.Shutdown()
		cancel()
	}()

	logger.Info("worker started, waiting for tasks...")

	// Start the server
	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
	}

	// Wait for context cancellation
	<-ctx.Done()

	// Close database connection
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}
