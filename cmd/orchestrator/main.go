package main

import (
	"context"
	"os/signal"
	"syscall"

	"app/internal/config"
	"app/internal/logger"
	"app/internal/orchestrator/refine"
	"app/internal/pgmq"
	"app/internal/repository"
	"app/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	logger := logger.New()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// Set up context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize DB connection pool
	pool, err := repository.NewPool(ctx, cfg.DBConnectionString)
	if err != nil {
		logger.Fatal().Msgf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()
	logger.Info().Msg("Database connection established")

	// Initialize PGMQ client
	pgmqClient := pgmq.New(pool)
	logger.Info().Msg("PGMQ client initialized")

	// Resolve the sidecar API key when running in GCP
	llmAPIKey := ""
	if cfg.GCPProjectID != "" {
		secrets, err := service.NewSecretManagerService(ctx, cfg)
		if err != nil {
			logger.Fatal().Msgf("Failed to create Secret Manager service: %v", err)
		}
		llmAPIKey, err = secrets.GetProviderAPIKey(ctx, "gateway")
		if err != nil {
			logger.Fatal().Msgf("Failed to fetch LLM gateway API key: %v", err)
		}
	}

	// Wire the refinement pipeline
	projectRepo := repository.NewProjectRepo(pool, logger)
	dlqRepo := repository.NewDLQRepository(pool)
	llmClient := service.NewLLMClient(cfg.LLMServiceBaseURL, llmAPIKey, logger)
	refineSvc := service.NewRefineService(projectRepo, pgmqClient, llmClient, cfg.RefineQueueName, logger)

	if err := refine.Run(ctx, logger, cfg, pgmqClient, refineSvc, dlqRepo); err != nil {
		logger.Fatal().Msgf("Refinement orchestrator failed: %v", err)
	}

	logger.Info().Msg("Refinement orchestrator stopped gracefully")
}
