package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"app/internal/api/v1/handler"
	"app/internal/checkpoint"
	"app/internal/config"
	"app/internal/genlock"
	"app/internal/middleware"
	"app/internal/pgmq"
	"app/internal/ratelimit"
	"app/internal/repository"
	"app/internal/service"
	"app/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	logger.Info().Msg("Router initialized")
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	ctx := context.Background()

	// 1. Open DB connection pool
	pool, err := repository.NewPool(ctx, cfg.DBConnectionString)
	if err != nil {
		logger.Fatal().Msgf("Failed to connect to DB: %v", err)
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	// 2. Connect admission state store. All rate limit counters, generation
	// locks and checkpoints live here so every replica sees one global state.
	kv, err := store.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Msgf("Failed to connect to Redis: %v", err)
		return nil, nil, err
	}
	logger.Info().Msg("Redis connection successful")

	// 3. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 4. Admission primitives
	limiter := ratelimit.New(kv, ratelimit.Config{
		GenerateBudget: cfg.GenerateBudget,
		GenerateWindow: time.Duration(cfg.GenerateWindowSec) * time.Second,
		GeneralBudget:  cfg.GeneralBudget,
		GeneralWindow:  time.Duration(cfg.GeneralWindowSec) * time.Second,
		BlockTTL:       time.Duration(cfg.BlockTTLSec) * time.Second,
	}, logger)
	locks := genlock.New(kv, time.Duration(cfg.LockTTLSec)*time.Second, logger)
	checkpoints := checkpoint.New(kv, time.Duration(cfg.CheckpointTTLSec)*time.Second, logger)

	// 5. Resolve the sidecar API key. Outside GCP the sidecar runs
	// unauthenticated and the key stays empty.
	llmAPIKey := ""
	if cfg.GCPProjectID != "" {
		secrets, err := service.NewSecretManagerService(ctx, cfg)
		if err != nil {
			logger.Fatal().Msgf("Failed to create Secret Manager service: %v", err)
			return nil, nil, err
		}
		llmAPIKey, err = secrets.GetProviderAPIKey(ctx, "gateway")
		if err != nil {
			logger.Fatal().Msgf("Failed to fetch LLM gateway API key: %v", err)
			return nil, nil, err
		}
	}

	// 6. Initialize repositories & services & handlers
	accountRepo := repository.NewAccountRepo(pool)
	projectRepo := repository.NewProjectRepo(pool, logger)

	queue := pgmq.New(pool)
	llmClient := service.NewLLMClient(cfg.LLMServiceBaseURL, llmAPIKey, logger)

	accountSvc := service.NewAccountService(accountRepo)
	projectSvc := service.NewProjectService(projectRepo, logger)
	generationSvc := service.NewGenerationService(
		limiter,
		locks,
		checkpoints,
		accountRepo,
		projectRepo,
		llmClient,
		cfg.GenerationCreditCost,
		time.Duration(cfg.CheckpointFlushMillis)*time.Millisecond,
		cfg.GenerationUpstreamTries,
		logger,
	)
	refineSvc := service.NewRefineService(projectRepo, queue, llmClient, cfg.RefineQueueName, logger)

	generationHandler := handler.NewGenerationHandler(generationSvc, refineSvc, validate, cfg.DefaultModel, logger)
	projectHandler := handler.NewProjectHandler(projectSvc, generationHandler, validate, logger)
	accountHandler := handler.NewAccountHandler(accountSvc, logger)

	// 7. Initialize middleware. Auth runs before the general rate limit
	// scope so the limiter keys on the authenticated account id, never on a
	// shared proxy-header bucket; the generate scope is enforced inside the
	// generation service itself.
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)
	rateLimitMiddleware := middleware.RateLimitMiddleware(limiter, logger)
	protected := func(next http.Handler) http.Handler {
		return authMiddleware(rateLimitMiddleware(next))
	}

	// 8. Create ServeMux router
	mux := http.NewServeMux()

	// Subrouter for API v1 with the /v1 prefix
	apiV1Mux := http.NewServeMux()
	projectHandler.RegisterRoutes(apiV1Mux, protected)
	accountHandler.RegisterRoutes(apiV1Mux, protected)

	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Redirect root-level requests to /v1/{path}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || r.URL.Path == "/healthz" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/v1"+r.URL.Path, http.StatusMovedPermanently)
	})

	// 9. Apply CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Allow all origins for development
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(logger, c.Handler(mux)), pool, nil
}
