package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port               string `envconfig:"PORT" default:"8080"`
	Environment        string `envconfig:"ENV" default:"development"`
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	RedisURL           string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	JWTSecret          string `envconfig:"JWT_SECRET" required:"true"`
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`
	GCPCredentialsFile string `envconfig:"GCP_CREDENTIALS_FILE"`

	// LLM sidecar settings
	LLMServiceBaseURL string `envconfig:"LLM_SERVICE_BASE_URL" required:"true"`
	DefaultModel      string `envconfig:"DEFAULT_MODEL" default:"claude-sonnet"`

	// Admission settings
	GenerateWindowSec int `envconfig:"GENERATE_WINDOW_SEC" default:"60"`
	GenerateBudget    int `envconfig:"GENERATE_BUDGET" default:"3"`
	GeneralWindowSec  int `envconfig:"GENERAL_WINDOW_SEC" default:"60"`
	GeneralBudget     int `envconfig:"GENERAL_BUDGET" default:"60"`
	BlockTTLSec       int `envconfig:"BLOCK_TTL_SEC" default:"900"`

	// Generation lock and checkpoint settings
	LockTTLSec              int `envconfig:"LOCK_TTL_SEC" default:"300"`
	CheckpointTTLSec        int `envconfig:"CHECKPOINT_TTL_SEC" default:"3600"`
	CheckpointFlushMillis   int `envconfig:"CHECKPOINT_FLUSH_MILLIS" default:"2000"`
	GenerationCreditCost    int `envconfig:"GENERATION_CREDIT_COST" default:"1"`
	GenerationUpstreamTries int `envconfig:"GENERATION_UPSTREAM_TRIES" default:"2"`

	// Refinement orchestrator settings
	RefineQueueName           string `envconfig:"REFINE_QUEUE_NAME" default:"refine_queue"`
	RefinePollTimeoutSec      int    `envconfig:"REFINE_POLL_TIMEOUT_SEC" default:"30"`
	RefinePollMaxMsg          int    `envconfig:"REFINE_POLL_MAX_MSG" default:"1"`
	RefineMaxRetries          int    `envconfig:"REFINE_MAX_RETRIES" default:"5"`
	RefineBackoffInitialSec   int    `envconfig:"REFINE_BACKOFF_INITIAL_SEC" default:"1"`
	RefineBackoffMaxSec       int    `envconfig:"REFINE_BACKOFF_MAX_SEC" default:"60"`
	RefineRequestTimeoutSec   int    `envconfig:"REFINE_REQUEST_TIMEOUT_SEC" default:"120"`
	RefineDeadLetterQueueName string `envconfig:"REFINE_DEAD_LETTER_QUEUE_NAME" default:"refine_queue_dlq"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
