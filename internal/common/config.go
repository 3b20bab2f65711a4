package common

import (
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration, loaded from the environment.
type Config struct {
	HTTP     HTTPConfig
	Storage  StorageConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	LogLevel string `envconfig:"WEBCLIP_LOG_LEVEL" default:"info"`
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	Addr            string        `envconfig:"WEBCLIP_HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"WEBCLIP_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

// StorageConfig holds persistence settings. The DSN selects the driver:
// postgres:// URLs use pgx, anything else is treated as a SQLite path
// (":memory:" included).
type StorageConfig struct {
	DSN           string        `envconfig:"WEBCLIP_DB" default:"webclip.db"`
	OutputDir     string        `envconfig:"WEBCLIP_OUTPUT_DIR" default:"./clips"`
	HistoryLimit  int           `envconfig:"WEBCLIP_HISTORY_LIMIT" default:"500"`
	PruneInterval time.Duration `envconfig:"WEBCLIP_HISTORY_PRUNE_INTERVAL" default:"6h"`
}

// LLMConfig holds AI-provider settings.
type LLMConfig struct {
	BaseURL     string        `envconfig:"WEBCLIP_OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	APIKey      string        `envconfig:"OPENAI_API_KEY"`
	Model       string        `envconfig:"WEBCLIP_MODEL" default:"gpt-4o-mini"`
	Temperature float32       `envconfig:"WEBCLIP_TEMPERATURE" default:"0"`
	MaxTokens   int           `envconfig:"WEBCLIP_MAX_TOKENS" default:"4096"`
	Timeout     time.Duration `envconfig:"WEBCLIP_LLM_TIMEOUT" default:"90s"`
}

// PipelineConfig holds the tunables of the extraction/conversion pipeline.
type PipelineConfig struct {
	ChunkSize         int             `envconfig:"WEBCLIP_CHUNK_SIZE" default:"60000"`
	ChunkOverlap      int             `envconfig:"WEBCLIP_CHUNK_OVERLAP" default:"1000"`
	BoundaryTolerance int             `envconfig:"WEBCLIP_CHUNK_TOLERANCE" default:"2000"`
	ResumeThreshold   time.Duration   `envconfig:"WEBCLIP_RESUME_THRESHOLD" default:"60s"`
	HeartbeatInterval time.Duration   `envconfig:"WEBCLIP_HEARTBEAT_INTERVAL" default:"10s"`
	CallTimeout       time.Duration   `envconfig:"WEBCLIP_CALL_TIMEOUT" default:"120s"`
	FetchTimeout      time.Duration   `envconfig:"WEBCLIP_FETCH_TIMEOUT" default:"20s"`
	RetryMaxAttempts  int             `envconfig:"WEBCLIP_RETRY_MAX_ATTEMPTS" default:"4"`
	RetryDelays       []time.Duration `envconfig:"WEBCLIP_RETRY_DELAYS" default:"1s,2s,5s"`
	TranslationBatch  int             `envconfig:"WEBCLIP_TRANSLATION_BATCH" default:"40"`
	MaxPageBytes      int64           `envconfig:"WEBCLIP_MAX_PAGE_BYTES" default:"10485760"`
}

// LoadConfig reads configuration from environment variables. Callers load a
// .env file beforehand if they want one.
func LoadConfig() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, WrapError(err, "process environment")
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with. A missing API
// key is deliberately not fatal here: heuristic-only jobs work without one and
// AI-dependent jobs fail with auth_failed at run time.
func (c *Config) Validate() error {
	if c.Storage.DSN == "" {
		return NewAppError("CONFIG_ERROR", "WEBCLIP_DB is required", nil)
	}
	if c.Storage.OutputDir == "" {
		return NewAppError("CONFIG_ERROR", "WEBCLIP_OUTPUT_DIR is required", nil)
	}
	if c.Pipeline.ChunkSize <= 0 {
		return NewAppError("CONFIG_ERROR", "WEBCLIP_CHUNK_SIZE must be positive", nil)
	}
	if c.Pipeline.ChunkOverlap < 0 || c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize {
		return NewAppError("CONFIG_ERROR", "WEBCLIP_CHUNK_OVERLAP must be in [0, chunk size)", nil)
	}
	if c.Pipeline.ResumeThreshold <= 0 {
		return NewAppError("CONFIG_ERROR", "WEBCLIP_RESUME_THRESHOLD must be positive", nil)
	}
	if c.Pipeline.HeartbeatInterval <= 0 || c.Pipeline.HeartbeatInterval >= c.Pipeline.ResumeThreshold {
		return NewAppError("CONFIG_ERROR", "WEBCLIP_HEARTBEAT_INTERVAL must be positive and below the resume threshold", nil)
	}
	if c.Pipeline.RetryMaxAttempts < 1 {
		return NewAppError("CONFIG_ERROR", "WEBCLIP_RETRY_MAX_ATTEMPTS must be at least 1", nil)
	}
	return nil
}

// SlogLevel maps the configured log level string onto a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
