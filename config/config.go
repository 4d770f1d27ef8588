// Package config loads service configuration from the environment,
// with optional .env file support for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	fderrors "github.com/Tekstrive/fashionDeck/errors"
)

// Config holds everything the service needs to start.
type Config struct {
	// OpenAIAPIKey authenticates completion calls.
	OpenAIAPIKey string

	// OpenAIModel is the completion model identifier.
	OpenAIModel string

	// OpenAIMaxTokens bounds completion output length.
	OpenAIMaxTokens int

	// CLIPBaseURL is the OpenAI-compatible CLIP serving endpoint.
	CLIPBaseURL string

	// CLIPModel is the encoder model identifier.
	CLIPModel string

	// DatabaseURL is the postgres DSN.
	DatabaseURL string

	// DatabaseMaxConns bounds the pgx pool.
	DatabaseMaxConns int

	// NATSURL is the cache bucket's server. Empty disables the shared
	// cache; the service runs correct but slower.
	NATSURL string

	// MetricsPort serves /metrics and /healthz.
	MetricsPort int

	// PipelineWorkers bounds concurrent background product jobs.
	PipelineWorkers int

	// PipelineBatchSize is how many pending products one sweep pulls.
	PipelineBatchSize int

	// SweepInterval is the pause between backlog sweeps. Zero disables
	// the sweep loop.
	SweepInterval time.Duration

	// PrecomputeAesthetics runs the aesthetic vector batch job at
	// startup.
	PrecomputeAesthetics bool
}

// Load reads configuration from the environment. A .env file at path
// is merged in first when it exists; missing files are not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fderrors.WrapInvalid(err, "config", "load",
				fmt.Sprintf("read env file %s failed", envFile))
		}
	}

	cfg := &Config{
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:          envString("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIMaxTokens:      envInt("OPENAI_MAX_TOKENS", 500),
		CLIPBaseURL:          envString("CLIP_BASE_URL", "http://localhost:8082"),
		CLIPModel:            envString("CLIP_MODEL", "clip-vit-base-patch32"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		DatabaseMaxConns:     envInt("DATABASE_MAX_CONNS", 8),
		NATSURL:              os.Getenv("NATS_URL"),
		MetricsPort:          envInt("METRICS_PORT", 9090),
		PipelineWorkers:      envInt("PIPELINE_WORKERS", 4),
		PipelineBatchSize:    envInt("PIPELINE_BATCH_SIZE", 100),
		SweepInterval:        envDuration("SWEEP_INTERVAL", 5*time.Minute),
		PrecomputeAesthetics: envBool("PRECOMPUTE_AESTHETICS", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required settings and bounds.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fderrors.WrapInvalid(fderrors.ErrMissingConfig, "config", "validate",
			"OPENAI_API_KEY is required")
	}
	if c.DatabaseURL == "" {
		return fderrors.WrapInvalid(fderrors.ErrMissingConfig, "config", "validate",
			"DATABASE_URL is required")
	}
	if c.CLIPBaseURL == "" {
		return fderrors.WrapInvalid(fderrors.ErrMissingConfig, "config", "validate",
			"CLIP_BASE_URL is required")
	}
	if c.MetricsPort <= 0 || c.MetricsPort > 65535 {
		return fderrors.WrapInvalid(fderrors.ErrInvalidConfig, "config", "validate",
			fmt.Sprintf("metrics port %d out of range", c.MetricsPort))
	}
	if c.DatabaseMaxConns <= 0 {
		return fderrors.WrapInvalid(fderrors.ErrInvalidConfig, "config", "validate",
			"database max conns must be positive")
	}
	if c.OpenAIMaxTokens <= 0 {
		return fderrors.WrapInvalid(fderrors.ErrInvalidConfig, "config", "validate",
			"openai max tokens must be positive")
	}
	return nil
}

// Typed env lookups with defaults. Unparseable values fall back to the
// default rather than failing startup.

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
