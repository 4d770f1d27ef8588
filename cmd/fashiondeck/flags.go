package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	EnvFile         string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ShowVersion     bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.EnvFile, "env-file",
		getEnv("FASHIONDECK_ENV_FILE", ".env"),
		"Path to .env file (env: FASHIONDECK_ENV_FILE)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("FASHIONDECK_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: FASHIONDECK_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("FASHIONDECK_LOG_FORMAT", "json"),
		"Log format: json, text (env: FASHIONDECK_LOG_FORMAT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("FASHIONDECK_SHUTDOWN_TIMEOUT", 15*time.Second),
		"Graceful shutdown timeout (env: FASHIONDECK_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Parse()

	if cfg.ShowVersion {
		fmt.Printf("%s version %s (built %s)\n", appName, Version, BuildTime)
		os.Exit(0)
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
