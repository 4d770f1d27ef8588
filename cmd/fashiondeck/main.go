// Package main implements the fashionDeck embedding worker: it keeps
// product embeddings fresh through backlog sweeps, precomputes
// aesthetic reference vectors and serves metrics and health. The
// request-facing operations live in the service package and are
// embedded by the routing layer.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/Tekstrive/fashionDeck/aesthetic"
	"github.com/Tekstrive/fashionDeck/cache"
	"github.com/Tekstrive/fashionDeck/config"
	"github.com/Tekstrive/fashionDeck/encoder"
	"github.com/Tekstrive/fashionDeck/metric"
	"github.com/Tekstrive/fashionDeck/pipeline"
	"github.com/Tekstrive/fashionDeck/pkg/worker"
	"github.com/Tekstrive/fashionDeck/storage/productstore"
	"github.com/Tekstrive/fashionDeck/types"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "fashiondeck"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := config.Load(cliCfg.EnvFile)
	if err != nil {
		return err
	}
	if cliCfg.Validate {
		logger.Info("configuration is valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics
	registry := metric.NewRegistry()
	core, err := metric.NewCore(registry)
	if err != nil {
		return err
	}

	// Cache; absence degrades to permanent misses
	var store cache.Store = cache.Disabled{}
	if cfg.NATSURL != "" {
		natsStore, err := cache.NewNATS(ctx, cfg.NATSURL)
		if err != nil {
			logger.Warn("cache unavailable, continuing without it", "error", err)
		} else {
			store = natsStore
		}
	} else {
		logger.Info("no cache configured, running uncached")
	}
	store, err = cache.NewInstrumented(store, registry)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// Product store
	products, err := productstore.New(ctx, productstore.Config{
		DSN:      cfg.DatabaseURL,
		MaxConns: int32(cfg.DatabaseMaxConns),
		Metrics:  core,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer products.Close()

	// Encoder; model loads lazily on first use
	clip, err := encoder.NewCLIP(encoder.Config{
		BaseURL: cfg.CLIPBaseURL,
		Model:   cfg.CLIPModel,
		Metrics: core,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = clip.Close() }()

	// Embedding pipeline
	pipe := pipeline.New(products, clip, pipeline.Config{
		Workers:   cfg.PipelineWorkers,
		BatchSize: cfg.PipelineBatchSize,
		Logger:    logger,
	}, worker.WithMetrics[types.Product](registry, "pipeline"))
	if err := pipe.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := pipe.Stop(cliCfg.ShutdownTimeout); err != nil {
			logger.Warn("pipeline stop", "error", err)
		}
	}()

	// Metrics and health endpoint; Start blocks until Stop
	metricsServer := metric.NewServer(cfg.MetricsPort, registry, healthHandler(cfg, pipe))
	go func() {
		if err := metricsServer.Start(); err != nil {
			logger.Error("metrics server failed", "error", err)
			stop()
		}
	}()
	defer func() { _ = metricsServer.Stop() }()

	// Startup batch job
	if cfg.PrecomputeAesthetics {
		aesthetics := aesthetic.NewService(clip, store, logger)
		go func() {
			stored := aesthetics.Precompute(ctx)
			logger.Info("aesthetic precompute finished", "stored", stored)
		}()
	}

	// Backlog sweep loop
	if cfg.SweepInterval > 0 {
		go pipe.Run(ctx, cfg.SweepInterval)
	}

	logger.Info("service started",
		"metrics_port", cfg.MetricsPort,
		"encoder_model", cfg.CLIPModel,
		"sweep_interval", cfg.SweepInterval)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// healthHandler reports liveness plus the configured model
// identifiers and pipeline counters. Encoder readiness is deliberately
// not probed here; the model loads on first use.
func healthHandler(cfg *config.Config, pipe *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":           "ok",
			"service":          appName,
			"version":          Version,
			"completion_model": cfg.OpenAIModel,
			"encoder_model":    cfg.CLIPModel,
			"pipeline":         pipe.Stats(),
			"time":             time.Now().UTC().Format(time.RFC3339),
		})
	}
}
