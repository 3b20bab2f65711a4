// webclipd is the clip-and-convert daemon: it accepts clip requests over an
// HTTP JSON API, drives the extraction pipeline, and writes artifacts to the
// output directory. State (job checkpoint, selector cache, history) lives in
// SQL storage so an interrupted job survives a process restart.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/webclip-dev/webclip/internal/chunk"
	"github.com/webclip-dev/webclip/internal/common"
	"github.com/webclip-dev/webclip/internal/extract"
	"github.com/webclip-dev/webclip/internal/fetch"
	"github.com/webclip-dev/webclip/internal/generate"
	"github.com/webclip-dev/webclip/internal/job"
	"github.com/webclip-dev/webclip/internal/llm"
	"github.com/webclip-dev/webclip/internal/llm/openai"
	"github.com/webclip-dev/webclip/internal/metrics"
	"github.com/webclip-dev/webclip/internal/pipeline"
	"github.com/webclip-dev/webclip/internal/repository"
	"github.com/webclip-dev/webclip/internal/retry"
	"github.com/webclip-dev/webclip/internal/selectors"
	"github.com/webclip-dev/webclip/internal/server"
	"github.com/webclip-dev/webclip/internal/translate"
)

func main() {
	// .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if cfg.LLM.APIKey == "" {
		logger.Warn("no API key configured; selector and AI extraction will fail, heuristic mode still works")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, cfg.Storage.DSN, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer db.Close(logger)

	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Storage.OutputDir, 0o755); err != nil {
		logger.Error("failed to create output directory", "dir", cfg.Storage.OutputDir, "error", err)
		os.Exit(1)
	}

	registry := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	checkpoints := repository.NewCheckpointStore(db, logger)
	selectorStore := repository.NewSelectorStore(db, logger)
	history := repository.NewHistoryStore(db, logger)

	machine := job.NewManager(checkpoints, job.Config{
		HeartbeatInterval: cfg.Pipeline.HeartbeatInterval,
		ResumeThreshold:   cfg.Pipeline.ResumeThreshold,
	}, logger)
	defer machine.Close()

	cache := selectors.NewCache(selectorStore, logger)

	provider := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	policy := retry.Policy{
		MaxAttempts: cfg.Pipeline.RetryMaxAttempts,
		Delays:      cfg.Pipeline.RetryDelays,
		IsRetryable: llm.Retryable,
		OnRetry: func(int, time.Duration, error) {
			recorder.IncRetry("llm")
		},
	}

	orch := pipeline.New(pipeline.Deps{
		Machine: machine,
		Fetcher: fetch.NewFetcher(fetch.Config{
			Timeout:  cfg.Pipeline.FetchTimeout,
			MaxBytes: cfg.Pipeline.MaxPageBytes,
		}, logger),
		Cache:     cache,
		Selector:  extract.NewSelectorExtractor(logger),
		Heuristic: extract.NewHeuristicExtractor(logger),
		AI: extract.NewAIExtractor(provider, policy, extract.AIConfig{
			Split: chunk.SplitOptions{
				Size:      cfg.Pipeline.ChunkSize,
				Overlap:   cfg.Pipeline.ChunkOverlap,
				Tolerance: cfg.Pipeline.BoundaryTolerance,
			},
			CallTimeout: cfg.Pipeline.CallTimeout,
		}, logger),
		Translator: translate.NewTranslator(provider, policy, translate.Config{
			BatchSize:   cfg.Pipeline.TranslationBatch,
			CallTimeout: cfg.Pipeline.CallTimeout,
		}, logger),
		Summarizer: translate.NewSummarizer(provider, cfg.Pipeline.CallTimeout, logger),
		Registry: generate.NewRegistry(logger,
			generate.NewMarkdownGenerator(logger),
			generate.NewEPUBGenerator(logger),
			generate.NewFB2Generator(logger),
		),
		History: history,
		Metrics: recorder,
	}, pipeline.Config{OutputDir: cfg.Storage.OutputDir}, logger)

	// Pick up a job interrupted by the previous process, if its checkpoint is
	// fresh enough.
	if resumed, err := orch.Resume(ctx); err != nil {
		logger.Error("resume attempt failed", "error", err)
	} else if resumed {
		logger.Info("resumed interrupted job")
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.Storage.PruneInterval),
		gocron.NewTask(func() {
			pruneCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := history.Prune(pruneCtx, cfg.Storage.HistoryLimit); err != nil {
				logger.Warn("history prune failed", "error", err)
			}
		}),
		gocron.WithName("history-prune"),
	)
	if err != nil {
		logger.Error("failed to schedule history pruning", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	srv := server.New(server.Deps{
		Pipeline: orch,
		Jobs:     machine,
		History:  history,
		Cache:    cache,
		DB:       db,
		Registry: registry,
	}, server.Config{
		Addr:            cfg.HTTP.Addr,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	logger.Info("webclipd started",
		"addr", cfg.HTTP.Addr,
		"db", cfg.Storage.DSN,
		"output_dir", cfg.Storage.OutputDir,
		"model", cfg.LLM.Model,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
	if err := scheduler.Shutdown(); err != nil {
		logger.Warn("scheduler shutdown failed", "error", err)
	}
	// An in-flight job that outlives the grace period keeps its fresh
	// checkpoint; the next process resumes it.
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Warn("job still running at shutdown; checkpoint will allow resume", "error", err)
	}
}
