// webclip-batch clips a list of pages from a YAML manifest, one after the
// other, and reports a summary. It runs the same pipeline as webclipd without
// the HTTP surface; the single-job constraint makes the runs strictly
// sequential.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/webclip-dev/webclip/constants"
	"github.com/webclip-dev/webclip/internal/chunk"
	"github.com/webclip-dev/webclip/internal/common"
	"github.com/webclip-dev/webclip/internal/entity"
	"github.com/webclip-dev/webclip/internal/extract"
	"github.com/webclip-dev/webclip/internal/fetch"
	"github.com/webclip-dev/webclip/internal/generate"
	"github.com/webclip-dev/webclip/internal/job"
	"github.com/webclip-dev/webclip/internal/llm"
	"github.com/webclip-dev/webclip/internal/llm/openai"
	"github.com/webclip-dev/webclip/internal/pipeline"
	"github.com/webclip-dev/webclip/internal/repository"
	"github.com/webclip-dev/webclip/internal/retry"
	"github.com/webclip-dev/webclip/internal/selectors"
	"github.com/webclip-dev/webclip/internal/translate"
)

// manifest is the batch input file: shared defaults plus one entry per page.
type manifest struct {
	Defaults clipSpec   `yaml:"defaults"`
	Clips    []clipSpec `yaml:"clips"`
}

// clipSpec mirrors the request surface; empty fields inherit from defaults.
type clipSpec struct {
	URL             string `yaml:"url"`
	Format          string `yaml:"format"`
	Mode            string `yaml:"mode"`
	Language        string `yaml:"language"`
	IncludeSummary  bool   `yaml:"include_summary"`
	TranslateImages bool   `yaml:"translate_images"`
}

func (s clipSpec) withDefaults(d clipSpec) clipSpec {
	if s.Format == "" {
		s.Format = d.Format
	}
	if s.Mode == "" {
		s.Mode = d.Mode
	}
	if s.Language == "" {
		s.Language = d.Language
	}
	s.IncludeSummary = s.IncludeSummary || d.IncludeSummary
	s.TranslateImages = s.TranslateImages || d.TranslateImages
	return s
}

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		manifestPath = flag.String("manifest", "", "YAML manifest of pages to clip (required)")
		inmem        = flag.Bool("inmem", false, "use an in-memory SQLite database")
		timeout      = flag.Duration("timeout", 10*time.Minute, "per-clip timeout")
	)
	flag.Parse()

	if *manifestPath == "" {
		printError("Error: --manifest is required\n")
		os.Exit(1)
	}

	_ = godotenv.Load()

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: load configuration: %v\n", err)
		os.Exit(1)
	}
	if *inmem {
		cfg.Storage.DSN = ":memory:"
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	raw, err := os.ReadFile(*manifestPath)
	if err != nil {
		logger.Error("failed to read manifest", "path", *manifestPath, "error", err)
		os.Exit(1)
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		logger.Error("failed to parse manifest", "path", *manifestPath, "error", err)
		os.Exit(1)
	}
	if len(m.Clips) == 0 {
		logger.Error("manifest lists no clips", "path", *manifestPath)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := repository.Open(ctx, cfg.Storage.DSN, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close(logger)

	if err := os.MkdirAll(cfg.Storage.OutputDir, 0o755); err != nil {
		logger.Error("failed to create output directory", "dir", cfg.Storage.OutputDir, "error", err)
		os.Exit(1)
	}

	machine := job.NewManager(repository.NewCheckpointStore(db, logger), job.Config{
		HeartbeatInterval: cfg.Pipeline.HeartbeatInterval,
		ResumeThreshold:   cfg.Pipeline.ResumeThreshold,
	}, logger)
	defer machine.Close()

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
	}

	orch := pipeline.New(pipeline.Deps{
		Machine: machine,
		Fetcher: fetch.NewFetcher(fetch.Config{
			Timeout:  cfg.Pipeline.FetchTimeout,
			MaxBytes: cfg.Pipeline.MaxPageBytes,
		}, logger),
		Cache:     selectors.NewCache(repository.NewSelectorStore(db, logger), logger),
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
		History: repository.NewHistoryStore(db, logger),
	}, pipeline.Config{OutputDir: cfg.Storage.OutputDir}, logger)

	succeeded := 0
	failed := 0
	for i, spec := range m.Clips {
		spec = spec.withDefaults(m.Defaults)
		logger.Info("batch.clip.start", "index", i+1, "total", len(m.Clips), "url", spec.URL)

		final, err := runClip(ctx, orch, machine, spec, *timeout)
		if err != nil {
			logger.Error("batch.clip.failed", "url", spec.URL, "error", err)
			failed++
			continue
		}
		switch {
		case final.Error != nil:
			logger.Error("batch.clip.failed", "url", spec.URL,
				"code", final.Error.Code, "message", final.Error.Message)
			failed++
		case final.Result != nil && final.Result.ArtifactPath != "":
			logger.Info("batch.clip.ok", "url", spec.URL, "artifact", final.Result.ArtifactPath)
			succeeded++
		default:
			logger.Warn("batch.clip.no_artifact", "url", spec.URL, "stage", final.Stage)
			failed++
		}
	}

	fmt.Printf("Batch clipping complete!\n")
	fmt.Printf("- Clips attempted: %d\n", len(m.Clips))
	fmt.Printf("- Succeeded: %d\n", succeeded)
	fmt.Printf("- Failed: %d\n", failed)
	fmt.Printf("- Output: %s\n", cfg.Storage.OutputDir)
	if failed > 0 {
		os.Exit(1)
	}
}

// runClip starts one job and polls the machine until it reaches a terminal
// stage. On timeout the job is cancelled and its final state reported.
func runClip(ctx context.Context, orch *pipeline.Orchestrator, machine *job.Manager, spec clipSpec, timeout time.Duration) (entity.Job, error) {
	req := entity.ClipRequest{
		URL:             spec.URL,
		Format:          constants.OutputFormat(spec.Format),
		Mode:            constants.AcquisitionMode(spec.Mode),
		Language:        spec.Language,
		IncludeSummary:  spec.IncludeSummary,
		TranslateImages: spec.TranslateImages,
	}

	snap, err := orch.Start(req)
	if err != nil {
		return entity.Job{}, err
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_, _ = machine.Cancel()
			return entity.Job{}, ctx.Err()
		case <-ticker.C:
		}

		cur, ok := machine.Current()
		if ok && cur.ID == snap.ID && cur.Stage.Terminal() {
			return cur, nil
		}
		if time.Now().After(deadline) {
			_, _ = machine.Cancel()
			return entity.Job{}, fmt.Errorf("clip did not finish within %s", timeout)
		}
	}
}
