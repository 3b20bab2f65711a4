// Package pipeline composes the state machine, the acquisition strategies,
// the translator and the document generators into the end-to-end clip flow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/webclip-dev/webclip/constants"
	"github.com/webclip-dev/webclip/internal/common"
	"github.com/webclip-dev/webclip/internal/entity"
	"github.com/webclip-dev/webclip/internal/extract"
	"github.com/webclip-dev/webclip/internal/fetch"
	"github.com/webclip-dev/webclip/internal/generate"
	"github.com/webclip-dev/webclip/internal/job"
	"github.com/webclip-dev/webclip/internal/llm"
	"github.com/webclip-dev/webclip/internal/metrics"
	"github.com/webclip-dev/webclip/internal/repository"
	"github.com/webclip-dev/webclip/internal/selectors"
	"github.com/webclip-dev/webclip/internal/translate"
)

// historyTimeout bounds the stats write at finalization, which runs outside
// any job context.
const historyTimeout = 3 * time.Second

// Config tunes the orchestrator itself; stage components carry their own.
type Config struct {
	// OutputDir receives generated artifacts.
	OutputDir string
}

// Deps are the orchestrator's collaborators. All fields are required except
// Metrics, which defaults to the noop recorder.
type Deps struct {
	Machine    *job.Manager
	Fetcher    *fetch.Fetcher
	Cache      *selectors.Cache
	Selector   *extract.SelectorExtractor
	Heuristic  *extract.HeuristicExtractor
	AI         *extract.AIExtractor
	Translator *translate.Translator
	Summarizer *translate.Summarizer
	Registry   *generate.Registry
	History    repository.HistoryStore
	Metrics    metrics.Recorder
}

// Orchestrator drives clip jobs stage by stage. Start is fire-and-forget: the
// outcome is observed through the job state, never through a return value.
type Orchestrator struct {
	d   Deps
	cfg Config
	log *slog.Logger
	wg  sync.WaitGroup
}

func New(deps Deps, cfg Config, logger *slog.Logger) *Orchestrator {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{d: deps, cfg: cfg, log: logger}
}

// Start validates the request, admits it into the state machine and spawns
// the run. The returned snapshot is the accepted job at its initial stage.
func (o *Orchestrator) Start(req entity.ClipRequest) (entity.Job, error) {
	if err := o.normalizeRequest(&req); err != nil {
		return entity.Job{}, err
	}
	snap, jobCtx, err := o.d.Machine.Begin(req)
	if err != nil {
		return entity.Job{}, err
	}
	o.wg.Add(1)
	go o.run(jobCtx, snap)
	return snap, nil
}

// Resume picks up the checkpointed job, if one is fresh enough, and continues
// it from the beginning of its recorded stage. Returns false when the process
// starts idle.
func (o *Orchestrator) Resume(ctx context.Context) (bool, error) {
	snap, jobCtx, err := o.d.Machine.Resume(ctx)
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}
	o.wg.Add(1)
	go o.run(jobCtx, *snap)
	return true, nil
}

// Shutdown waits for the in-flight run to finish. An interrupted job keeps
// its heartbeat-fresh checkpoint, so giving up on the wait is safe: the next
// process resumes it.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// normalizeRequest validates the request and rewrites its enum fields to
// canonical form so the rest of the pipeline never sees aliases.
func (o *Orchestrator) normalizeRequest(req *entity.ClipRequest) error {
	if err := common.NewValidator().
		Field("url", req.URL, common.HTTPURL).
		Err(); err != nil {
		return err
	}
	if req.URL == "" && req.HTML == "" {
		return common.NewAppError(common.CodeInvalidRequest, "either url or html is required", nil)
	}

	if req.Format == "" {
		return common.NewAppError(common.CodeInvalidRequest, "output format is required", nil)
	}
	format, ok := constants.CanonicalFormat(string(req.Format))
	if !ok {
		return common.NewAppError(common.CodeInvalidRequest,
			fmt.Sprintf("unknown output format %q", req.Format), nil)
	}
	if !o.d.Registry.Supports(format) {
		return common.NewAppError(common.CodeInvalidRequest,
			fmt.Sprintf("output format %q is not available in this build", format), nil)
	}
	req.Format = format

	mode, ok := constants.CanonicalMode(string(req.Mode))
	if !ok {
		return common.NewAppError(common.CodeInvalidRequest,
			fmt.Sprintf("unknown acquisition mode %q", req.Mode), nil)
	}
	req.Mode = mode

	if req.Language != "" {
		tag, err := translate.ValidateTag(req.Language)
		if err != nil {
			return err
		}
		req.Language = tag
	}
	return nil
}

// run is the background body of one job. It owns terminal-state selection:
// the cancellation flag outranks whatever error an unwinding call returned.
func (o *Orchestrator) run(ctx context.Context, snap entity.Job) {
	defer o.wg.Done()

	o.d.Metrics.SetJobActive(true)
	defer o.d.Metrics.SetJobActive(false)

	log := o.log.With("job_id", snap.ID)
	log.Info("pipeline.run", "url", snap.Request.URL, "stage", snap.Stage, "mode", snap.Request.Mode)

	res, err := o.execute(ctx, snap)
	if flagged := o.d.Machine.CheckCancelled(); flagged != nil {
		err = flagged
	}

	switch {
	case err == nil:
		o.d.Machine.Complete(res)
		o.d.Metrics.IncJobOutcome(metrics.OutcomeCompleted)
	case errors.Is(err, common.ErrCancelled):
		o.d.Machine.FinalizeCancelled()
		o.d.Metrics.IncJobOutcome(metrics.OutcomeCancelled)
	default:
		log.Error("pipeline.failed", "error", err)
		o.d.Machine.Fail(err)
		o.d.Metrics.IncJobOutcome(metrics.OutcomeFailed)
	}

	if final, ok := o.d.Machine.Current(); ok {
		o.d.Metrics.ObserveJobDuration(final.LastUpdate.Sub(final.StartedAt))
		o.appendHistory(final)
	}
}

// stageRank orders the active stages so resume entry points can skip the
// work recorded as already done.
func stageRank(s constants.JobStage) int {
	switch s {
	case constants.StageAnalyzing:
		return 0
	case constants.StageExtracting:
		return 1
	case constants.StageTranslating:
		return 2
	case constants.StageGenerating:
		return 3
	}
	return -1
}

// advanceTo moves the machine forward, tolerating a job that resumed at or
// past the target stage.
func (o *Orchestrator) advanceTo(to constants.JobStage) error {
	if cur, ok := o.d.Machine.Current(); ok && stageRank(cur.Stage) >= stageRank(to) {
		return nil
	}
	return o.d.Machine.Advance(to)
}

// execute walks the stages for one job. snap is the entry state: a fresh job
// enters at ANALYZING with no result, a resumed one wherever its checkpoint
// left off.
func (o *Orchestrator) execute(ctx context.Context, snap entity.Job) (*entity.ClipResult, error) {
	req := snap.Request
	res := snap.Result
	sourceURL := req.URL

	if res == nil {
		pageHTML, finalURL, err := o.analyze(ctx, req)
		if err != nil {
			return nil, err
		}
		sourceURL = finalURL
		if err := o.d.Machine.CheckCancelled(); err != nil {
			return nil, err
		}

		if err := o.advanceTo(constants.StageExtracting); err != nil {
			return nil, err
		}
		res, err = o.acquire(ctx, req, pageHTML, finalURL)
		if err != nil {
			return nil, err
		}
		o.d.Machine.StashResult(res)
		o.d.Machine.Progress(70, "content ready")
	}

	if err := o.d.Machine.CheckCancelled(); err != nil {
		return nil, err
	}

	pastTranslation := stageRank(snap.Stage) > stageRank(constants.StageTranslating)
	if req.Language != "" && !pastTranslation {
		if err := o.advanceTo(constants.StageTranslating); err != nil {
			return nil, err
		}
		if err := o.translateStage(ctx, res, req); err != nil {
			return nil, err
		}
		if err := o.d.Machine.CheckCancelled(); err != nil {
			return nil, err
		}
	}

	if req.IncludeSummary && !pastTranslation {
		o.summarize(ctx, res)
		if err := o.d.Machine.CheckCancelled(); err != nil {
			return nil, err
		}
	}

	if err := o.advanceTo(constants.StageGenerating); err != nil {
		return nil, err
	}
	if err := o.generateStage(ctx, req, res, sourceURL); err != nil {
		return nil, err
	}
	return res, nil
}

// analyze obtains the page markup: inline HTML is used as-is, URL-only
// requests go through the fetcher.
func (o *Orchestrator) analyze(ctx context.Context, req entity.ClipRequest) (pageHTML, finalURL string, err error) {
	started := time.Now()
	defer func() {
		o.d.Metrics.ObserveStageDuration(string(constants.StageAnalyzing), time.Since(started))
	}()

	if req.HTML != "" {
		o.d.Machine.Progress(10, "using captured page markup")
		return req.HTML, req.URL, nil
	}

	o.d.Machine.Progress(5, "fetching page")
	pageHTML, finalURL, err = o.d.Fetcher.Page(ctx, req.URL)
	if err != nil {
		return "", "", err
	}
	o.d.Machine.Progress(10, "page ready")
	return pageHTML, finalURL, nil
}

// translateStage applies the §4.5 downgrade contract: authentication failures
// abort the job, anything else logs and continues untranslated.
func (o *Orchestrator) translateStage(ctx context.Context, res *entity.ClipResult, req entity.ClipRequest) error {
	started := time.Now()
	defer func() {
		o.d.Metrics.ObserveStageDuration(string(constants.StageTranslating), time.Since(started))
	}()

	err := o.d.Translator.Translate(ctx, res, translate.Options{
		Target:          req.Language,
		TranslateImages: req.TranslateImages,
		OnBatch: func(done, total int) {
			o.d.Machine.Progress(70+done*15/total, fmt.Sprintf("translating %d/%d", done, total))
		},
	})
	if err == nil {
		o.d.Metrics.IncLLMCall(metrics.CallTranslation, true)
		return nil
	}
	o.d.Metrics.IncLLMCall(metrics.CallTranslation, false)

	if llm.IsAuth(err) || ctx.Err() != nil {
		return err
	}
	o.log.Warn("pipeline.translate.downgraded", "target", req.Language, "error", err)
	return nil
}

// summarize is best-effort: a failed abstract never fails the job.
func (o *Orchestrator) summarize(ctx context.Context, res *entity.ClipResult) {
	o.d.Machine.Progress(85, "summarizing")
	summary, err := o.d.Summarizer.Summarize(ctx, res)
	if err != nil {
		o.d.Metrics.IncLLMCall(metrics.CallSummary, false)
		o.log.Warn("pipeline.summary.skipped", "error", err)
		return
	}
	o.d.Metrics.IncLLMCall(metrics.CallSummary, true)
	res.Summary = summary
}

// embedAssets lists the formats that package images into the artifact and so
// want them pre-fetched.
var embedAssets = map[constants.OutputFormat]bool{
	constants.FormatEPUB: true,
	constants.FormatFB2:  true,
}

func (o *Orchestrator) generateStage(ctx context.Context, req entity.ClipRequest, res *entity.ClipResult, sourceURL string) error {
	started := time.Now()
	defer func() {
		o.d.Metrics.ObserveStageDuration(string(constants.StageGenerating), time.Since(started))
	}()

	gen, err := o.d.Registry.Get(req.Format)
	if err != nil {
		return err
	}

	var assets map[string]generate.Asset
	if embedAssets[req.Format] {
		assets = o.fetchAssets(ctx, res)
	}

	path, err := gen.Generate(ctx, generate.Request{
		Result:    res,
		SourceURL: sourceURL,
		OutputDir: o.cfg.OutputDir,
		Assets:    assets,
		OnProgress: func(pct int) {
			o.d.Machine.Progress(85+pct*15/100, "generating document")
		},
	})
	if err != nil {
		return err
	}
	res.ArtifactPath = path
	o.d.Metrics.IncArtifact(string(req.Format))
	o.log.Info("pipeline.generate.ok", "format", req.Format, "path", path)
	return nil
}

// fetchAssets downloads the images referenced by the result. Failures skip
// the asset; the generators degrade per format.
func (o *Orchestrator) fetchAssets(ctx context.Context, res *entity.ClipResult) map[string]generate.Asset {
	assets := make(map[string]generate.Asset)
	for _, item := range res.Items {
		if item.Kind != entity.KindImage || item.Src == "" {
			continue
		}
		if _, done := assets[item.Src]; done {
			continue
		}
		if ctx.Err() != nil {
			return assets
		}
		data, contentType, err := o.d.Fetcher.Binary(ctx, item.Src)
		if err != nil {
			o.log.Warn("pipeline.asset_skip", "src", item.Src, "error", err)
			continue
		}
		assets[item.Src] = generate.Asset{ContentType: contentType, Data: data}
	}
	return assets
}

// appendHistory persists the per-job stats row. Storage trouble is a log
// line; the job outcome is already decided.
func (o *Orchestrator) appendHistory(final entity.Job) {
	rec := entity.HistoryRecord{
		JobID:      final.ID,
		URL:        final.Request.URL,
		Format:     final.Request.Format,
		Mode:       final.Request.Mode,
		Outcome:    final.Stage,
		StartedAt:  final.StartedAt,
		FinishedAt: final.LastUpdate,
		Duration:   final.LastUpdate.Sub(final.StartedAt),
	}
	if final.Error != nil {
		rec.ErrorCode = final.Error.Code
	}
	if final.Result != nil {
		rec.Title = final.Result.Title
		rec.ItemCount = len(final.Result.Items)
		rec.ChunkCount = final.Result.ChunkCount
		rec.Artifact = final.Result.ArtifactPath
		rec.Translated = final.Request.Language != "" && final.Result.Language == final.Request.Language
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	if err := o.d.History.Append(ctx, rec); err != nil {
		o.log.Warn("pipeline.history_write_failed", "job_id", final.ID, "error", err)
	}
}
