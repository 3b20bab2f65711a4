package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/webclip-dev/webclip/constants"
	"github.com/webclip-dev/webclip/internal/common"
	"github.com/webclip-dev/webclip/internal/entity"
	"github.com/webclip-dev/webclip/internal/llm"
	"github.com/webclip-dev/webclip/internal/metrics"
)

// acquire runs the content-acquisition strategy selected by the request mode.
// Every strategy returns the same shape; the caller cannot tell them apart.
func (o *Orchestrator) acquire(ctx context.Context, req entity.ClipRequest, pageHTML, pageURL string) (*entity.ClipResult, error) {
	started := time.Now()
	defer func() {
		o.d.Metrics.ObserveStageDuration(string(constants.StageExtracting), time.Since(started))
	}()

	o.d.Machine.Progress(15, "extracting content")

	var (
		res *entity.ClipResult
		err error
	)
	switch req.Mode {
	case constants.ModeHeuristic:
		res, err = o.d.Heuristic.Extract(ctx, pageHTML, pageURL)
	case constants.ModeAI:
		res, err = o.aiExtract(ctx, pageHTML, pageURL)
	case constants.ModeSelector:
		res, err = o.selectorAcquire(ctx, pageHTML, pageURL, false)
	default:
		res, err = o.selectorAcquire(ctx, pageHTML, pageURL, true)
	}
	if err != nil {
		return nil, err
	}

	o.log.Info("pipeline.extract.ok",
		"mode", req.Mode,
		"items", len(res.Items),
		"chunks", res.ChunkCount,
	)
	return res, nil
}

// selectorAcquire is the selector strategy: cached selectors first, inference
// on miss or after invalidation. With aiFallback (auto mode) any non-auth
// failure of the selector path falls back to chunked AI extraction.
func (o *Orchestrator) selectorAcquire(ctx context.Context, pageHTML, pageURL string, aiFallback bool) (*entity.ClipResult, error) {
	if entry := o.d.Cache.Lookup(ctx, pageURL); entry != nil {
		o.d.Metrics.IncSelectorCache(metrics.CacheHit)
		res, err := o.d.Selector.Extract(ctx, pageHTML, pageURL, entry.Selectors)
		if err == nil {
			o.d.Cache.MarkSuccess(ctx, pageURL)
			return res, nil
		}
		var exErr *common.ExtractionError
		if !errors.As(err, &exErr) {
			return nil, err
		}
		// the cached heuristic broke on this page; revoke it outright and
		// learn a fresh one
		o.d.Cache.Invalidate(ctx, pageURL)
		o.d.Metrics.IncSelectorCache(metrics.CacheInvalidate)
		o.log.Warn("pipeline.selectors.invalidated", "url", pageURL, "reason", exErr.Reason)
	} else {
		o.d.Metrics.IncSelectorCache(metrics.CacheMiss)
	}

	if err := o.d.Machine.CheckCancelled(); err != nil {
		return nil, err
	}

	res, err := o.inferAndExtract(ctx, pageHTML, pageURL)
	if err == nil {
		return res, nil
	}
	if llm.IsAuth(err) || ctx.Err() != nil || !aiFallback {
		return nil, err
	}

	o.log.Warn("pipeline.selectors.fallback_ai", "url", pageURL, "error", err)
	if cErr := o.d.Machine.CheckCancelled(); cErr != nil {
		return nil, cErr
	}
	return o.aiExtract(ctx, pageHTML, pageURL)
}

// inferAndExtract asks the model for a selector set and caches it only after
// it actually produced content on this page.
func (o *Orchestrator) inferAndExtract(ctx context.Context, pageHTML, pageURL string) (*entity.ClipResult, error) {
	o.d.Machine.Progress(25, "inferring selectors")

	set, err := o.d.AI.InferSelectors(ctx, pageHTML, pageURL)
	if err != nil {
		o.d.Metrics.IncLLMCall(metrics.CallSelectorInference, false)
		return nil, err
	}
	o.d.Metrics.IncLLMCall(metrics.CallSelectorInference, true)

	res, err := o.d.Selector.Extract(ctx, pageHTML, pageURL, set)
	if err != nil {
		return nil, err
	}
	o.d.Cache.Store(ctx, pageURL, set)
	o.d.Metrics.IncSelectorCache(metrics.CacheStore)
	return res, nil
}

// aiExtract is the chunked full-AI strategy; chunk progress feeds the job.
func (o *Orchestrator) aiExtract(ctx context.Context, pageHTML, pageURL string) (*entity.ClipResult, error) {
	res, err := o.d.AI.Extract(ctx, pageHTML, pageURL, func(done, total int) {
		o.d.Machine.Progress(10+done*60/total, fmt.Sprintf("extracting chunk %d/%d", done, total))
	})
	o.d.Metrics.IncLLMCall(metrics.CallExtraction, err == nil)
	return res, err
}
