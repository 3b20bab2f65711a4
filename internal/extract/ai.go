package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/webclip-dev/webclip/internal/chunk"
	"github.com/webclip-dev/webclip/internal/common"
	"github.com/webclip-dev/webclip/internal/entity"
	"github.com/webclip-dev/webclip/internal/llm"
	"github.com/webclip-dev/webclip/internal/retry"
)

// inferHTMLLimit bounds how much page markup a selector-inference call sees.
const inferHTMLLimit = 40000

// AIConfig tunes the model-driven extraction path.
type AIConfig struct {
	Split       chunk.SplitOptions
	CallTimeout time.Duration // per model call, inside the retry loop
}

// AIExtractor converts pages through the model: big pages are chunked, each
// chunk extracted in order, and the partial results reconciled. It also runs
// selector inference for sites the cache has not learned yet.
type AIExtractor struct {
	provider llm.Provider
	policy   retry.Policy
	cfg      AIConfig
	log      *slog.Logger
}

func NewAIExtractor(provider llm.Provider, policy retry.Policy, cfg AIConfig, logger *slog.Logger) *AIExtractor {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AIExtractor{
		provider: provider,
		policy:   policy,
		cfg:      cfg,
		log:      logger,
	}
}

// Extract runs the chunked extraction. onChunk, when non-nil, observes
// progress after each chunk lands; chunks are processed sequentially because
// reconciliation depends on order and providers on politeness.
func (e *AIExtractor) Extract(ctx context.Context, pageHTML, pageURL string, onChunk func(done, total int)) (*entity.ClipResult, error) {
	prepared := PrepareHTML(pageHTML)
	chunks := chunk.Split(prepared, e.cfg.Split)
	if len(chunks) == 0 {
		return nil, &common.ExtractionError{Reason: "page is empty after preparation", Cause: common.ErrNoContent}
	}

	e.log.Info("extract.ai.start",
		"url", pageURL,
		"prepared_bytes", len(prepared),
		"chunks", len(chunks),
	)

	schema := llm.BuildExtractionJSONSchema()
	parts := make([]*entity.ClipResult, 0, len(chunks))
	for _, c := range chunks {
		payload, err := e.extractChunk(ctx, schema, pageURL, c, len(chunks))
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", c.Index+1, len(chunks), err)
		}
		parts = append(parts, payloadResult(payload))
		if onChunk != nil {
			onChunk(c.Index+1, len(chunks))
		}
	}

	merged := chunk.Reconcile(parts)
	if merged == nil || len(merged.Items) == 0 {
		return nil, &common.ExtractionError{Reason: "model returned no content items", Cause: common.ErrNoContent}
	}

	e.log.Info("extract.ai.ok",
		"url", pageURL,
		"chunks", len(chunks),
		"items", len(merged.Items),
	)
	return merged, nil
}

func (e *AIExtractor) extractChunk(ctx context.Context, schema map[string]any, pageURL string, c chunk.Chunk, total int) (llm.ExtractionPayload, error) {
	req := llm.Request{
		System:    llm.BuildExtractionSystemPrompt() + "\n\nJSON Schema:\n" + mustJSON(schema),
		User:      llm.BuildExtractionUserPrompt(pageURL, c.Text, c.Index, total),
		ForceJSON: true,
	}

	name := fmt.Sprintf("extract chunk %d/%d", c.Index+1, total)
	return retry.Do(ctx, e.policy, e.log, name, func(ctx context.Context) (llm.ExtractionPayload, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()

		raw, err := e.provider.Complete(callCtx, req)
		if err != nil {
			return llm.ExtractionPayload{}, err
		}

		payload, err := llm.ParseJSON[llm.ExtractionPayload](schema, raw)
		if err == nil {
			return payload, nil
		}
		// lenient pass: drop what the model invented and validate again
		cleaned, _, sErr := llm.SanitizeExtraction(raw, e.log)
		if sErr != nil {
			return llm.ExtractionPayload{}, fmt.Errorf("model returned invalid JSON: %w", err)
		}
		payload, vErr := llm.ParseJSON[llm.ExtractionPayload](schema, cleaned)
		if vErr != nil {
			return llm.ExtractionPayload{}, fmt.Errorf("schema validation failed: %w", vErr)
		}
		return payload, nil
	})
}

// InferSelectors asks the model for a reusable SelectorSet for this site.
func (e *AIExtractor) InferSelectors(ctx context.Context, pageHTML, pageURL string) (entity.SelectorSet, error) {
	schema := llm.BuildSelectorJSONSchema()
	req := llm.Request{
		System:    llm.BuildSelectorSystemPrompt() + "\n\nJSON Schema:\n" + mustJSON(schema),
		User:      llm.BuildSelectorUserPrompt(pageURL, PrepareHTML(pageHTML), inferHTMLLimit),
		ForceJSON: true,
	}

	set, err := retry.Do(ctx, e.policy, e.log, "infer selectors", func(ctx context.Context) (entity.SelectorSet, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()

		raw, err := e.provider.Complete(callCtx, req)
		if err != nil {
			return entity.SelectorSet{}, err
		}
		return llm.ParseJSON[entity.SelectorSet](schema, raw)
	})
	if err != nil {
		return entity.SelectorSet{}, fmt.Errorf("infer selectors: %w", err)
	}
	if set.Empty() {
		return entity.SelectorSet{}, &common.ExtractionError{Reason: "inference returned no container selector"}
	}

	e.log.Info("extract.infer_ok",
		"url", pageURL,
		"container", set.Container,
		"excludes", len(set.Exclude),
	)
	return set, nil
}

func payloadResult(p llm.ExtractionPayload) *entity.ClipResult {
	return &entity.ClipResult{
		Title:       p.Title,
		Author:      p.Author,
		PublishedAt: p.PublishedAt,
		SiteName:    p.SiteName,
		Language:    p.Language,
		Items:       p.Items,
	}
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
