package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/webclip-dev/webclip/internal/entity"
	"github.com/webclip-dev/webclip/internal/llm"
)

// summarySourceLimit bounds how much article text a summary call sees.
const summarySourceLimit = 24000

// Summarizer produces a short abstract of a clip result. One plain-text model
// call, no retries; the pipeline treats a failed summary as a degradation, not
// a job failure.
type Summarizer struct {
	provider llm.Provider
	timeout  time.Duration
	log      *slog.Logger
}

func NewSummarizer(provider llm.Provider, timeout time.Duration, logger *slog.Logger) *Summarizer {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		provider: provider,
		timeout:  timeout,
		log:      logger,
	}
}

// Summarize returns a 2-4 sentence abstract in the article's own language.
func (s *Summarizer) Summarize(ctx context.Context, res *entity.ClipResult) (string, error) {
	text := sourceText(res)
	if text == "" {
		return "", fmt.Errorf("summarize: result has no text content")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	raw, err := s.provider.Complete(callCtx, llm.Request{
		System:    llm.BuildSummarySystemPrompt(),
		User:      llm.BuildSummaryUserPrompt(res.Title, text, summarySourceLimit),
		MaxTokens: 300,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}

	summary := strings.TrimSpace(string(raw))
	if summary == "" {
		return "", fmt.Errorf("summarize: model returned an empty abstract")
	}

	s.log.Info("translate.summary_ok",
		"chars", len(summary),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return summary, nil
}

// sourceText flattens the result into the plain text the summary prompt reads.
func sourceText(res *entity.ClipResult) string {
	var b strings.Builder
	for _, item := range res.Items {
		if b.Len() >= summarySourceLimit {
			break
		}
		if t := item.PlainText(); t != "" {
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(t)
		}
	}
	return strings.TrimSpace(b.String())
}
