package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/webclip-dev/webclip/internal/common"
	"github.com/webclip-dev/webclip/internal/entity"
	"github.com/webclip-dev/webclip/internal/llm"
	"github.com/webclip-dev/webclip/internal/retry"
)

// Config tunes translation batching.
type Config struct {
	// BatchSize caps how many segments one model call carries.
	BatchSize   int
	CallTimeout time.Duration // per model call, inside the retry loop
}

// Translator rewrites a clip result into a target language. Text is gathered
// into numbered batches so one model call covers many segments and positional
// alignment survives the round trip; the response schema pins the exact count.
type Translator struct {
	provider llm.Provider
	policy   retry.Policy
	cfg      Config
	log      *slog.Logger
}

func NewTranslator(provider llm.Provider, policy retry.Policy, cfg Config, logger *slog.Logger) *Translator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 40
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{
		provider: provider,
		policy:   policy,
		cfg:      cfg,
		log:      logger,
	}
}

// ValidateTag parses a BCP 47 language tag and returns its canonical form.
func ValidateTag(tag string) (string, error) {
	trimmed := strings.TrimSpace(tag)
	if trimmed == "" {
		return "", common.NewAppError(common.CodeInvalidRequest, "target language is empty", nil)
	}
	parsed, err := language.Parse(trimmed)
	if err != nil {
		return "", common.NewAppError(common.CodeInvalidRequest, fmt.Sprintf("invalid language tag %q", tag), err)
	}
	return parsed.String(), nil
}

// Options selects what gets translated in one Translate call.
type Options struct {
	// Target is a BCP 47 tag; it is re-validated here.
	Target string
	// TranslateImages extends translation to image alt text and captions.
	// That pass is best-effort: only auth failures propagate.
	TranslateImages bool
	// OnBatch, when non-nil, observes progress after each content batch.
	OnBatch func(done, total int)
}

// segment pairs one translatable string with the write-back for its result.
type segment struct {
	text  string
	apply func(string)
}

// Translate rewrites res in place and stamps res.Language with the canonical
// target tag. Code blocks, URLs, and structural items are left alone. A failed
// content batch aborts with the classified error; the caller decides whether
// that is fatal.
func (t *Translator) Translate(ctx context.Context, res *entity.ClipResult, opts Options) error {
	target, err := ValidateTag(opts.Target)
	if err != nil {
		return err
	}

	segs := contentSegments(res)
	if len(segs) == 0 {
		res.Language = target
		return nil
	}

	start := time.Now()
	t.log.Info("translate.start",
		"target", target,
		"segments", len(segs),
		"batch_size", t.cfg.BatchSize,
	)

	if err := t.runBatches(ctx, segs, target, opts.OnBatch); err != nil {
		return fmt.Errorf("translate content: %w", err)
	}

	if opts.TranslateImages {
		if imgSegs := imageSegments(res); len(imgSegs) > 0 {
			if err := t.runBatches(ctx, imgSegs, target, nil); err != nil {
				if llm.IsAuth(err) {
					return fmt.Errorf("translate images: %w", err)
				}
				t.log.Warn("translate.images_failed", "error", err)
			}
		}
	}

	res.Language = target
	t.log.Info("translate.ok",
		"target", target,
		"segments", len(segs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// contentSegments walks the result in order and collects every translatable
// string with its write-back. The document title leads so it lands in the
// first batch alongside the opening content.
func contentSegments(res *entity.ClipResult) []segment {
	var segs []segment
	add := func(text string, apply func(string)) {
		if strings.TrimSpace(text) == "" {
			return
		}
		segs = append(segs, segment{text: text, apply: apply})
	}

	add(res.Title, func(s string) { res.Title = s })

	for i := range res.Items {
		it := &res.Items[i]
		switch it.Kind {
		case entity.KindHeading:
			add(it.Text, func(s string) { it.Text = s })
		case entity.KindSubtitle:
			src := it.HTML
			if src == "" {
				src = it.Text
			}
			add(src, func(s string) {
				it.HTML = s
				it.Text = entity.StripTags(s)
			})
		case entity.KindParagraph, entity.KindQuote:
			add(it.HTML, func(s string) { it.HTML = s })
		case entity.KindList:
			for j := range it.Items {
				add(it.Items[j], func(s string) { it.Items[j] = s })
			}
		case entity.KindTable:
			for j := range it.Headers {
				add(it.Headers[j], func(s string) { it.Headers[j] = s })
			}
			for r := range it.Rows {
				for c := range it.Rows[r] {
					add(it.Rows[r][c], func(s string) { it.Rows[r][c] = s })
				}
			}
		case entity.KindInfoboxStart:
			add(it.Title, func(s string) { it.Title = s })
		}
		// code, image, separator, infobox_end: nothing to translate here
	}
	return segs
}

// imageSegments collects image alt text and captions for the optional pass.
func imageSegments(res *entity.ClipResult) []segment {
	var segs []segment
	for i := range res.Items {
		it := &res.Items[i]
		if it.Kind != entity.KindImage {
			continue
		}
		if strings.TrimSpace(it.Alt) != "" {
			segs = append(segs, segment{text: it.Alt, apply: func(s string) { it.Alt = s }})
		}
		if strings.TrimSpace(it.Caption) != "" {
			segs = append(segs, segment{text: it.Caption, apply: func(s string) { it.Caption = s }})
		}
	}
	return segs
}

func (t *Translator) runBatches(ctx context.Context, segs []segment, target string, onBatch func(done, total int)) error {
	total := (len(segs) + t.cfg.BatchSize - 1) / t.cfg.BatchSize
	for b := 0; b < total; b++ {
		lo := b * t.cfg.BatchSize
		hi := min(lo+t.cfg.BatchSize, len(segs))
		batch := segs[lo:hi]

		texts := make([]string, len(batch))
		for i, s := range batch {
			texts[i] = s.text
		}

		translated, err := t.translateBatch(ctx, texts, target, b+1, total)
		if err != nil {
			return err
		}
		for i, s := range batch {
			// an empty translation would erase content; keep the original
			if out := strings.TrimSpace(translated[i]); out != "" {
				s.apply(out)
			}
		}
		if onBatch != nil {
			onBatch(b+1, total)
		}
	}
	return nil
}

func (t *Translator) translateBatch(ctx context.Context, texts []string, target string, index, total int) ([]string, error) {
	schema := llm.BuildTranslationJSONSchema(len(texts))
	req := llm.Request{
		System:    llm.BuildTranslationSystemPrompt(target, len(texts)) + "\n\nJSON Schema:\n" + mustJSON(schema),
		User:      llm.BuildTranslationUserPrompt(texts),
		ForceJSON: true,
	}

	name := fmt.Sprintf("translate batch %d/%d", index, total)
	payload, err := retry.Do(ctx, t.policy, t.log, name, func(ctx context.Context) (llm.TranslationPayload, error) {
		callCtx, cancel := context.WithTimeout(ctx, t.cfg.CallTimeout)
		defer cancel()

		raw, err := t.provider.Complete(callCtx, req)
		if err != nil {
			return llm.TranslationPayload{}, err
		}
		return llm.ParseJSON[llm.TranslationPayload](schema, raw)
	})
	if err != nil {
		return nil, err
	}
	return payload.Translations, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
