package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/webclip-dev/webclip/internal/common"
	"github.com/webclip-dev/webclip/internal/entity"
)

// SelectorExtractor turns a page into content items by applying a known
// SelectorSet. Every failure is an *common.ExtractionError so callers can
// invalidate the selector cache that supplied the set.
type SelectorExtractor struct {
	log *slog.Logger
}

func NewSelectorExtractor(logger *slog.Logger) *SelectorExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SelectorExtractor{log: logger}
}

func (e *SelectorExtractor) Extract(ctx context.Context, pageHTML, pageURL string, set entity.SelectorSet) (*entity.ClipResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if set.Empty() {
		return nil, &common.ExtractionError{Reason: "selector set has no container"}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, &common.ExtractionError{Reason: "unparseable html", Cause: err}
	}

	container := doc.Find(set.Container).First()
	if container.Length() == 0 {
		return nil, &common.ExtractionError{
			Reason: fmt.Sprintf("container selector %q matched nothing", set.Container),
		}
	}

	content := container
	if set.Content != "" {
		if narrowed := container.Find(set.Content).First(); narrowed.Length() > 0 {
			content = narrowed
		}
	}

	// exclusions are removed before any mapping so excluded subtrees cannot
	// leak into adjacent items
	removed := 0
	for _, ex := range set.Exclude {
		if ex = strings.TrimSpace(ex); ex == "" {
			continue
		}
		matches := content.Find(ex)
		removed += matches.Length()
		matches.Remove()
	}

	w := newWalker(pageURL)
	items := w.blocks(content)
	if len(items) == 0 {
		return nil, &common.ExtractionError{
			Reason: "selectors produced no content items",
			Cause:  common.ErrNoContent,
		}
	}

	result := buildResult(doc, pageURL, items)
	applySelectorMeta(doc, w, set, result)

	e.log.Info("extract.selector_ok",
		"url", pageURL,
		"container", set.Container,
		"excluded_nodes", removed,
		"items", len(result.Items),
	)
	return result, nil
}

// buildResult pairs the walked items with the page's own metadata.
func buildResult(doc *goquery.Document, pageURL string, items []entity.ContentItem) *entity.ClipResult {
	meta := readMeta(doc, pageURL)
	return &entity.ClipResult{
		Title:       meta.title,
		Author:      meta.author,
		PublishedAt: meta.published,
		SiteName:    meta.siteName,
		Language:    meta.language,
		Items:       items,
	}
}

// applySelectorMeta lets the selector set override page metadata and prepends
// subtitle and hero image items when their selectors match.
func applySelectorMeta(doc *goquery.Document, w *walker, set entity.SelectorSet, result *entity.ClipResult) {
	if set.Title != "" {
		if t := cleanText(doc.Find(set.Title).First().Text()); t != "" {
			result.Title = t
		}
	}
	if set.Author != "" {
		if a := cleanText(doc.Find(set.Author).First().Text()); a != "" {
			result.Author = a
		}
	}

	var lead []entity.ContentItem
	if set.Subtitle != "" {
		if sub := doc.Find(set.Subtitle).First(); sub.Length() > 0 {
			if text := cleanText(sub.Text()); text != "" {
				lead = append(lead, entity.Subtitle(text, w.inlineChildren(sub)))
			}
		}
	}
	if set.HeroImage != "" {
		if img := doc.Find(set.HeroImage).First(); img.Length() > 0 {
			if item, ok := w.image(img, ""); ok && !hasImage(result.Items, item.Src) {
				lead = append(lead, item)
			}
		}
	}
	if len(lead) > 0 {
		result.Items = append(lead, result.Items...)
	}
}

func hasImage(items []entity.ContentItem, src string) bool {
	for _, it := range items {
		if it.Kind == entity.KindImage && it.Src == src {
			return true
		}
	}
	return false
}
