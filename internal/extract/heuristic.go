package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/webclip-dev/webclip/internal/common"
	"github.com/webclip-dev/webclip/internal/entity"
)

// candidateSelectors are tried in order before falling back to scoring every
// div and section on the page.
var candidateSelectors = []string{
	"article",
	"main",
	`[role="main"]`,
	"#content",
	"#main-content",
	".post-content",
	".article-body",
	".entry-content",
	".article-content",
	".content",
}

// noiseSelectors are pruned from the winning candidate before mapping. The
// walker already skips nav/header/footer elements; these catch the
// class-based equivalents.
var noiseSelectors = []string{
	`[class*="comment"]`,
	`[id*="comment"]`,
	`[class*="related"]`,
	`[class*="share"]`,
	`[class*="social"]`,
	`[class*="newsletter"]`,
	`[class*="promo"]`,
	`[class*="sidebar"]`,
}

// minArticleChars is the least text a candidate must carry to count as an
// article body.
const minArticleChars = 250

// HeuristicExtractor finds the main content without selectors or AI: it
// scores candidate containers by text mass, paragraph count, and link
// density, then maps the winner.
type HeuristicExtractor struct {
	log *slog.Logger
}

func NewHeuristicExtractor(logger *slog.Logger) *HeuristicExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeuristicExtractor{log: logger}
}

func (e *HeuristicExtractor) Extract(ctx context.Context, pageHTML, pageURL string) (*entity.ClipResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, &common.ExtractionError{Reason: "unparseable html", Cause: err}
	}

	winner, score := pickCandidate(doc)
	if winner == nil {
		return nil, &common.ExtractionError{
			Reason: "no candidate container carries enough article text",
			Cause:  common.ErrNoContent,
		}
	}

	for _, noise := range noiseSelectors {
		winner.Find(noise).Remove()
	}

	w := newWalker(pageURL)
	items := w.blocks(winner)
	if len(items) == 0 {
		return nil, &common.ExtractionError{
			Reason: "heuristic container produced no content items",
			Cause:  common.ErrNoContent,
		}
	}

	result := buildResult(doc, pageURL, items)
	e.log.Info("extract.heuristic_ok",
		"url", pageURL,
		"container", goquery.NodeName(winner),
		"score", int(score),
		"items", len(result.Items),
	)
	return result, nil
}

// pickCandidate returns the best-scoring container, shrunk to the tightest
// child that still holds the bulk of the content.
func pickCandidate(doc *goquery.Document) (*goquery.Selection, float64) {
	var best *goquery.Selection
	var bestScore float64

	consider := func(s *goquery.Selection) {
		if sc := scoreCandidate(s); sc > bestScore {
			best = s
			bestScore = sc
		}
	}

	for _, sel := range candidateSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			consider(s)
		})
		if best != nil {
			break
		}
	}
	if best == nil {
		doc.Find("div,section").Each(func(_ int, s *goquery.Selection) {
			consider(s)
		})
	}
	if best == nil {
		return nil, 0
	}

	// descend while a single child carries essentially the whole score; that
	// child is the tighter article body
	for {
		var tighter *goquery.Selection
		best.Children().Each(func(_ int, child *goquery.Selection) {
			if tighter != nil {
				return
			}
			if scoreCandidate(child) >= bestScore*0.9 {
				tighter = child
			}
		})
		if tighter == nil {
			break
		}
		best = tighter
		bestScore = scoreCandidate(best)
	}
	return best, bestScore
}

// scoreCandidate rewards text mass and paragraph structure, and punishes
// link-heavy subtrees (navigation, tag clouds, related-article lists).
func scoreCandidate(s *goquery.Selection) float64 {
	text := len(cleanText(s.Text()))
	if text < minArticleChars {
		return 0
	}
	linkText := len(cleanText(s.Find("a").Text()))
	paragraphs := s.Find("p").Length()

	linkDensity := float64(linkText) / float64(text)
	if linkDensity > 0.8 {
		// a directory, tag cloud, or nav block, whatever it calls itself
		return 0
	}
	score := float64(text-linkText) + 30*float64(paragraphs)
	if linkDensity > 0.5 {
		score /= 2
	}
	return score
}
