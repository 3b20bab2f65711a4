package extract

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// pageMeta is what the page itself says about the article, before any
// selector overrides.
type pageMeta struct {
	title     string
	author    string
	published string // YYYY-MM-DD
	siteName  string
	language  string
	heroImage string
}

// readMeta walks the usual metadata fallback chains: OpenGraph first, then
// conventional meta tags, then visible markup.
func readMeta(doc *goquery.Document, pageURL string) pageMeta {
	m := pageMeta{}

	m.title = firstOf(
		metaContent(doc, `meta[property="og:title"]`),
		cleanText(doc.Find("title").First().Text()),
		cleanText(doc.Find("h1").First().Text()),
	)
	m.author = firstOf(
		metaContent(doc, `meta[name="author"]`),
		metaContent(doc, `meta[property="article:author"]`),
		cleanText(doc.Find(`[rel="author"]`).First().Text()),
	)
	m.published = publishedDate(doc)
	m.siteName = firstOf(
		metaContent(doc, `meta[property="og:site_name"]`),
		hostOf(pageURL),
	)
	m.heroImage = metaContent(doc, `meta[property="og:image"]`)
	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		// keep the primary subtag; "en-US" and "en-GB" translate the same way
		m.language = strings.ToLower(strings.SplitN(strings.TrimSpace(lang), "-", 2)[0])
	}
	return m
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return cleanText(v)
}

func publishedDate(doc *goquery.Document) string {
	raw := firstOf(
		metaContent(doc, `meta[property="article:published_time"]`),
		metaContent(doc, `meta[name="date"]`),
	)
	if raw == "" {
		if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
			raw = strings.TrimSpace(dt)
		}
	}
	if raw == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	// already date-shaped but in an unknown layout; keep the first 10 chars
	// when they look like YYYY-MM-DD
	if len(raw) >= 10 && raw[4] == '-' && raw[7] == '-' {
		return raw[:10]
	}
	return ""
}

func hostOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
