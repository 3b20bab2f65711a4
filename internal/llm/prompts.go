package llm

import (
	"fmt"
	"strings"
)

// Prompt builders for the three structured calls (selector inference, chunk
// extraction, translation) plus the free-text summary call. Each structured
// prompt tells the model to return ONLY JSON; the matching schema is appended
// by the client as a trailing system message.

// BuildSelectorSystemPrompt instructs a selector-inference call.
func BuildSelectorSystemPrompt() string {
	parts := []string{
		"You are a web scraping analyst. Given the HTML of an article page, identify CSS selectors that isolate the main article content.",
		"'container' must select exactly one element wrapping the full article body.",
		"'content_selector' optionally narrows to the text column inside the container.",
		"'exclude_list' holds selectors, relative to the container, for navigation, ads, share bars, related-article widgets, newsletter forms, and comments.",
		"'title', 'author', 'subtitle', and 'hero_image' are page-level selectors; omit any you cannot find.",
		"Prefer stable ids and semantic class names over positional selectors like nth-child.",
		"Never output null. If a field is not present, omit it.",
		"Return ONLY JSON that matches the provided schema.",
	}
	return strings.Join(parts, " ")
}

// BuildSelectorUserPrompt carries the page URL and a bounded slice of its HTML.
func BuildSelectorUserPrompt(pageURL, html string, limit int) string {
	if limit <= 0 {
		limit = 40000
	}
	var b strings.Builder
	b.WriteString("Page URL: ")
	b.WriteString(pageURL)
	fmt.Fprintf(&b, "\n\nHTML (first ~%dk chars):\n", limit/1000)
	if len(html) > limit {
		b.WriteString(html[:limit])
		b.WriteString("\n...(truncated)")
	} else {
		b.WriteString(html)
	}
	return b.String()
}

// BuildExtractionSystemPrompt instructs a chunk-extraction call.
func BuildExtractionSystemPrompt() string {
	parts := []string{
		"You are a web article extraction engine. Convert the supplied HTML fragment into an ordered list of content items.",
		"Item kinds: heading (level 1-6, text), paragraph (html), image (src, alt, caption), list (ordered, items), quote (html), table (headers, rows), code (language, text), separator, subtitle (text, html), infobox_start (title), infobox_end.",
		"Preserve document order exactly. Do not invent, reorder, or summarize content.",
		"Skip navigation, advertising, scripts, share widgets, and comment sections.",
		"In 'html' fields keep only inline markup: b, i, em, strong, a, code, sub, sup. Drop everything else but keep the text.",
		"Fill title, author, published_at (YYYY-MM-DD), site_name, and language (BCP 47, e.g. 'en' or 'de') only when visible in THIS fragment; otherwise omit them.",
		"The fragment may start or end mid-element; emit the partial content you can see.",
		"Never output null. If a field is not present, omit it.",
		"Return ONLY JSON that matches the provided schema.",
	}
	return strings.Join(parts, " ")
}

// BuildExtractionUserPrompt frames one chunk of page HTML.
func BuildExtractionUserPrompt(pageURL, fragment string, index, total int) string {
	var b strings.Builder
	b.WriteString("Page URL: ")
	b.WriteString(pageURL)
	fmt.Fprintf(&b, "\nFragment %d of %d.\n\nHTML fragment:\n", index+1, total)
	b.WriteString(fragment)
	return b.String()
}

// BuildTranslationSystemPrompt instructs a translation batch call.
func BuildTranslationSystemPrompt(targetLanguage string, count int) string {
	parts := []string{
		"You are a professional translator.",
		fmt.Sprintf("Translate each numbered segment into %s.", targetLanguage),
		fmt.Sprintf("Return ONLY JSON with a 'translations' array of exactly %d strings, one per segment, in the same order.", count),
		"Preserve inline HTML tags and attributes untouched; translate only human-readable text.",
		"Keep code fragments, URLs, and proper nouns as they are unless convention says otherwise.",
	}
	return strings.Join(parts, " ")
}

// BuildTranslationUserPrompt numbers the segments so alignment survives.
func BuildTranslationUserPrompt(segments []string) string {
	var b strings.Builder
	for i, s := range segments {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d] %s", i, s)
	}
	return b.String()
}

// BuildSummarySystemPrompt instructs the free-text abstract call. This is the
// one call that does not return JSON.
func BuildSummarySystemPrompt() string {
	parts := []string{
		"You are an editorial assistant. Write a 2-4 sentence abstract of the supplied article.",
		"Write in the article's own language. Plain text only: no markdown, no headings, no lists.",
		"Cover what the article is about and its main conclusion. Do not editorialize.",
	}
	return strings.Join(parts, " ")
}

// BuildSummaryUserPrompt carries a bounded slice of the article's plain text.
func BuildSummaryUserPrompt(title, text string, limit int) string {
	if limit <= 0 {
		limit = 24000
	}
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(title)
	fmt.Fprintf(&b, "\n\nArticle text (first ~%dk chars):\n", limit/1000)
	if len(text) > limit {
		b.WriteString(text[:limit])
		b.WriteString("\n...(truncated)")
	} else {
		b.WriteString(text)
	}
	return b.String()
}
