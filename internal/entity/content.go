package entity

import "fmt"

// ContentKind discriminates the closed set of content item variants.
type ContentKind string

const (
	KindHeading      ContentKind = "heading"
	KindParagraph    ContentKind = "paragraph"
	KindImage        ContentKind = "image"
	KindList         ContentKind = "list"
	KindQuote        ContentKind = "quote"
	KindTable        ContentKind = "table"
	KindCode         ContentKind = "code"
	KindSeparator    ContentKind = "separator"
	KindSubtitle     ContentKind = "subtitle"
	KindInfoboxStart ContentKind = "infobox_start"
	KindInfoboxEnd   ContentKind = "infobox_end"
)

// ContentItem is one block of extracted page content. Kind selects the
// variant; only the fields belonging to that variant are populated. Order
// within a result is significant.
type ContentItem struct {
	Kind ContentKind `json:"kind"`
	ID   string      `json:"id,omitempty"`

	// heading, subtitle, code
	Text string `json:"text,omitempty"`
	// heading level 1..6
	Level int `json:"level,omitempty"`
	// paragraph, quote, subtitle: sanitized inline HTML
	HTML string `json:"html,omitempty"`

	// image
	Src     string `json:"src,omitempty"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`

	// list
	Ordered bool     `json:"ordered,omitempty"`
	Items   []string `json:"items,omitempty"`

	// table
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`

	// code
	Language string `json:"language,omitempty"`

	// infobox_start
	Title string `json:"title,omitempty"`
}

func Heading(level int, text string) ContentItem {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return ContentItem{Kind: KindHeading, Level: level, Text: text}
}

func Paragraph(html string) ContentItem {
	return ContentItem{Kind: KindParagraph, HTML: html}
}

func Image(src, alt, caption string) ContentItem {
	return ContentItem{Kind: KindImage, Src: src, Alt: alt, Caption: caption}
}

func List(ordered bool, items []string) ContentItem {
	return ContentItem{Kind: KindList, Ordered: ordered, Items: items}
}

func Quote(html string) ContentItem {
	return ContentItem{Kind: KindQuote, HTML: html}
}

func Table(headers []string, rows [][]string) ContentItem {
	return ContentItem{Kind: KindTable, Headers: headers, Rows: rows}
}

func Code(language, text string) ContentItem {
	return ContentItem{Kind: KindCode, Language: language, Text: text}
}

func Separator() ContentItem {
	return ContentItem{Kind: KindSeparator}
}

func Subtitle(text, html string) ContentItem {
	return ContentItem{Kind: KindSubtitle, Text: text, HTML: html}
}

func InfoboxStart(title string) ContentItem {
	return ContentItem{Kind: KindInfoboxStart, Title: title}
}

func InfoboxEnd() ContentItem {
	return ContentItem{Kind: KindInfoboxEnd}
}

var contentKinds = map[ContentKind]struct{}{
	KindHeading:      {},
	KindParagraph:    {},
	KindImage:        {},
	KindList:         {},
	KindQuote:        {},
	KindTable:        {},
	KindCode:         {},
	KindSeparator:    {},
	KindSubtitle:     {},
	KindInfoboxStart: {},
	KindInfoboxEnd:   {},
}

// KnownKind reports whether k belongs to the closed variant set.
func KnownKind(k ContentKind) bool {
	_, ok := contentKinds[k]
	return ok
}

// Validate enforces the closed variant set and per-variant requirements.
func (i ContentItem) Validate() error {
	if !KnownKind(i.Kind) {
		return fmt.Errorf("unknown content kind %q", i.Kind)
	}
	switch i.Kind {
	case KindHeading:
		if i.Level < 1 || i.Level > 6 {
			return fmt.Errorf("heading level %d out of range", i.Level)
		}
		if i.Text == "" {
			return fmt.Errorf("heading requires text")
		}
	case KindImage:
		if i.Src == "" {
			return fmt.Errorf("image requires src")
		}
	case KindList:
		if len(i.Items) == 0 {
			return fmt.Errorf("list requires items")
		}
	case KindTable:
		if len(i.Headers) == 0 && len(i.Rows) == 0 {
			return fmt.Errorf("table requires headers or rows")
		}
	}
	return nil
}

// PlainText returns the item's text content stripped of markup intent, for
// summaries and audio scripts. Images and separators contribute nothing.
func (i ContentItem) PlainText() string {
	switch i.Kind {
	case KindHeading, KindCode, KindSubtitle:
		return i.Text
	case KindParagraph, KindQuote:
		return StripTags(i.HTML)
	case KindList:
		out := ""
		for idx, li := range i.Items {
			if idx > 0 {
				out += "\n"
			}
			out += StripTags(li)
		}
		return out
	case KindInfoboxStart:
		return i.Title
	}
	return ""
}
