package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/webclip-dev/webclip/internal/entity"
)

// skippedElements never contribute content regardless of where they appear.
var skippedElements = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {}, "template": {}, "iframe": {},
	"svg": {}, "form": {}, "button": {}, "input": {}, "select": {},
	"textarea": {}, "nav": {}, "header": {}, "footer": {},
}

// inlineKept is the inline markup allowed to survive inside paragraph-like
// html fields. Everything else is unwrapped to its text.
var inlineKept = map[string]struct{}{
	"b": {}, "i": {}, "em": {}, "strong": {}, "a": {}, "code": {},
	"sub": {}, "sup": {},
}

// walker maps a DOM subtree onto ordered content items. It carries the base
// URL so relative src/href attributes come out absolute.
type walker struct {
	base *url.URL
}

func newWalker(pageURL string) *walker {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}
	return &walker{base: base}
}

// blocks walks the element children of sel in document order.
func (w *walker) blocks(sel *goquery.Selection) []entity.ContentItem {
	var items []entity.ContentItem
	sel.Children().Each(func(_ int, child *goquery.Selection) {
		items = append(items, w.block(child)...)
	})
	return items
}

func (w *walker) block(s *goquery.Selection) []entity.ContentItem {
	name := goquery.NodeName(s)
	if _, skip := skippedElements[name]; skip {
		return nil
	}

	switch name {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		text := cleanText(s.Text())
		if text == "" {
			return nil
		}
		return []entity.ContentItem{entity.Heading(int(name[1]-'0'), text)}

	case "p":
		return w.paragraph(s)

	case "img":
		if item, ok := w.image(s, ""); ok {
			return []entity.ContentItem{item}
		}
		return nil

	case "figure":
		return w.figure(s)

	case "picture":
		if img := s.Find("img").First(); img.Length() > 0 {
			if item, ok := w.image(img, ""); ok {
				return []entity.ContentItem{item}
			}
		}
		return nil

	case "ul", "ol":
		return w.list(s, name == "ol")

	case "blockquote":
		if cleanText(s.Text()) == "" {
			return nil
		}
		return []entity.ContentItem{entity.Quote(w.inlineChildren(s))}

	case "pre":
		return w.code(s)

	case "hr":
		return []entity.ContentItem{entity.Separator()}

	case "table":
		return w.table(s)

	case "aside":
		return w.infobox(s)

	case "div", "section", "article", "main":
		return w.blocks(s)

	default:
		// unknown element: descend if it wraps blocks, otherwise keep its
		// visible text as a paragraph
		if s.Children().Length() > 0 {
			return w.blocks(s)
		}
		if text := cleanText(s.Text()); text != "" {
			return []entity.ContentItem{entity.Paragraph(w.inlineChildren(s))}
		}
		return nil
	}
}

func (w *walker) paragraph(s *goquery.Selection) []entity.ContentItem {
	if cleanText(s.Text()) == "" {
		// image-only paragraphs are images
		if img := s.Find("img").First(); img.Length() > 0 {
			if item, ok := w.image(img, ""); ok {
				return []entity.ContentItem{item}
			}
		}
		return nil
	}
	return []entity.ContentItem{entity.Paragraph(w.inlineChildren(s))}
}

func (w *walker) figure(s *goquery.Selection) []entity.ContentItem {
	img := s.Find("img").First()
	if img.Length() == 0 {
		return nil
	}
	caption := cleanText(s.Find("figcaption").First().Text())
	if item, ok := w.image(img, caption); ok {
		return []entity.ContentItem{item}
	}
	return nil
}

func (w *walker) image(s *goquery.Selection, caption string) (entity.ContentItem, bool) {
	src, _ := s.Attr("src")
	if src == "" {
		// lazy-loading sites park the real URL in a data attribute
		for _, attr := range []string{"data-src", "data-lazy-src", "data-original"} {
			if v, ok := s.Attr(attr); ok && v != "" {
				src = v
				break
			}
		}
	}
	if src == "" {
		if ss, ok := s.Attr("srcset"); ok {
			src = firstSrcset(ss)
		}
	}
	src = strings.TrimSpace(src)
	if src == "" || strings.HasPrefix(src, "data:") {
		return entity.ContentItem{}, false
	}
	alt, _ := s.Attr("alt")
	return entity.Image(w.resolve(src), cleanText(alt), caption), true
}

func (w *walker) list(s *goquery.Selection, ordered bool) []entity.ContentItem {
	var lis []string
	s.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		if cleanText(li.Text()) != "" {
			lis = append(lis, w.inlineChildren(li))
		}
	})
	if len(lis) == 0 {
		return nil
	}
	return []entity.ContentItem{entity.List(ordered, lis)}
}

func (w *walker) code(s *goquery.Selection) []entity.ContentItem {
	target := s
	lang := ""
	if code := s.Find("code").First(); code.Length() > 0 {
		target = code
		if cls, ok := code.Attr("class"); ok {
			for _, c := range strings.Fields(cls) {
				if rest, found := strings.CutPrefix(c, "language-"); found {
					lang = rest
					break
				}
				if rest, found := strings.CutPrefix(c, "lang-"); found {
					lang = rest
					break
				}
			}
		}
	}
	// indentation and newlines are the content here
	text := strings.TrimRight(target.Text(), "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []entity.ContentItem{entity.Code(lang, text)}
}

func (w *walker) table(s *goquery.Selection) []entity.ContentItem {
	var headers []string
	s.Find("thead tr").First().Find("th,td").Each(func(_ int, c *goquery.Selection) {
		headers = append(headers, cleanText(c.Text()))
	})

	var rows [][]string
	s.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.ParentsFiltered("thead").Length() > 0 {
			return
		}
		var cells []string
		tr.Find("th,td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, cleanText(td.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})

	// a headerless table whose first row is all <th> is really headed
	if len(headers) == 0 && len(rows) > 0 {
		first := s.Find("tr").First()
		if ths := first.Find("th").Length(); ths > 0 && ths == first.Find("th,td").Length() {
			headers = rows[0]
			rows = rows[1:]
		}
	}
	if len(headers) == 0 && len(rows) == 0 {
		return nil
	}
	return []entity.ContentItem{entity.Table(headers, rows)}
}

func (w *walker) infobox(s *goquery.Selection) []entity.ContentItem {
	if cleanText(s.Text()) == "" {
		return nil
	}
	title := ""
	if h := s.Find("h1,h2,h3,h4,h5,h6").First(); h.Length() > 0 {
		title = cleanText(h.Text())
		h.Remove()
	}
	inner := w.blocks(s)
	if len(inner) == 0 {
		if cleanText(s.Text()) == "" {
			return nil
		}
		inner = []entity.ContentItem{entity.Paragraph(w.inlineChildren(s))}
	}
	out := make([]entity.ContentItem, 0, len(inner)+2)
	out = append(out, entity.InfoboxStart(title))
	out = append(out, inner...)
	out = append(out, entity.InfoboxEnd())
	return out
}

// inlineChildren renders the children of sel's first node keeping only the
// allowed inline markup, with text re-escaped and URLs resolved.
func (w *walker) inlineChildren(sel *goquery.Selection) string {
	if len(sel.Nodes) == 0 {
		return ""
	}
	var b strings.Builder
	for c := sel.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
		w.inlineNode(c, &b)
	}
	return cleanText(b.String())
}

func (w *walker) inlineNode(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(html.EscapeString(n.Data))
	case html.ElementNode:
		if _, skip := skippedElements[n.Data]; skip {
			return
		}
		if n.Data == "br" {
			b.WriteString(" ")
			return
		}
		if _, keep := inlineKept[n.Data]; keep {
			b.WriteString("<")
			b.WriteString(n.Data)
			if n.Data == "a" {
				if href := nodeAttr(n, "href"); href != "" {
					b.WriteString(` href="`)
					b.WriteString(html.EscapeString(w.resolve(href)))
					b.WriteString(`"`)
				}
			}
			b.WriteString(">")
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				w.inlineNode(c, b)
			}
			b.WriteString("</")
			b.WriteString(n.Data)
			b.WriteString(">")
			return
		}
		// unwrap everything else
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.inlineNode(c, b)
		}
	}
}

func (w *walker) resolve(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || w.base == nil {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return w.base.ResolveReference(u).String()
}

func nodeAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// cleanText collapses whitespace runs into single spaces and trims the ends.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// firstSrcset pulls the URL out of the first srcset candidate.
func firstSrcset(srcset string) string {
	first := strings.SplitN(srcset, ",", 2)[0]
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
