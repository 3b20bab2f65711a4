package generate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/webclip-dev/webclip/constants"
	"github.com/webclip-dev/webclip/internal/common"
	"github.com/webclip-dev/webclip/internal/entity"
)

// MarkdownGenerator renders a clip as a single CommonMark document. Images
// stay external references; markdown is the format people edit, not archive.
type MarkdownGenerator struct {
	log *slog.Logger
}

func NewMarkdownGenerator(logger *slog.Logger) *MarkdownGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarkdownGenerator{log: logger}
}

func (g *MarkdownGenerator) Format() constants.OutputFormat {
	return constants.FormatMarkdown
}

func (g *MarkdownGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	res := req.Result

	var b strings.Builder
	writeMarkdownHeader(&b, res, req.SourceURL)

	inInfobox := false
	total := len(res.Items)
	for i, item := range res.Items {
		block := renderMarkdownItem(item, &inInfobox)
		if block != "" {
			if inInfobox && item.Kind != entity.KindInfoboxStart {
				block = quotePrefix(block)
			}
			b.WriteString(block)
			b.WriteString("\n\n")
		}
		if req.OnProgress != nil && total > 0 {
			req.OnProgress((i + 1) * 100 / total)
		}
	}

	path := filepath.Join(req.OutputDir, artifactName(res.Title, ".md"))
	if err := writeArtifact(path, []byte(b.String())); err != nil {
		return "", err
	}

	g.log.Info("generate.markdown_ok", "path", path, "bytes", b.Len(), "items", total)
	return path, nil
}

func writeMarkdownHeader(b *strings.Builder, res *entity.ClipResult, sourceURL string) {
	title := res.Title
	if title == "" {
		title = "Untitled clip"
	}
	fmt.Fprintf(b, "# %s\n\n", escapeMarkdown(title))

	var byline []string
	if res.Author != "" {
		byline = append(byline, "by "+res.Author)
	}
	if res.SiteName != "" {
		byline = append(byline, res.SiteName)
	}
	if res.PublishedAt != "" {
		byline = append(byline, res.PublishedAt)
	}
	if len(byline) > 0 {
		fmt.Fprintf(b, "*%s*\n\n", escapeMarkdown(strings.Join(byline, " · ")))
	}
	if sourceURL != "" {
		fmt.Fprintf(b, "[Original](%s)\n\n", sourceURL)
	}
	if res.Summary != "" {
		b.WriteString(quotePrefix(escapeMarkdown(res.Summary)))
		b.WriteString("\n\n")
	}
	b.WriteString("---\n\n")
}

func renderMarkdownItem(item entity.ContentItem, inInfobox *bool) string {
	switch item.Kind {
	case entity.KindHeading:
		return strings.Repeat("#", item.Level) + " " + escapeMarkdown(item.Text)
	case entity.KindSubtitle:
		return "*" + escapeMarkdown(item.Text) + "*"
	case entity.KindParagraph:
		return inlineMarkdown(item.HTML)
	case entity.KindQuote:
		return quotePrefix(inlineMarkdown(item.HTML))
	case entity.KindImage:
		out := fmt.Sprintf("![%s](%s)", escapeMarkdown(item.Alt), item.Src)
		if item.Caption != "" {
			out += "\n*" + escapeMarkdown(item.Caption) + "*"
		}
		return out
	case entity.KindList:
		var lines []string
		for i, li := range item.Items {
			marker := "- "
			if item.Ordered {
				marker = fmt.Sprintf("%d. ", i+1)
			}
			lines = append(lines, marker+inlineMarkdown(li))
		}
		return strings.Join(lines, "\n")
	case entity.KindTable:
		return markdownTable(item)
	case entity.KindCode:
		return "```" + item.Language + "\n" + strings.TrimRight(item.Text, "\n") + "\n```"
	case entity.KindSeparator:
		return "---"
	case entity.KindInfoboxStart:
		*inInfobox = true
		title := item.Title
		if title == "" {
			title = "Info"
		}
		return "> **" + escapeMarkdown(title) + "**"
	case entity.KindInfoboxEnd:
		*inInfobox = false
		return ""
	}
	return ""
}

func markdownTable(item entity.ContentItem) string {
	cols := len(item.Headers)
	if cols == 0 && len(item.Rows) > 0 {
		cols = len(item.Rows[0])
	}
	if cols == 0 {
		return ""
	}

	cell := func(s string) string {
		s = strings.ReplaceAll(s, "\n", " ")
		return strings.ReplaceAll(s, "|", `\|`)
	}
	row := func(cells []string) string {
		padded := make([]string, cols)
		for i := 0; i < cols; i++ {
			if i < len(cells) {
				padded[i] = cell(cells[i])
			}
		}
		return "| " + strings.Join(padded, " | ") + " |"
	}

	var lines []string
	lines = append(lines, row(item.Headers))
	sep := make([]string, cols)
	for i := range sep {
		sep[i] = "---"
	}
	lines = append(lines, "| "+strings.Join(sep, " | ")+" |")
	for _, r := range item.Rows {
		lines = append(lines, row(r))
	}
	return strings.Join(lines, "\n")
}

// inlineMarkdown converts whitelisted inline HTML into markdown spans.
// Unparseable fragments degrade to their stripped text.
func inlineMarkdown(raw string) string {
	nodes, ok := parseInline(raw)
	if !ok {
		return escapeMarkdown(inlinePlain(raw))
	}
	var b strings.Builder
	for _, n := range nodes {
		markdownNode(&b, n)
	}
	return strings.TrimSpace(b.String())
}

func markdownNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(escapeMarkdown(n.Data))
		return
	case html.ElementNode:
	default:
		return
	}

	children := func() {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			markdownNode(b, c)
		}
	}

	switch n.Data {
	case "b", "strong":
		b.WriteString("**")
		children()
		b.WriteString("**")
	case "i", "em":
		b.WriteString("*")
		children()
		b.WriteString("*")
	case "code":
		b.WriteString("`")
		b.WriteString(strings.ReplaceAll(textOf(n), "`", "'"))
		b.WriteString("`")
	case "a":
		href := nodeAttr(n, "href")
		if href == "" {
			children()
			return
		}
		b.WriteString("[")
		children()
		b.WriteString("](")
		b.WriteString(href)
		b.WriteString(")")
	case "sub", "sup":
		// markdown has no notation for these; keep the tags inline
		b.WriteString("<" + n.Data + ">")
		children()
		b.WriteString("</" + n.Data + ">")
	default:
		children()
	}
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textOf(c))
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func quotePrefix(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}

// writeArtifact creates the parent directory and writes the file.
func writeArtifact(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return common.NewAppError(common.CodeGenerationFailed, "create output directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return common.NewAppError(common.CodeGenerationFailed, "write artifact", err)
	}
	return nil
}
