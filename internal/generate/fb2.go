package generate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/webclip-dev/webclip/constants"
	"github.com/webclip-dev/webclip/internal/entity"
)

// FB2Generator renders a clip as a FictionBook 2.0 document. Pre-fetched
// images are embedded as base64 binaries; images without an asset degrade to
// an emphasized placeholder so the text flow survives.
type FB2Generator struct {
	log *slog.Logger
	now func() time.Time
}

func NewFB2Generator(logger *slog.Logger) *FB2Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FB2Generator{log: logger, now: time.Now}
}

func (g *FB2Generator) Format() constants.OutputFormat {
	return constants.FormatFB2
}

type fb2Binary struct {
	id          string
	contentType string
	data        []byte
}

func (g *FB2Generator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	res := req.Result

	ids, binaries := collectBinaries(res, req.Assets)

	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<FictionBook xmlns="http://www.gribuser.ru/xml/fictionbook/2.0" xmlns:l="http://www.w3.org/1999/xlink">` + "\n")

	g.writeDescription(&b, res, req.SourceURL)

	b.WriteString("<body>\n")
	title := res.Title
	if title == "" {
		title = "Untitled clip"
	}
	fmt.Fprintf(&b, "<title><p>%s</p></title>\n", xmlEscape(title))
	b.WriteString("<section>\n")
	total := len(res.Items)
	for i, item := range res.Items {
		writeFB2Item(&b, item, ids)
		if req.OnProgress != nil && total > 0 {
			req.OnProgress((i + 1) * 100 / total)
		}
	}
	b.WriteString("</section>\n</body>\n")

	for _, bin := range binaries {
		fmt.Fprintf(&b, `<binary id="%s" content-type="%s">`+"\n", bin.id, xmlEscape(bin.contentType))
		writeBase64(&b, bin.data)
		b.WriteString("</binary>\n")
	}
	b.WriteString("</FictionBook>\n")

	path := filepath.Join(req.OutputDir, artifactName(res.Title, ".fb2"))
	if err := writeArtifact(path, b.Bytes()); err != nil {
		return "", err
	}

	g.log.Info("generate.fb2_ok", "path", path, "bytes", b.Len(), "images", len(binaries))
	return path, nil
}

func collectBinaries(res *entity.ClipResult, assets map[string]Asset) (map[string]string, []fb2Binary) {
	ids := make(map[string]string)
	var binaries []fb2Binary
	for _, item := range res.Items {
		if item.Kind != entity.KindImage {
			continue
		}
		if _, dup := ids[item.Src]; dup {
			continue
		}
		asset, ok := assets[item.Src]
		if !ok || len(asset.Data) == 0 {
			continue
		}
		id := fmt.Sprintf("img%d", len(binaries)+1)
		ids[item.Src] = id
		binaries = append(binaries, fb2Binary{id: id, contentType: asset.ContentType, data: asset.Data})
	}
	return ids, binaries
}

func (g *FB2Generator) writeDescription(b *bytes.Buffer, res *entity.ClipResult, sourceURL string) {
	lang := res.Language
	if lang == "" {
		lang = "en"
	}
	author := res.Author
	if author == "" {
		author = "unknown"
	}
	title := res.Title
	if title == "" {
		title = "Untitled clip"
	}

	b.WriteString("<description>\n<title-info>\n")
	b.WriteString("<genre>nonfiction</genre>\n")
	fmt.Fprintf(b, "<author><nickname>%s</nickname></author>\n", xmlEscape(author))
	fmt.Fprintf(b, "<book-title>%s</book-title>\n", xmlEscape(title))
	if res.Summary != "" {
		fmt.Fprintf(b, "<annotation><p>%s</p></annotation>\n", xmlEscape(res.Summary))
	}
	if res.PublishedAt != "" {
		fmt.Fprintf(b, "<date>%s</date>\n", xmlEscape(res.PublishedAt))
	}
	fmt.Fprintf(b, "<lang>%s</lang>\n", xmlEscape(lang))
	b.WriteString("</title-info>\n<document-info>\n")
	b.WriteString("<author><nickname>webclip</nickname></author>\n")
	b.WriteString("<program-used>webclip</program-used>\n")
	day := g.now().UTC().Format("2006-01-02")
	fmt.Fprintf(b, `<date value="%s">%s</date>`+"\n", day, day)
	if sourceURL != "" {
		fmt.Fprintf(b, "<src-url>%s</src-url>\n", xmlEscape(sourceURL))
	}
	fmt.Fprintf(b, "<id>%s</id>\n", uuid.NewString())
	b.WriteString("<version>1.0</version>\n")
	b.WriteString("</document-info>\n</description>\n")
}

func writeFB2Item(b *bytes.Buffer, item entity.ContentItem, ids map[string]string) {
	switch item.Kind {
	case entity.KindHeading:
		fmt.Fprintf(b, "<subtitle>%s</subtitle>\n", xmlEscape(item.Text))
	case entity.KindSubtitle:
		src := item.HTML
		if src == "" {
			src = item.Text
		}
		fmt.Fprintf(b, "<p><emphasis>%s</emphasis></p>\n", inlineFB2(src))
	case entity.KindParagraph:
		fmt.Fprintf(b, "<p>%s</p>\n", inlineFB2(item.HTML))
	case entity.KindQuote:
		fmt.Fprintf(b, "<cite><p>%s</p></cite>\n", inlineFB2(item.HTML))
	case entity.KindImage:
		if id, ok := ids[item.Src]; ok {
			fmt.Fprintf(b, `<image l:href="#%s"/>`+"\n", id)
			if item.Caption != "" {
				fmt.Fprintf(b, "<p><emphasis>%s</emphasis></p>\n", xmlEscape(item.Caption))
			}
		} else if text := firstNonEmpty(item.Alt, item.Caption); text != "" {
			fmt.Fprintf(b, "<p><emphasis>[%s]</emphasis></p>\n", xmlEscape(text))
		}
	case entity.KindList:
		for i, li := range item.Items {
			marker := "• "
			if item.Ordered {
				marker = fmt.Sprintf("%d. ", i+1)
			}
			fmt.Fprintf(b, "<p>%s%s</p>\n", marker, inlineFB2(li))
		}
	case entity.KindTable:
		b.WriteString("<table>\n")
		if len(item.Headers) > 0 {
			b.WriteString("<tr>")
			for _, h := range item.Headers {
				fmt.Fprintf(b, "<th>%s</th>", xmlEscape(h))
			}
			b.WriteString("</tr>\n")
		}
		for _, row := range item.Rows {
			b.WriteString("<tr>")
			for _, cell := range row {
				fmt.Fprintf(b, "<td>%s</td>", xmlEscape(cell))
			}
			b.WriteString("</tr>\n")
		}
		b.WriteString("</table>\n")
	case entity.KindCode:
		for _, line := range strings.Split(strings.TrimRight(item.Text, "\n"), "\n") {
			fmt.Fprintf(b, "<p><code>%s</code></p>\n", xmlEscape(line))
		}
	case entity.KindSeparator:
		b.WriteString("<empty-line/>\n")
	case entity.KindInfoboxStart:
		b.WriteString("<empty-line/>\n")
		if item.Title != "" {
			fmt.Fprintf(b, "<subtitle>%s</subtitle>\n", xmlEscape(item.Title))
		}
	case entity.KindInfoboxEnd:
		b.WriteString("<empty-line/>\n")
	}
}

// inlineFB2 converts whitelisted inline HTML into FB2 inline elements.
func inlineFB2(raw string) string {
	nodes, ok := parseInline(raw)
	if !ok {
		return xmlEscape(inlinePlain(raw))
	}
	var b strings.Builder
	for _, n := range nodes {
		fb2Node(&b, n)
	}
	return strings.TrimSpace(b.String())
}

func fb2Node(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(xmlEscape(n.Data))
		return
	case html.ElementNode:
	default:
		return
	}

	children := func() {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			fb2Node(b, c)
		}
	}

	switch n.Data {
	case "b", "strong":
		b.WriteString("<strong>")
		children()
		b.WriteString("</strong>")
	case "i", "em":
		b.WriteString("<emphasis>")
		children()
		b.WriteString("</emphasis>")
	case "code":
		b.WriteString("<code>")
		children()
		b.WriteString("</code>")
	case "a":
		href := nodeAttr(n, "href")
		if href == "" {
			children()
			return
		}
		fmt.Fprintf(b, `<a l:href="%s">`, xmlEscape(href))
		children()
		b.WriteString("</a>")
	case "sub", "sup":
		b.WriteString("<" + n.Data + ">")
		children()
		b.WriteString("</" + n.Data + ">")
	default:
		children()
	}
}

// writeBase64 emits standard base64 wrapped at 76 columns.
func writeBase64(b *bytes.Buffer, data []byte) {
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 76 {
		b.WriteString(enc[:76])
		b.WriteByte('\n')
		enc = enc[76:]
	}
	if enc != "" {
		b.WriteString(enc)
		b.WriteByte('\n')
	}
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
