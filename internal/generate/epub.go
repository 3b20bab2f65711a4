package generate

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/webclip-dev/webclip/constants"
	"github.com/webclip-dev/webclip/internal/common"
	"github.com/webclip-dev/webclip/internal/entity"
)

// EPUBGenerator renders a clip as an EPUB 3 container. Pre-fetched images are
// packaged under OEBPS/images/; images without an asset keep their remote URL.
type EPUBGenerator struct {
	log *slog.Logger
	now func() time.Time
}

func NewEPUBGenerator(logger *slog.Logger) *EPUBGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &EPUBGenerator{log: logger, now: time.Now}
}

func (g *EPUBGenerator) Format() constants.OutputFormat {
	return constants.FormatEPUB
}

type epubImage struct {
	id        string
	href      string
	mediaType string
	data      []byte
}

func (g *EPUBGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	res := req.Result

	srcHrefs, images := collectEPUBImages(res, req.Assets)
	bookID := "urn:uuid:" + uuid.NewString()
	content := g.contentXHTML(res, srcHrefs, req.OnProgress)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	// the mimetype entry must come first and must not be compressed
	mt, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return "", common.NewAppError(common.CodeGenerationFailed, "write epub mimetype", err)
	}
	if _, err := mt.Write([]byte("application/epub+zip")); err != nil {
		return "", common.NewAppError(common.CodeGenerationFailed, "write epub mimetype", err)
	}

	entries := []struct {
		name string
		data []byte
	}{
		{"META-INF/container.xml", []byte(epubContainerXML)},
		{"OEBPS/content.opf", g.packageOPF(res, req.SourceURL, bookID, images)},
		{"OEBPS/nav.xhtml", navXHTML(res)},
		{"OEBPS/style.css", []byte(epubStylesheet)},
		{"OEBPS/content.xhtml", content},
	}
	for _, img := range images {
		entries = append(entries, struct {
			name string
			data []byte
		}{"OEBPS/" + img.href, img.data})
	}

	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			return "", common.NewAppError(common.CodeGenerationFailed, "write epub entry "+e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return "", common.NewAppError(common.CodeGenerationFailed, "write epub entry "+e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return "", common.NewAppError(common.CodeGenerationFailed, "finalize epub", err)
	}

	path := filepath.Join(req.OutputDir, artifactName(res.Title, ".epub"))
	if err := writeArtifact(path, buf.Bytes()); err != nil {
		return "", err
	}

	g.log.Info("generate.epub_ok", "path", path, "bytes", buf.Len(), "images", len(images))
	return path, nil
}

func collectEPUBImages(res *entity.ClipResult, assets map[string]Asset) (map[string]string, []epubImage) {
	hrefs := make(map[string]string)
	var images []epubImage
	for _, item := range res.Items {
		if item.Kind != entity.KindImage {
			continue
		}
		if _, dup := hrefs[item.Src]; dup {
			continue
		}
		asset, ok := assets[item.Src]
		if !ok || len(asset.Data) == 0 {
			continue
		}
		id := fmt.Sprintf("img%d", len(images)+1)
		img := epubImage{
			id:        id,
			href:      "images/" + id + imageExt(asset.ContentType),
			mediaType: mediaType(asset.ContentType),
			data:      asset.Data,
		}
		hrefs[item.Src] = img.href
		images = append(images, img)
	}
	return hrefs, images
}

const epubContainerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

const epubStylesheet = `body { font-family: serif; line-height: 1.5; margin: 1em; }
p.byline { color: #555; font-style: italic; }
p.subtitle { font-style: italic; font-size: 1.1em; }
blockquote.summary { border-left: 3px solid #999; padding-left: 1em; }
figure { margin: 1em 0; text-align: center; }
figcaption { font-size: 0.9em; color: #555; }
img { max-width: 100%; }
pre { background: #f5f5f5; padding: 0.8em; overflow-x: auto; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.3em 0.6em; }
aside.infobox { border: 1px solid #bbb; background: #fafafa; padding: 0.5em 1em; margin: 1em 0; }
`

func (g *EPUBGenerator) packageOPF(res *entity.ClipResult, sourceURL, bookID string, images []epubImage) []byte {
	lang := res.Language
	if lang == "" {
		lang = "en"
	}
	title := res.Title
	if title == "" {
		title = "Untitled clip"
	}

	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="book-id" xml:lang="%s">`+"\n", xmlEscape(lang))
	b.WriteString(`<metadata xmlns:dc="http://purl.org/dc/elements/1.1/">` + "\n")
	fmt.Fprintf(&b, `<dc:identifier id="book-id">%s</dc:identifier>`+"\n", bookID)
	fmt.Fprintf(&b, "<dc:title>%s</dc:title>\n", xmlEscape(title))
	fmt.Fprintf(&b, "<dc:language>%s</dc:language>\n", xmlEscape(lang))
	if res.Author != "" {
		fmt.Fprintf(&b, "<dc:creator>%s</dc:creator>\n", xmlEscape(res.Author))
	}
	if sourceURL != "" {
		fmt.Fprintf(&b, "<dc:source>%s</dc:source>\n", xmlEscape(sourceURL))
	}
	fmt.Fprintf(&b, `<meta property="dcterms:modified">%s</meta>`+"\n", g.now().UTC().Format("2006-01-02T15:04:05Z"))
	b.WriteString("</metadata>\n<manifest>\n")
	b.WriteString(`<item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>` + "\n")
	b.WriteString(`<item id="content" href="content.xhtml" media-type="application/xhtml+xml"/>` + "\n")
	b.WriteString(`<item id="css" href="style.css" media-type="text/css"/>` + "\n")
	for _, img := range images {
		fmt.Fprintf(&b, `<item id="%s" href="%s" media-type="%s"/>`+"\n", img.id, img.href, xmlEscape(img.mediaType))
	}
	b.WriteString("</manifest>\n<spine>\n")
	b.WriteString(`<itemref idref="content"/>` + "\n")
	b.WriteString("</spine>\n</package>\n")
	return b.Bytes()
}

// navXHTML builds the EPUB 3 navigation document from the top two heading
// levels; an article without headings gets a single entry.
func navXHTML(res *entity.ClipResult) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">` + "\n")
	b.WriteString("<head><title>Contents</title></head>\n<body>\n")
	b.WriteString(`<nav epub:type="toc" id="toc">` + "\n<h1>Contents</h1>\n<ol>\n")

	entries := 0
	for i, item := range res.Items {
		if item.Kind != entity.KindHeading || item.Level > 2 {
			continue
		}
		fmt.Fprintf(&b, `<li><a href="content.xhtml#%s">%s</a></li>`+"\n", anchorID(item, i), xmlEscape(item.Text))
		entries++
	}
	if entries == 0 {
		title := res.Title
		if title == "" {
			title = "Untitled clip"
		}
		fmt.Fprintf(&b, `<li><a href="content.xhtml">%s</a></li>`+"\n", xmlEscape(title))
	}

	b.WriteString("</ol>\n</nav>\n</body>\n</html>\n")
	return b.Bytes()
}

// anchorID returns a stable fragment id for the item. Reconciled results
// carry ids already; selector results get positional ones.
func anchorID(item entity.ContentItem, index int) string {
	if item.ID != "" {
		return item.ID
	}
	return fmt.Sprintf("b%04d", index)
}

func (g *EPUBGenerator) contentXHTML(res *entity.ClipResult, srcHrefs map[string]string, onProgress func(int)) []byte {
	lang := res.Language
	if lang == "" {
		lang = "en"
	}
	title := res.Title
	if title == "" {
		title = "Untitled clip"
	}

	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="%s">`+"\n", xmlEscape(lang))
	b.WriteString("<head>\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", xmlEscape(title))
	b.WriteString(`<link rel="stylesheet" type="text/css" href="style.css"/>` + "\n")
	b.WriteString("</head>\n<body>\n")

	fmt.Fprintf(&b, `<h1 class="clip-title">%s</h1>`+"\n", xmlEscape(title))
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
		fmt.Fprintf(&b, `<p class="byline">%s</p>`+"\n", xmlEscape(strings.Join(byline, " · ")))
	}
	if res.Summary != "" {
		fmt.Fprintf(&b, `<blockquote class="summary"><p>%s</p></blockquote>`+"\n", xmlEscape(res.Summary))
	}

	inAside := false
	total := len(res.Items)
	for i, item := range res.Items {
		writeXHTMLItem(&b, item, i, srcHrefs, &inAside)
		if onProgress != nil && total > 0 {
			onProgress((i + 1) * 100 / total)
		}
	}
	if inAside {
		b.WriteString("</aside>\n")
	}

	b.WriteString("</body>\n</html>\n")
	return b.Bytes()
}

func writeXHTMLItem(b *bytes.Buffer, item entity.ContentItem, index int, srcHrefs map[string]string, inAside *bool) {
	id := anchorID(item, index)
	switch item.Kind {
	case entity.KindHeading:
		fmt.Fprintf(b, `<h%d id="%s">%s</h%d>`+"\n", item.Level, id, xmlEscape(item.Text), item.Level)
	case entity.KindSubtitle:
		src := item.HTML
		if src == "" {
			src = xmlEscape(item.Text)
		} else {
			src = inlineXHTML(src)
		}
		fmt.Fprintf(b, `<p class="subtitle" id="%s">%s</p>`+"\n", id, src)
	case entity.KindParagraph:
		fmt.Fprintf(b, `<p id="%s">%s</p>`+"\n", id, inlineXHTML(item.HTML))
	case entity.KindQuote:
		fmt.Fprintf(b, `<blockquote id="%s"><p>%s</p></blockquote>`+"\n", id, inlineXHTML(item.HTML))
	case entity.KindImage:
		src := item.Src
		if local, ok := srcHrefs[item.Src]; ok {
			src = local
		}
		fmt.Fprintf(b, `<figure id="%s"><img src="%s" alt="%s"/>`, id, xmlEscape(src), xmlEscape(item.Alt))
		if item.Caption != "" {
			fmt.Fprintf(b, "<figcaption>%s</figcaption>", xmlEscape(item.Caption))
		}
		b.WriteString("</figure>\n")
	case entity.KindList:
		tag := "ul"
		if item.Ordered {
			tag = "ol"
		}
		fmt.Fprintf(b, `<%s id="%s">`+"\n", tag, id)
		for _, li := range item.Items {
			fmt.Fprintf(b, "<li>%s</li>\n", inlineXHTML(li))
		}
		fmt.Fprintf(b, "</%s>\n", tag)
	case entity.KindTable:
		fmt.Fprintf(b, `<table id="%s">`+"\n", id)
		if len(item.Headers) > 0 {
			b.WriteString("<thead><tr>")
			for _, h := range item.Headers {
				fmt.Fprintf(b, "<th>%s</th>", xmlEscape(h))
			}
			b.WriteString("</tr></thead>\n")
		}
		b.WriteString("<tbody>\n")
		for _, row := range item.Rows {
			b.WriteString("<tr>")
			for _, cell := range row {
				fmt.Fprintf(b, "<td>%s</td>", xmlEscape(cell))
			}
			b.WriteString("</tr>\n")
		}
		b.WriteString("</tbody>\n</table>\n")
	case entity.KindCode:
		class := ""
		if item.Language != "" {
			class = fmt.Sprintf(` class="language-%s"`, xmlEscape(item.Language))
		}
		fmt.Fprintf(b, `<pre id="%s"><code%s>%s</code></pre>`+"\n", id, class, xmlEscape(item.Text))
	case entity.KindSeparator:
		b.WriteString("<hr/>\n")
	case entity.KindInfoboxStart:
		if *inAside {
			b.WriteString("</aside>\n")
		}
		*inAside = true
		fmt.Fprintf(b, `<aside class="infobox" id="%s">`+"\n", id)
		if item.Title != "" {
			fmt.Fprintf(b, "<h3>%s</h3>\n", xmlEscape(item.Title))
		}
	case entity.KindInfoboxEnd:
		if *inAside {
			b.WriteString("</aside>\n")
			*inAside = false
		}
	}
}

// inlineXHTML re-serializes whitelisted inline HTML as well-formed XHTML.
// Whatever the source looked like, the output is balanced and escaped.
func inlineXHTML(raw string) string {
	nodes, ok := parseInline(raw)
	if !ok {
		return xmlEscape(inlinePlain(raw))
	}
	var b strings.Builder
	for _, n := range nodes {
		xhtmlNode(&b, n)
	}
	return strings.TrimSpace(b.String())
}

func xhtmlNode(b *strings.Builder, n *html.Node) {
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
			xhtmlNode(b, c)
		}
	}

	if _, keep := inlineTags[n.Data]; !keep {
		children()
		return
	}
	if n.Data == "a" {
		href := nodeAttr(n, "href")
		if href == "" {
			children()
			return
		}
		fmt.Fprintf(b, `<a href="%s">`, xmlEscape(href))
		children()
		b.WriteString("</a>")
		return
	}
	b.WriteString("<" + n.Data + ">")
	children()
	b.WriteString("</" + n.Data + ">")
}

// imageExt picks a file extension for a packaged image.
func imageExt(contentType string) string {
	switch mediaType(contentType) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	default:
		return ".bin"
	}
}

func mediaType(contentType string) string {
	mt := strings.TrimSpace(strings.Split(contentType, ";")[0])
	if mt == "" {
		return "application/octet-stream"
	}
	return strings.ToLower(mt)
}
