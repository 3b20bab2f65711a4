package generate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webclip-dev/webclip/internal/entity"
)

func sampleResult() *entity.ClipResult {
	return &entity.ClipResult{
		Title:       "The Measured Article",
		Author:      "Jo Writer",
		PublishedAt: "2025-11-03",
		SiteName:    "Example Journal",
		Language:    "en",
		Summary:     "A short abstract of the piece.",
		Items: []entity.ContentItem{
			entity.Subtitle("A standfirst line", "A standfirst line"),
			entity.Paragraph(`Opening with <strong>bold</strong> and a <a href="https://example.com/ref">link</a>.`),
			entity.Heading(2, "Background"),
			entity.Paragraph("Plain second paragraph."),
			entity.Image("https://example.com/pic.png", "A skyline", "Photo: somebody"),
			entity.List(false, []string{"alpha", "beta with <em>stress</em>"}),
			entity.List(true, []string{"first", "second"}),
			entity.Quote("Quoted <i>words</i>."),
			entity.Code("go", "fmt.Println(\"x|y\")\nreturn"),
			entity.Table([]string{"Year", "Value"}, [][]string{{"2001", "a|b"}, {"2002", "plain"}}),
			entity.Separator(),
			entity.InfoboxStart("Quick facts"),
			entity.Paragraph("Boxed fact."),
			entity.InfoboxEnd(),
			entity.Paragraph("Closing paragraph."),
		},
	}
}

func TestMarkdownGeneratorWritesFullDocument(t *testing.T) {
	dir := t.TempDir()
	g := NewMarkdownGenerator(nil)

	var last int
	path, err := g.Generate(context.Background(), Request{
		Result:     sampleResult(),
		SourceURL:  "https://example.com/articles/measured",
		OutputDir:  dir,
		OnProgress: func(pct int) { last = pct },
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "the-measured-article.md"), path)
	assert.Equal(t, 100, last)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)

	assert.True(t, strings.HasPrefix(out, "# The Measured Article\n"), "title heads the file")
	assert.Contains(t, out, "*by Jo Writer · Example Journal · 2025-11-03*")
	assert.Contains(t, out, "[Original](https://example.com/articles/measured)")
	assert.Contains(t, out, "> A short abstract of the piece.")

	assert.Contains(t, out, "*A standfirst line*")
	assert.Contains(t, out, "Opening with **bold** and a [link](https://example.com/ref).")
	assert.Contains(t, out, "## Background")
	assert.Contains(t, out, "![A skyline](https://example.com/pic.png)\n*Photo: somebody*")
	assert.Contains(t, out, "- alpha\n- beta with *stress*")
	assert.Contains(t, out, "1. first\n2. second")
	assert.Contains(t, out, "> Quoted *words*.")
	assert.Contains(t, out, "```go\nfmt.Println(\"x|y\")\nreturn\n```")
	assert.Contains(t, out, `| 2001 | a\|b |`, "pipes inside cells are escaped")
	assert.Contains(t, out, "| Year | Value |\n| --- | --- |")
	assert.Contains(t, out, "> **Quick facts**")
	assert.Contains(t, out, "> Boxed fact.", "infobox content rides in the blockquote")
	assert.Contains(t, out, "\nClosing paragraph.\n", "content after the infobox is unquoted")
}

func TestMarkdownEscapesPunctuationInPlainText(t *testing.T) {
	dir := t.TempDir()
	g := NewMarkdownGenerator(nil)

	res := &entity.ClipResult{
		Title: "Stars *and* under_scores",
		Items: []entity.ContentItem{
			entity.Heading(3, "A [bracketed] heading"),
		},
	}
	path, err := g.Generate(context.Background(), Request{Result: res, OutputDir: dir})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	assert.Contains(t, out, `# Stars \*and\* under\_scores`)
	assert.Contains(t, out, `### A \[bracketed\] heading`)
}

func TestMarkdownUntitledClipGetsFallbackName(t *testing.T) {
	dir := t.TempDir()
	g := NewMarkdownGenerator(nil)

	path, err := g.Generate(context.Background(), Request{
		Result:    &entity.ClipResult{Items: []entity.ContentItem{entity.Paragraph("x")}},
		OutputDir: dir,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "clip-"), "got %s", path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "# Untitled clip")
}

func TestMarkdownStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := NewMarkdownGenerator(nil)
	_, err := g.Generate(ctx, Request{Result: sampleResult(), OutputDir: t.TempDir()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"The Measured Article":    "the-measured-article",
		"  Spaces,  punctuation!": "spaces-punctuation",
		"Ünïcode läuft":           "ünïcode-läuft",
		"---":                     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, slugify(in), "input %q", in)
	}

	long := strings.Repeat("word ", 40)
	assert.LessOrEqual(t, len(slugify(long)), maxSlugLen+1)
}
