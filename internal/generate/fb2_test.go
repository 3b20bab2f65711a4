package generate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webclip-dev/webclip/internal/entity"
)

// requireWellFormedXML walks every token so unbalanced tags or raw ampersands
// anywhere in the document fail the test.
func requireWellFormedXML(t *testing.T, data []byte) {
	t.Helper()
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return
		}
		require.NoError(t, err)
	}
}

func TestFB2GeneratorEmbedsImagesAndStructure(t *testing.T) {
	dir := t.TempDir()
	g := NewFB2Generator(nil)
	imgData := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}

	path, err := g.Generate(context.Background(), Request{
		Result:    sampleResult(),
		SourceURL: "https://example.com/articles/measured",
		OutputDir: dir,
		Assets: map[string]Asset{
			"https://example.com/pic.png": {ContentType: "image/png", Data: imgData},
		},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "the-measured-article.fb2"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	requireWellFormedXML(t, raw)
	out := string(raw)

	assert.Contains(t, out, `xmlns="http://www.gribuser.ru/xml/fictionbook/2.0"`)
	assert.Contains(t, out, "<book-title>The Measured Article</book-title>")
	assert.Contains(t, out, "<author><nickname>Jo Writer</nickname></author>")
	assert.Contains(t, out, "<annotation><p>A short abstract of the piece.</p></annotation>")
	assert.Contains(t, out, "<lang>en</lang>")
	assert.Contains(t, out, "<src-url>https://example.com/articles/measured</src-url>")

	assert.Contains(t, out, "<title><p>The Measured Article</p></title>")
	assert.Contains(t, out, "<subtitle>Background</subtitle>")
	assert.Contains(t, out, "<p>Opening with <strong>bold</strong> and a "+
		`<a l:href="https://example.com/ref">link</a>.</p>`)
	assert.Contains(t, out, `<image l:href="#img1"/>`)
	assert.Contains(t, out, "<p><emphasis>Photo: somebody</emphasis></p>")
	assert.Contains(t, out, "<p>• beta with <emphasis>stress</emphasis></p>")
	assert.Contains(t, out, "<p>1. first</p>")
	assert.Contains(t, out, "<cite><p>Quoted <emphasis>words</emphasis>.</p></cite>")
	assert.Contains(t, out, "<p><code>fmt.Println(&#34;x|y&#34;)</code></p>")
	assert.Contains(t, out, "<p><code>return</code></p>", "each code line is its own paragraph")
	assert.Contains(t, out, "<tr><th>Year</th><th>Value</th></tr>")
	assert.Contains(t, out, "<tr><td>2002</td><td>plain</td></tr>")
	assert.Contains(t, out, "<empty-line/>")
	assert.Contains(t, out, "<subtitle>Quick facts</subtitle>")

	assert.Contains(t, out, `<binary id="img1" content-type="image/png">`)
	assert.Contains(t, out, base64.StdEncoding.EncodeToString(imgData))
}

func TestFB2MissingAssetDegradesToPlaceholder(t *testing.T) {
	dir := t.TempDir()
	g := NewFB2Generator(nil)

	path, err := g.Generate(context.Background(), Request{
		Result:    sampleResult(),
		OutputDir: dir,
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	requireWellFormedXML(t, raw)
	out := string(raw)

	assert.NotContains(t, out, "<binary")
	assert.NotContains(t, out, "<image")
	assert.Contains(t, out, "<p><emphasis>[A skyline]</emphasis></p>")
}

func TestFB2EscapesMarkupInText(t *testing.T) {
	dir := t.TempDir()
	g := NewFB2Generator(nil)

	res := &entity.ClipResult{
		Title: "<Fish & Chips>",
		Items: []entity.ContentItem{
			entity.Paragraph("Price < 5 & rising"),
		},
	}
	path, err := g.Generate(context.Background(), Request{Result: res, OutputDir: dir})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	requireWellFormedXML(t, raw)
	out := string(raw)

	assert.Contains(t, out, "<book-title>&lt;Fish &amp; Chips&gt;</book-title>")
	assert.Contains(t, out, "<p>Price &lt; 5 &amp; rising</p>")
}

func TestFB2FillsRequiredFieldsForSparseResults(t *testing.T) {
	dir := t.TempDir()
	g := NewFB2Generator(nil)

	path, err := g.Generate(context.Background(), Request{
		Result:    &entity.ClipResult{Items: []entity.ContentItem{entity.Paragraph("x")}},
		OutputDir: dir,
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)

	assert.Contains(t, out, "<book-title>Untitled clip</book-title>")
	assert.Contains(t, out, "<author><nickname>unknown</nickname></author>")
	assert.Contains(t, out, "<lang>en</lang>")
	assert.Contains(t, out, "<version>1.0</version>")
}
