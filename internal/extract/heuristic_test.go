package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webclip-dev/webclip/internal/common"
	"github.com/webclip-dev/webclip/internal/entity"
)

func heuristicPage(containerOpen, containerClose string) string {
	para := "<p>" + strings.Repeat("Sentences about the actual topic of this article. ", 4) + "</p>"
	return `<html><head><title>Found Without Selectors</title></head><body>
	<nav><a href="/a">Alpha</a> <a href="/b">Beta</a> <a href="/c">Gamma</a></nav>
	<div class="sidebar">
		<a href="/1">Link one</a> <a href="/2">Link two</a> <a href="/3">Link three</a>
		<a href="/4">Link four</a> <a href="/5">Link five</a> <a href="/6">Link six</a>
	</div>
	` + containerOpen + `
		<h1>Found Without Selectors</h1>
		` + para + para + para + `
		<ul><li>one</li><li>two</li></ul>
	` + containerClose + `
	<footer>All rights reserved.</footer>
	</body></html>`
}

func TestHeuristicPrefersSemanticArticleElement(t *testing.T) {
	e := NewHeuristicExtractor(nil)
	res, err := e.Extract(context.Background(), heuristicPage("<article>", "</article>"), "https://example.com/found")
	require.NoError(t, err)

	require.NotEmpty(t, res.Items)
	assert.Equal(t, entity.KindHeading, res.Items[0].Kind)
	assert.Equal(t, "Found Without Selectors", res.Items[0].Text)

	paragraphs := 0
	for _, it := range res.Items {
		assert.NotContains(t, it.HTML, "Link one", "sidebar must not be chosen")
		if it.Kind == entity.KindParagraph {
			paragraphs++
		}
	}
	assert.Equal(t, 3, paragraphs)
	assert.Equal(t, "Found Without Selectors", res.Title, "title falls back to the <title> tag")
}

func TestHeuristicFallsBackToClassNamedContainers(t *testing.T) {
	e := NewHeuristicExtractor(nil)
	res, err := e.Extract(context.Background(),
		heuristicPage(`<div class="post-content">`, "</div>"), "https://example.com/found")
	require.NoError(t, err)

	require.NotEmpty(t, res.Items)
	assert.Equal(t, entity.KindHeading, res.Items[0].Kind)
}

func TestHeuristicScoresPlainDivsWhenNothingIsMarked(t *testing.T) {
	e := NewHeuristicExtractor(nil)
	res, err := e.Extract(context.Background(),
		heuristicPage(`<div class="wrapper-x7">`, "</div>"), "https://example.com/found")
	require.NoError(t, err)

	found := false
	for _, it := range res.Items {
		if it.Kind == entity.KindParagraph && strings.Contains(it.HTML, "actual topic") {
			found = true
		}
	}
	assert.True(t, found, "scored fallback still finds the text-heavy div")
}

func TestHeuristicRejectsLinkFarms(t *testing.T) {
	var links strings.Builder
	links.WriteString("<html><body><div>")
	for i := 0; i < 120; i++ {
		links.WriteString(`<a href="/x">some linked thing in a long directory listing</a> `)
	}
	links.WriteString("</div></body></html>")

	e := NewHeuristicExtractor(nil)
	_, err := e.Extract(context.Background(), links.String(), "https://example.com/links")
	require.Error(t, err)

	var ex *common.ExtractionError
	require.ErrorAs(t, err, &ex)
	assert.ErrorIs(t, err, common.ErrNoContent)
}

func TestHeuristicRemovesNoiseInsideWinner(t *testing.T) {
	page := `<html><body><article>
	<h1>Clean Article</h1>
	<p>` + strings.Repeat("Real article prose that keeps going for a while. ", 8) + `</p>
	<div class="social-share">Share on everything!</div>
	<div class="comments-section"><p>First comment!</p><p>Second comment!</p></div>
	</article></body></html>`

	e := NewHeuristicExtractor(nil)
	res, err := e.Extract(context.Background(), page, "https://example.com/clean")
	require.NoError(t, err)

	for _, it := range res.Items {
		assert.NotContains(t, it.HTML, "comment")
		assert.NotContains(t, it.HTML, "Share on")
	}
}
