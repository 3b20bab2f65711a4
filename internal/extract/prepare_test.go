package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrepareHTMLStripsNonContentMarkup(t *testing.T) {
	page := `<html><head>
	<script>window.tracker = true;</script>
	<style>body { color: red; }</style>
	<meta charset="utf-8">
	</head><body>
	<!-- rendered by cms v3 -->
	<script src="/bundle.js"></script>
	<article><p>Kept paragraph.</p><pre><code>kept code</code></pre></article>
	<form action="/subscribe"><input type="email"><button>Go</button></form>
	<svg viewBox="0 0 1 1"><path d="M0 0"></path></svg>
	</body></html>`

	out := PrepareHTML(page)

	assert.Contains(t, out, "<p>Kept paragraph.</p>")
	assert.Contains(t, out, "kept code")
	assert.NotContains(t, out, "tracker")
	assert.NotContains(t, out, "color: red")
	assert.NotContains(t, out, "bundle.js")
	assert.NotContains(t, out, "subscribe")
	assert.NotContains(t, out, "svg")
	assert.NotContains(t, out, "rendered by cms")
	assert.NotContains(t, out, "<head")
}

func TestPrepareHTMLKeepsStructureForBoundaries(t *testing.T) {
	page := `<html><body><div id="a"><p>one</p></div><div id="b"><p>two</p></div></body></html>`
	out := PrepareHTML(page)

	// closing tags survive; the chunk splitter snaps to them
	assert.Contains(t, out, "</div>")
	assert.Contains(t, out, "</p>")
}

func TestPrepareHTMLSurvivesFragmentsWithoutBody(t *testing.T) {
	out := PrepareHTML("<p>bare fragment</p>")
	assert.Contains(t, out, "bare fragment")
}
