package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webclip-dev/webclip/internal/common"
	"github.com/webclip-dev/webclip/internal/entity"
)

const articlePage = `<!DOCTYPE html>
<html lang="en-GB">
<head>
<title>Fallback Title - Example Journal</title>
<meta property="og:title" content="The Measured Article">
<meta property="og:site_name" content="Example Journal">
<meta name="author" content="R. Writer">
<meta property="article:published_time" content="2025-11-03T10:30:00Z">
</head>
<body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<article id="story">
  <h1 class="headline">The Measured Article</h1>
  <p class="standfirst">A short standfirst under the title.</p>
  <div class="article-body">
    <p>First paragraph with <em>emphasis</em> and a <a href="/reference">relative link</a>.</p>
    <div class="ad-slot">Buy things now!</div>
    <figure>
      <img data-src="/images/chart.png" alt="A chart">
      <figcaption>Figure 1. The chart.</figcaption>
    </figure>
    <h2>Second section</h2>
    <ul><li>alpha</li><li>beta <strong>two</strong></li></ul>
    <blockquote>Quoted <i>wisdom</i>.</blockquote>
    <pre><code class="language-go">func main() {
	run()
}</code></pre>
    <table>
      <thead><tr><th>Name</th><th>Value</th></tr></thead>
      <tbody><tr><td>a</td><td>1</td></tr><tr><td>b</td><td>2</td></tr></tbody>
    </table>
    <hr>
    <aside class="infobox"><h3>Background</h3><p>Context worth keeping.</p></aside>
    <p>Closing &amp; final paragraph.</p>
  </div>
  <div class="related">You may also like this other article.</div>
</article>
<footer>All rights reserved.</footer>
</body>
</html>`

func storySelectors() entity.SelectorSet {
	return entity.SelectorSet{
		Container: "#story",
		Content:   ".article-body",
		Exclude:   []string{".ad-slot", ".related"},
		Title:     "h1.headline",
		Subtitle:  "p.standfirst",
	}
}

func TestSelectorExtractMapsTheWholeArticle(t *testing.T) {
	e := NewSelectorExtractor(nil)
	res, err := e.Extract(context.Background(), articlePage, "https://news.example.com/story/1", storySelectors())
	require.NoError(t, err)

	kinds := make([]entity.ContentKind, 0, len(res.Items))
	for _, it := range res.Items {
		kinds = append(kinds, it.Kind)
	}
	assert.Equal(t, []entity.ContentKind{
		entity.KindSubtitle,
		entity.KindParagraph,
		entity.KindImage,
		entity.KindHeading,
		entity.KindList,
		entity.KindQuote,
		entity.KindCode,
		entity.KindTable,
		entity.KindSeparator,
		entity.KindInfoboxStart,
		entity.KindParagraph,
		entity.KindInfoboxEnd,
		entity.KindParagraph,
	}, kinds)

	sub := res.Items[0]
	assert.Equal(t, "A short standfirst under the title.", sub.Text)

	para := res.Items[1]
	assert.Equal(t, `First paragraph with <em>emphasis</em> and a <a href="https://news.example.com/reference">relative link</a>.`, para.HTML)

	img := res.Items[2]
	assert.Equal(t, "https://news.example.com/images/chart.png", img.Src, "lazy data-src resolved against the page URL")
	assert.Equal(t, "A chart", img.Alt)
	assert.Equal(t, "Figure 1. The chart.", img.Caption)

	heading := res.Items[3]
	assert.Equal(t, 2, heading.Level)
	assert.Equal(t, "Second section", heading.Text)

	list := res.Items[4]
	assert.False(t, list.Ordered)
	assert.Equal(t, []string{"alpha", "beta <strong>two</strong>"}, list.Items)

	assert.Equal(t, "Quoted <i>wisdom</i>.", res.Items[5].HTML)

	code := res.Items[6]
	assert.Equal(t, "go", code.Language)
	assert.Equal(t, "func main() {\n\trun()\n}", code.Text)

	table := res.Items[7]
	assert.Equal(t, []string{"Name", "Value"}, table.Headers)
	assert.Equal(t, [][]string{{"a", "1"}, {"b", "2"}}, table.Rows)

	assert.Equal(t, "Background", res.Items[9].Title)
	assert.Equal(t, "Context worth keeping.", res.Items[10].HTML)

	assert.Equal(t, "Closing &amp; final paragraph.", res.Items[12].HTML, "ampersand stays escaped")
}

func TestSelectorExtractAppliesExclusionsBeforeMapping(t *testing.T) {
	e := NewSelectorExtractor(nil)
	res, err := e.Extract(context.Background(), articlePage, "https://news.example.com/story/1", storySelectors())
	require.NoError(t, err)

	for _, it := range res.Items {
		assert.NotContains(t, it.HTML, "Buy things", "excluded ad content must not leak")
		assert.NotContains(t, it.Text, "Buy things")
	}
}

func TestSelectorExtractReadsMetadata(t *testing.T) {
	e := NewSelectorExtractor(nil)
	res, err := e.Extract(context.Background(), articlePage, "https://news.example.com/story/1", storySelectors())
	require.NoError(t, err)

	assert.Equal(t, "The Measured Article", res.Title)
	assert.Equal(t, "R. Writer", res.Author)
	assert.Equal(t, "2025-11-03", res.PublishedAt)
	assert.Equal(t, "Example Journal", res.SiteName)
	assert.Equal(t, "en", res.Language, "primary subtag of en-GB")
}

func TestSelectorExtractFailsWhenContainerMatchesNothing(t *testing.T) {
	e := NewSelectorExtractor(nil)
	_, err := e.Extract(context.Background(), articlePage, "https://news.example.com/story/1",
		entity.SelectorSet{Container: "#does-not-exist"})
	require.Error(t, err)

	var ex *common.ExtractionError
	require.ErrorAs(t, err, &ex, "selector failures must be ExtractionError so the cache entry dies")
	assert.Contains(t, ex.Reason, "matched nothing")
}

func TestSelectorExtractFailsOnEmptyContent(t *testing.T) {
	page := `<html><body><article id="empty"><div class="ad">x</div></article></body></html>`
	e := NewSelectorExtractor(nil)
	_, err := e.Extract(context.Background(), page, "https://example.com/p",
		entity.SelectorSet{Container: "#empty", Exclude: []string{".ad"}})
	require.Error(t, err)

	var ex *common.ExtractionError
	require.ErrorAs(t, err, &ex)
	assert.ErrorIs(t, err, common.ErrNoContent)
}

func TestSelectorExtractHeroImagePrependedOnce(t *testing.T) {
	page := `<html><head></head><body>
	<img class="lead" src="/hero.jpg" alt="Lead">
	<article id="a"><p>Body paragraph that says enough.</p></article>
	</body></html>`

	e := NewSelectorExtractor(nil)
	res, err := e.Extract(context.Background(), page, "https://example.com/x",
		entity.SelectorSet{Container: "#a", HeroImage: "img.lead"})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(res.Items), 2)
	assert.Equal(t, entity.KindImage, res.Items[0].Kind)
	assert.Equal(t, "https://example.com/hero.jpg", res.Items[0].Src)

	// same hero inside the body must not appear twice
	page2 := `<html><body>
	<article id="a"><img class="lead" src="/hero.jpg" alt="Lead"><p>Body text here.</p></article>
	</body></html>`
	res2, err := e.Extract(context.Background(), page2, "https://example.com/x",
		entity.SelectorSet{Container: "#a", HeroImage: "img.lead"})
	require.NoError(t, err)

	heroes := 0
	for _, it := range res2.Items {
		if it.Kind == entity.KindImage && it.Src == "https://example.com/hero.jpg" {
			heroes++
		}
	}
	assert.Equal(t, 1, heroes)
}
