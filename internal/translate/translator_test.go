package translate

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webclip-dev/webclip/internal/common"
	"github.com/webclip-dev/webclip/internal/entity"
	"github.com/webclip-dev/webclip/internal/llm"
	"github.com/webclip-dev/webclip/internal/retry"
)

// echoProvider answers every translation batch by prefixing each segment, so
// tests can tell exactly which strings went through the model. Scripted errors
// are injected per call.
type echoProvider struct {
	prefix   string
	errs     []error
	requests []llm.Request
}

func (p *echoProvider) Complete(_ context.Context, req llm.Request) ([]byte, error) {
	i := len(p.requests)
	p.requests = append(p.requests, req)
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	segs := parseNumberedSegments(req.User)
	out := make([]string, len(segs))
	for j, s := range segs {
		out[j] = p.prefix + s
	}
	return json.Marshal(map[string]any{"translations": out})
}

func parseNumberedSegments(user string) []string {
	var segs []string
	for _, line := range strings.Split(user, "\n") {
		if !strings.HasPrefix(line, "[") {
			continue
		}
		if i := strings.Index(line, "] "); i > 0 {
			segs = append(segs, line[i+2:])
		}
	}
	return segs
}

func testPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		Delays:      []time.Duration{time.Millisecond},
		IsRetryable: llm.Retryable,
	}
}

func fixtureResult() *entity.ClipResult {
	return &entity.ClipResult{
		Title:    "The Title",
		Language: "en",
		Items: []entity.ContentItem{
			entity.Heading(2, "Section"),
			entity.Paragraph("Body with <em>emphasis</em> kept."),
			entity.List(false, []string{"first point", "second point"}),
			entity.Table([]string{"Year", "Name"}, [][]string{{"2001", "Alpha"}, {"2002", "Beta"}}),
			entity.Quote("Quoted words."),
			entity.Subtitle("Deck line", "Deck <i>line</i>"),
			entity.InfoboxStart("Quick facts"),
			entity.Paragraph("Inside the box."),
			entity.InfoboxEnd(),
			entity.Code("go", "fmt.Println(42)"),
			entity.Image("https://example.com/pic.jpg", "A skyline", "Photo: somebody"),
			entity.Separator(),
		},
	}
}

func TestTranslateRewritesEveryTextField(t *testing.T) {
	provider := &echoProvider{prefix: "de:"}
	tr := NewTranslator(provider, testPolicy(), Config{}, nil)
	res := fixtureResult()

	err := tr.Translate(context.Background(), res, Options{Target: "de"})
	require.NoError(t, err)

	assert.Equal(t, "de:The Title", res.Title)
	assert.Equal(t, "de", res.Language)
	assert.Equal(t, "de:Section", res.Items[0].Text)
	assert.Equal(t, "de:Body with <em>emphasis</em> kept.", res.Items[1].HTML,
		"inline tags ride along inside the segment")
	assert.Equal(t, []string{"de:first point", "de:second point"}, res.Items[2].Items)
	assert.Equal(t, []string{"de:Year", "de:Name"}, res.Items[3].Headers)
	assert.Equal(t, [][]string{{"de:2001", "de:Alpha"}, {"de:2002", "de:Beta"}}, res.Items[3].Rows)
	assert.Equal(t, "de:Quoted words.", res.Items[4].HTML)
	assert.Equal(t, "de:Deck <i>line</i>", res.Items[5].HTML)
	assert.Equal(t, "de:Deck line", res.Items[5].Text, "subtitle text tracks its html form")
	assert.Equal(t, "de:Quick facts", res.Items[6].Title)
	assert.Equal(t, "de:Inside the box.", res.Items[7].HTML)

	assert.Equal(t, "fmt.Println(42)", res.Items[9].Text, "code is never translated")
	assert.Equal(t, "A skyline", res.Items[10].Alt, "images untouched without opt-in")
	assert.Equal(t, "Photo: somebody", res.Items[10].Caption)

	require.Len(t, provider.requests, 1, "15 segments fit one default batch")
	req := provider.requests[0]
	assert.True(t, req.ForceJSON)
	assert.Contains(t, req.System, "exactly 15 strings")
	assert.True(t, strings.HasPrefix(req.User, "[0] The Title"))
}

func TestTranslateBatchesLargeResults(t *testing.T) {
	provider := &echoProvider{prefix: "fr:"}
	tr := NewTranslator(provider, testPolicy(), Config{BatchSize: 4}, nil)
	res := fixtureResult()

	var progress [][2]int
	err := tr.Translate(context.Background(), res, Options{
		Target:  "fr",
		OnBatch: func(done, total int) { progress = append(progress, [2]int{done, total}) },
	})
	require.NoError(t, err)

	require.Len(t, provider.requests, 4, "15 segments at size 4 means 4 batches")
	assert.Len(t, parseNumberedSegments(provider.requests[0].User), 4)
	assert.Len(t, parseNumberedSegments(provider.requests[3].User), 3, "tail batch carries the remainder")
	assert.Equal(t, [][2]int{{1, 4}, {2, 4}, {3, 4}, {4, 4}}, progress)

	assert.Equal(t, "fr:The Title", res.Title)
	assert.Equal(t, "fr:Inside the box.", res.Items[7].HTML, "last segment still lands")
}

func TestTranslateCanonicalizesTheTargetTag(t *testing.T) {
	provider := &echoProvider{prefix: "x:"}
	tr := NewTranslator(provider, testPolicy(), Config{}, nil)
	res := fixtureResult()

	err := tr.Translate(context.Background(), res, Options{Target: "EN-us"})
	require.NoError(t, err)
	assert.Equal(t, "en-US", res.Language)
}

func TestTranslateRejectsMalformedTags(t *testing.T) {
	provider := &echoProvider{prefix: "x:"}
	tr := NewTranslator(provider, testPolicy(), Config{}, nil)

	for _, tag := range []string{"", "   ", "de!!", "not a tag"} {
		err := tr.Translate(context.Background(), fixtureResult(), Options{Target: tag})
		require.Error(t, err, "tag %q", tag)
		var app *common.AppError
		require.ErrorAs(t, err, &app)
		assert.Equal(t, common.CodeInvalidRequest, app.Code)
	}
	assert.Empty(t, provider.requests, "no model call for an unusable tag")
}

func TestTranslateImagePassIsBestEffort(t *testing.T) {
	overloaded := &llm.StatusError{Code: 500, Message: "boom"}
	provider := &echoProvider{
		prefix: "de:",
		// content batch succeeds; every image-batch attempt fails
		errs: []error{nil, overloaded, overloaded, overloaded},
	}
	tr := NewTranslator(provider, testPolicy(), Config{}, nil)
	res := fixtureResult()

	err := tr.Translate(context.Background(), res, Options{Target: "de", TranslateImages: true})
	require.NoError(t, err, "a failed image pass downgrades, it does not abort")

	assert.Equal(t, "de:The Title", res.Title)
	assert.Equal(t, "A skyline", res.Items[10].Alt, "image text keeps the original")
	assert.Len(t, provider.requests, 4, "content call plus three exhausted image attempts")
}

func TestTranslateImageAuthFailureAborts(t *testing.T) {
	provider := &echoProvider{
		prefix: "de:",
		errs:   []error{nil, &llm.StatusError{Code: 401, Message: "bad key"}},
	}
	tr := NewTranslator(provider, testPolicy(), Config{}, nil)

	err := tr.Translate(context.Background(), fixtureResult(), Options{Target: "de", TranslateImages: true})
	require.Error(t, err)
	assert.True(t, llm.IsAuth(err))
	assert.Len(t, provider.requests, 2, "auth failures burn no retry budget")
}

func TestTranslateImagesWhenRequested(t *testing.T) {
	provider := &echoProvider{prefix: "de:"}
	tr := NewTranslator(provider, testPolicy(), Config{}, nil)
	res := fixtureResult()

	err := tr.Translate(context.Background(), res, Options{Target: "de", TranslateImages: true})
	require.NoError(t, err)

	assert.Equal(t, "de:A skyline", res.Items[10].Alt)
	assert.Equal(t, "de:Photo: somebody", res.Items[10].Caption)
	assert.Equal(t, "https://example.com/pic.jpg", res.Items[10].Src, "src is not text")
	require.Len(t, provider.requests, 2)
	assert.Contains(t, provider.requests[1].System, "exactly 2 strings")
}

// scriptedProvider returns a fixed body per call, for responses the echo
// provider cannot express.
type scriptedProvider struct {
	t         *testing.T
	responses []string
	requests  []llm.Request
}

func (p *scriptedProvider) Complete(_ context.Context, req llm.Request) ([]byte, error) {
	i := len(p.requests)
	p.requests = append(p.requests, req)
	require.Less(p.t, i, len(p.responses), "scripted provider exhausted")
	return []byte(p.responses[i]), nil
}

func TestTranslateKeepsOriginalForBlankTranslations(t *testing.T) {
	provider := &scriptedProvider{t: t, responses: []string{
		`{"translations":["de:Kept",""]}`,
	}}
	tr := NewTranslator(provider, testPolicy(), Config{}, nil)
	res := &entity.ClipResult{Items: []entity.ContentItem{
		entity.Heading(1, "Kept"),
		entity.Paragraph("Survives a blank answer."),
	}}

	err := tr.Translate(context.Background(), res, Options{Target: "de"})
	require.NoError(t, err)
	assert.Equal(t, "de:Kept", res.Items[0].Text)
	assert.Equal(t, "Survives a blank answer.", res.Items[1].HTML)
}

func TestTranslateEmptyResultJustStampsLanguage(t *testing.T) {
	provider := &echoProvider{prefix: "de:"}
	tr := NewTranslator(provider, testPolicy(), Config{}, nil)
	res := &entity.ClipResult{Items: []entity.ContentItem{entity.Separator()}}

	err := tr.Translate(context.Background(), res, Options{Target: "de"})
	require.NoError(t, err)
	assert.Equal(t, "de", res.Language)
	assert.Empty(t, provider.requests)
}

func TestSummarizeProducesAnAbstract(t *testing.T) {
	provider := &scriptedProvider{t: t, responses: []string{
		"  A tidy abstract of the article. It says things.  ",
	}}
	s := NewSummarizer(provider, 0, nil)

	summary, err := s.Summarize(context.Background(), fixtureResult())
	require.NoError(t, err)
	assert.Equal(t, "A tidy abstract of the article. It says things.", summary)

	require.Len(t, provider.requests, 1)
	req := provider.requests[0]
	assert.False(t, req.ForceJSON, "summary is the one plain-text call")
	assert.Equal(t, 300, req.MaxTokens)
	assert.Contains(t, req.User, "Title: The Title")
	assert.Contains(t, req.User, "Quoted words.")
}

func TestSummarizeFailsWithoutTextContent(t *testing.T) {
	provider := &echoProvider{}
	s := NewSummarizer(provider, 0, nil)

	_, err := s.Summarize(context.Background(), &entity.ClipResult{
		Items: []entity.ContentItem{entity.Image("https://example.com/p.jpg", "", "")},
	})
	require.Error(t, err)
	assert.Empty(t, provider.requests)
}
