package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorSchemaAcceptsMinimalAndFullSets(t *testing.T) {
	schema := BuildSelectorJSONSchema()

	require.NoError(t, ValidateJSONAgainstSchema(schema, []byte(`{"container":"article.post"}`)))

	full := []byte(`{
		"container": "main#content",
		"content_selector": "div.article-body",
		"exclude_list": [".ads", "nav", ".related"],
		"title": "h1.headline",
		"author": ".byline a",
		"subtitle": "p.standfirst",
		"hero_image": "figure.lead img"
	}`)
	require.NoError(t, ValidateJSONAgainstSchema(schema, full))
}

func TestSelectorSchemaRejectsMissingContainerAndUnknownKeys(t *testing.T) {
	schema := BuildSelectorJSONSchema()

	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(`{"title":"h1"}`)))
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(`{"container":""}`)))
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(`{"container":"article","confidence":0.9}`)))
}

func TestExtractionSchemaRoundTripThroughParseJSON(t *testing.T) {
	schema := BuildExtractionJSONSchema()
	doc := []byte(`{
		"title": "On Parsing",
		"language": "en",
		"items": [
			{"kind": "heading", "level": 1, "text": "On Parsing"},
			{"kind": "paragraph", "html": "Grammars are <em>everywhere</em>."},
			{"kind": "image", "src": "https://example.com/a.png", "alt": "diagram"},
			{"kind": "list", "ordered": true, "items": ["first", "second"]},
			{"kind": "separator"}
		]
	}`)

	payload, err := ParseJSON[ExtractionPayload](schema, doc)
	require.NoError(t, err)
	assert.Equal(t, "On Parsing", payload.Title)
	assert.Equal(t, "en", payload.Language)
	require.Len(t, payload.Items, 5)
	assert.Equal(t, 1, payload.Items[0].Level)
	assert.True(t, payload.Items[3].Ordered)
}

func TestExtractionSchemaRejectsBadItems(t *testing.T) {
	schema := BuildExtractionJSONSchema()

	// kind outside the closed set
	assert.Error(t, ValidateJSONAgainstSchema(schema,
		[]byte(`{"items":[{"kind":"video","src":"x"}]}`)))
	// heading level out of range
	assert.Error(t, ValidateJSONAgainstSchema(schema,
		[]byte(`{"items":[{"kind":"heading","level":9,"text":"x"}]}`)))
	// published_at must be a calendar date
	assert.Error(t, ValidateJSONAgainstSchema(schema,
		[]byte(`{"published_at":"yesterday","items":[]}`)))
	// items is mandatory even when empty
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(`{"title":"x"}`)))
}

func TestTranslationSchemaPinsExactCount(t *testing.T) {
	schema := BuildTranslationJSONSchema(2)

	require.NoError(t, ValidateJSONAgainstSchema(schema,
		[]byte(`{"translations":["eins","zwei"]}`)))
	assert.Error(t, ValidateJSONAgainstSchema(schema,
		[]byte(`{"translations":["eins"]}`)))
	assert.Error(t, ValidateJSONAgainstSchema(schema,
		[]byte(`{"translations":["eins","zwei","drei"]}`)))
}

func TestSanitizeExtractionDropsUnknownKindsAndRepairsLevels(t *testing.T) {
	raw := []byte(`{
		"title": "  Spaced  ",
		"author": null,
		"word_count": 812,
		"items": [
			{"kind": "heading", "level": 9, "text": "Top"},
			{"kind": "video", "src": "https://example.com/v.mp4"},
			{"kind": "paragraph", "html": "fine", "confidence": 0.8},
			{"kind": "paragraph", "html": null}
		]
	}`)

	cleaned, dropped, err := SanitizeExtraction(raw, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, dropped)

	schema := BuildExtractionJSONSchema()
	require.NoError(t, ValidateJSONAgainstSchema(schema, cleaned))

	payload, err := ParseJSON[ExtractionPayload](schema, cleaned)
	require.NoError(t, err)
	assert.Equal(t, "Spaced", payload.Title)
	assert.Empty(t, payload.Author)
	require.Len(t, payload.Items, 3, "video item should be gone")
	assert.Equal(t, 6, payload.Items[0].Level, "level clamped into range")
	assert.Empty(t, payload.Items[2].HTML, "null html dropped, item kept")
}

func TestTrimJSONFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, string(TrimJSONFences([]byte("```json\n{\"a\":1}\n```"))))
	assert.Equal(t, `{"a":1}`, string(TrimJSONFences([]byte("```\n{\"a\":1}\n```"))))
	assert.Equal(t, `{"a":1}`, string(TrimJSONFences([]byte(`{"a":1}`))))
}
