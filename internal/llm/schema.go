package llm

// JSON-Schema builders (draft 2020-12 subset) as generic maps. We pass these
// to the provider as structured-output constraints and also use them locally
// to validate what came back.

// BuildSelectorJSONSchema constrains a selector-inference response. Only the
// container is mandatory; everything else degrades gracefully.
func BuildSelectorJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"container":        map[string]any{"type": "string", "minLength": 1},
			"content_selector": map[string]any{"type": "string"},
			"exclude_list": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "minLength": 1},
			},
			"title":      map[string]any{"type": "string"},
			"author":     map[string]any{"type": "string"},
			"subtitle":   map[string]any{"type": "string"},
			"hero_image": map[string]any{"type": "string"},
		},
		"required": []string{"container"},
	}
}

// BuildExtractionJSONSchema constrains a chunk-extraction response: page
// metadata plus the ordered item list.
func BuildExtractionJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"title":        map[string]any{"type": "string"},
			"author":       map[string]any{"type": "string"},
			"published_at": map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
			"site_name":    map[string]any{"type": "string"},
			"language":     map[string]any{"type": "string", "minLength": 2},
			"items": map[string]any{
				"type":  "array",
				"items": contentItemProp(),
			},
		},
		"required": []string{"items"},
	}
}

func contentItemProp() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"kind": map[string]any{
				"type": "string",
				"enum": []string{
					"heading", "paragraph", "image", "list", "quote", "table",
					"code", "separator", "subtitle", "infobox_start", "infobox_end",
				},
			},
			"text":    map[string]any{"type": "string"},
			"level":   map[string]any{"type": "integer", "minimum": 1, "maximum": 6},
			"html":    map[string]any{"type": "string"},
			"src":     map[string]any{"type": "string"},
			"alt":     map[string]any{"type": "string"},
			"caption": map[string]any{"type": "string"},
			"ordered": map[string]any{"type": "boolean"},
			"items": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"headers": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"rows": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
			"language": map[string]any{"type": "string"},
			"title":    map[string]any{"type": "string"},
		},
		"required": []string{"kind"},
	}
}

// BuildTranslationJSONSchema constrains a translation batch response to
// exactly count strings so positional alignment with the inputs holds.
func BuildTranslationJSONSchema(count int) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"translations": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": count,
				"maxItems": count,
			},
		},
		"required": []string{"translations"},
	}
}
