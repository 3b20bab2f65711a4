package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// TrimJSONFences strips a markdown code fence some models wrap around JSON
// output despite response_format. The inner payload is returned untouched.
func TrimJSONFences(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return raw
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return []byte(strings.TrimSpace(s))
}

// SanitizeExtraction repairs common model slip-ups in an extraction response
// before schema validation gets a second chance:
//   - drops items with an unknown or missing kind
//   - coerces numeric heading levels into 1..6
//   - drops null fields and unknown item keys
//   - trims metadata strings, dropping empties
//
// It returns the cleaned JSON plus a description of everything removed.
func SanitizeExtraction(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)

	// Top-level metadata: trim strings, drop empties and nulls, remove
	// anything the schema does not know about.
	metaKeys := map[string]struct{}{
		"title": {}, "author": {}, "published_at": {}, "site_name": {}, "language": {}, "items": {},
	}
	for k, v := range m {
		if _, ok := metaKeys[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
			continue
		}
		if k == "items" {
			continue
		}
		switch t := v.(type) {
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		case nil:
			delete(m, k)
			dropped = append(dropped, k+"(null)")
		default:
			delete(m, k)
			dropped = append(dropped, k+"(type)")
		}
	}

	rawItems, _ := m["items"].([]any)
	cleaned := make([]any, 0, len(rawItems))
	for i, entry := range rawItems {
		item, ok := entry.(map[string]any)
		if !ok {
			dropped = append(dropped, fmt.Sprintf("items[%d](not object)", i))
			continue
		}
		kind, _ := item["kind"].(string)
		if _, known := itemKinds[kind]; !known {
			dropped = append(dropped, fmt.Sprintf("items[%d](kind=%q)", i, kind))
			continue
		}
		for k, v := range item {
			if _, ok := itemKeys[k]; !ok {
				delete(item, k)
				dropped = append(dropped, fmt.Sprintf("items[%d].%s(unknown)", i, k))
				continue
			}
			if v == nil {
				delete(item, k)
				dropped = append(dropped, fmt.Sprintf("items[%d].%s(null)", i, k))
			}
		}
		if lv, ok := item["level"].(float64); ok {
			switch {
			case lv < 1:
				item["level"] = 1
			case lv > 6:
				item["level"] = 6
			}
		}
		cleaned = append(cleaned, item)
	}
	m["items"] = cleaned

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

var itemKinds = map[string]struct{}{
	"heading": {}, "paragraph": {}, "image": {}, "list": {}, "quote": {},
	"table": {}, "code": {}, "separator": {}, "subtitle": {},
	"infobox_start": {}, "infobox_end": {},
}

var itemKeys = map[string]struct{}{
	"kind": {}, "text": {}, "level": {}, "html": {}, "src": {}, "alt": {},
	"caption": {}, "ordered": {}, "items": {}, "headers": {}, "rows": {},
	"language": {}, "title": {},
}
