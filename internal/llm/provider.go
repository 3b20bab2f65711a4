package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/webclip-dev/webclip/internal/entity"
)

// Request is one chat-style completion call. System carries the task
// instructions, User the page material; ForceJSON asks the provider for a
// JSON-only response.
type Request struct {
	System    string
	User      string
	MaxTokens int
	ForceJSON bool
}

// Provider is the interface the pipeline depends on. Complete returns the
// assistant message content as raw bytes (JSON when ForceJSON is set).
type Provider interface {
	Complete(ctx context.Context, req Request) ([]byte, error)
}

// ExtractionPayload is the normalized shape we want from a chunk extraction
// call. Metadata fields are optional; only chunk 0's metadata is trusted
// downstream.
type ExtractionPayload struct {
	Title       string               `json:"title,omitempty"`
	Author      string               `json:"author,omitempty"`
	PublishedAt string               `json:"published_at,omitempty"` // YYYY-MM-DD
	SiteName    string               `json:"site_name,omitempty"`
	Language    string               `json:"language,omitempty"` // BCP 47
	Items       []entity.ContentItem `json:"items"`
}

// TranslationPayload is the shape of a translation batch response: one
// translated string per input segment, same order.
type TranslationPayload struct {
	Translations []string `json:"translations"`
}

// ParseJSON validates data against schemaMap and unmarshals it into T.
func ParseJSON[T any](schemaMap map[string]any, data []byte) (T, error) {
	var out T
	if err := ValidateJSONAgainstSchema(schemaMap, data); err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("unmarshal payload: %w", err)
	}
	return out, nil
}
