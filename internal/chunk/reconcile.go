package chunk

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/webclip-dev/webclip/internal/entity"
)

type dedupKey struct {
	kind   entity.ContentKind
	length int
	hash   uint32
}

// Reconcile merges per-chunk extraction results into one ordered result.
// Items are concatenated in chunk order and deduplicated on
// (kind, length, djb2 of the full content); the first occurrence wins, which
// removes the copies the overlap bands produce. Document-level metadata is
// taken from chunk 0 only: a middle or tail chunk lacks the page-level
// context to identify it reliably, so later chunks' metadata is discarded.
func Reconcile(results []*entity.ClipResult) *entity.ClipResult {
	merged := &entity.ClipResult{}
	if len(results) == 0 {
		return merged
	}

	if first := results[0]; first != nil {
		merged.Title = first.Title
		merged.Author = first.Author
		merged.PublishedAt = first.PublishedAt
		merged.SiteName = first.SiteName
		merged.Language = first.Language
	}
	merged.ChunkCount = len(results)

	seen := make(map[dedupKey]struct{})
	for _, result := range results {
		if result == nil {
			continue
		}
		for _, item := range result.Items {
			// Content-free items (separators, infobox ends, untitled infobox
			// starts) legitimately repeat in a document and are never deduped.
			if content := Fingerprint(item); content != "" {
				key := dedupKey{kind: item.Kind, length: len(content), hash: djb2(content)}
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}
			item.ID = fmt.Sprintf("item-%04d", len(merged.Items))
			merged.Items = append(merged.Items, item)
		}
	}
	return merged
}

// Fingerprint returns the canonical content string hashed for deduplication.
// The whole content is used rather than a head/tail sample: extracted items
// frequently share prefixes and suffixes, and a truncated sample would cause
// false-positive collisions.
func Fingerprint(item entity.ContentItem) string {
	switch item.Kind {
	case entity.KindHeading:
		return strconv.Itoa(item.Level) + "|" + item.Text
	case entity.KindParagraph, entity.KindQuote:
		return item.HTML
	case entity.KindImage:
		return item.Src + "|" + item.Alt + "|" + item.Caption
	case entity.KindList:
		prefix := "ul|"
		if item.Ordered {
			prefix = "ol|"
		}
		return prefix + strings.Join(item.Items, "\x1f")
	case entity.KindTable:
		var b strings.Builder
		b.WriteString(strings.Join(item.Headers, "\x1f"))
		for _, row := range item.Rows {
			b.WriteString("\x1e")
			b.WriteString(strings.Join(row, "\x1f"))
		}
		return b.String()
	case entity.KindCode:
		return item.Language + "|" + item.Text
	case entity.KindSubtitle:
		return item.Text + "|" + item.HTML
	case entity.KindInfoboxStart:
		return item.Title
	}
	// separator, infobox_end carry no content
	return ""
}

// djb2 is the classic Bernstein string hash: h = h*33 + c, seeded with 5381.
// Non-cryptographic on purpose; collisions also need matching kind and length
// to cause a false drop.
func djb2(s string) uint32 {
	var h uint32 = 5381
	for i := 0; i < len(s); i++ {
		h = h*33 + uint32(s[i])
	}
	return h
}
