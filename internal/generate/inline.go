package generate

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/webclip-dev/webclip/internal/entity"
)

// inlineTags is the closed set of markup an html field may carry. Anything
// else is unwrapped to its text by the renderers.
var inlineTags = map[string]struct{}{
	"b": {}, "i": {}, "em": {}, "strong": {}, "a": {}, "code": {}, "sub": {}, "sup": {},
}

// parseInline parses an inline fragment into nodes. The second return is false
// when the fragment cannot be parsed; callers fall back to the stripped text.
func parseInline(raw string) ([]*html.Node, bool) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(raw), body)
	if err != nil {
		return nil, false
	}
	return nodes, true
}

// inlinePlain flattens an inline fragment to text, for contexts that cannot
// carry markup at all.
func inlinePlain(raw string) string {
	return entity.StripTags(raw)
}

func nodeAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
