package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// PrepareHTML reduces a raw page to the markup worth sending to a model:
// scripts, styles, embedded SVG, form chrome, and comments are dropped and
// the body is isolated. The surviving markup keeps its structure so chunk
// boundaries can still snap to closing tags.
func PrepareHTML(pageHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return pageHTML
	}

	doc.Find("script,style,noscript,template,iframe,svg,form,button,input,select,textarea,link,meta").Remove()
	for _, root := range doc.Nodes {
		stripComments(root)
	}

	body := doc.Find("body").First()
	if body.Length() > 0 {
		if inner, err := body.Html(); err == nil && strings.TrimSpace(inner) != "" {
			return strings.TrimSpace(inner)
		}
	}
	if out, err := doc.Html(); err == nil {
		return strings.TrimSpace(out)
	}
	return pageHTML
}

func stripComments(n *html.Node) {
	c := n.FirstChild
	for c != nil {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			stripComments(c)
		}
		c = next
	}
}
