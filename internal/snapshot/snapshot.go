package snapshot

import (
	"context"
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Source yields a freshly parsed view of the live document. Every call
// reflects the document as it is at that moment.
type Source interface {
	Snapshot(ctx context.Context) (*html.Node, error)
}

// Parse turns serialized markup into a document tree.
func Parse(markup string) (*html.Node, error) {
	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return doc, nil
}

// Query evaluates an XPath expression relative to top. An invalid
// expression yields an error and no nodes.
func Query(top *html.Node, expr string) ([]*html.Node, error) {
	if top == nil || strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	nodes, err := htmlquery.QueryAll(top, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}
	return nodes, nil
}

// QueryOne is Query limited to the first match.
func QueryOne(top *html.Node, expr string) *html.Node {
	nodes, err := Query(top, expr)
	if err != nil || len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// NormalizeSpace mirrors XPath normalize-space().
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Text is the whitespace-normalized text content of n.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	return NormalizeSpace(htmlquery.InnerText(n))
}

// OwnText joins the direct text-node children of n, ignoring element
// children entirely. Text nested inside children never contributes.
func OwnText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
	}
	return NormalizeSpace(b.String())
}

// TextExcluding is the normalized text content of n with every subtree for
// which skip reports true left out.
func TextExcluding(n *html.Node, skip func(*html.Node) bool) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				b.WriteString(c.Data)
				b.WriteByte(' ')
			case html.ElementNode:
				if skip != nil && skip(c) {
					continue
				}
				walk(c)
			}
		}
	}
	walk(n)
	return NormalizeSpace(b.String())
}

// Attr returns the attribute value or "".
func Attr(n *html.Node, name string) string {
	if n == nil {
		return ""
	}
	return htmlquery.SelectAttr(n, name)
}

// HasAttr reports whether the attribute is present, even when empty.
func HasAttr(n *html.Node, name string) bool {
	if n == nil {
		return false
	}
	return htmlquery.ExistsAttr(n, name)
}

// HasClass reports whether n carries class as a whole token.
func HasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// ClassContains reports whether any class token of n contains sub.
func ClassContains(n *html.Node, sub string) bool {
	if sub == "" {
		return false
	}
	for _, c := range strings.Fields(Attr(n, "class")) {
		if strings.Contains(c, sub) {
			return true
		}
	}
	return false
}

// Tag is the lower-case element name, or "" for non-elements.
func Tag(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

// Elements returns the element children of n in document order.
func Elements(n *html.Node) []*html.Node {
	var out []*html.Node
	if n == nil {
		return out
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}
