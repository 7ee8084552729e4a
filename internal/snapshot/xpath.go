package snapshot

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// PositionalXPath builds an absolute, index-qualified path from the document
// root to n, e.g. /html[1]/body[1]/div[2]/button[1]. It is the least stable
// way to address an element: any sibling insertion upstream invalidates it.
func PositionalXPath(n *html.Node) string {
	if n == nil {
		return ""
	}
	var path []string
	for cur := n; cur != nil && cur.Type != html.DocumentNode; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		tag := strings.ToLower(cur.Data)
		index := 1
		for prev := cur.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
				index++
			}
		}
		path = append(path, fmt.Sprintf("%s[%d]", tag, index))
	}
	if len(path) == 0 {
		return "/"
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return "/" + strings.Join(path, "/")
}

// Literal renders s as an XPath string literal. XPath 1.0 has no escape
// syntax, so a value holding both quote kinds is split on single quotes and
// rebuilt with concat().
func Literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	args := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			args = append(args, `"'"`)
		}
		if p != "" {
			args = append(args, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}

// ClassPredicate is the XPath test for a whole class token.
func ClassPredicate(class string) string {
	return fmt.Sprintf("contains(concat(' ', normalize-space(@class), ' '), %s)", Literal(" "+class+" "))
}
