// Package locator finds menu and submenu items in a document snapshot and
// turns them into selectors that stay valid for replay.
package locator

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/polzovatel/navshot/internal/poll"
	"github.com/polzovatel/navshot/internal/snapshot"
)

// IdentifierSource records where an item's identifier was read from.
type IdentifierSource string

const (
	SourceLabel   IdentifierSource = "label"
	SourceOwnText IdentifierSource = "own-text"
	SourceContent IdentifierSource = "content"
)

// MenuItem is one navigable entry. It is only meaningful for the snapshot
// it was read from.
type MenuItem struct {
	Identifier    string           `json:"identifier" yaml:"identifier"`
	HasChildren   bool             `json:"hasChildren" yaml:"hasChildren"`
	IsHeader      bool             `json:"isHeader,omitempty" yaml:"isHeader,omitempty"`
	IsBackControl bool             `json:"isBackControl,omitempty" yaml:"isBackControl,omitempty"`
	Hidden        bool             `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Label         string           `json:"label,omitempty" yaml:"label,omitempty"`
	LabelAttr     string           `json:"-" yaml:"-"`
	Source        IdentifierSource `json:"-" yaml:"-"`
	Tag           string           `json:"-" yaml:"-"`
	LabelTag      string           `json:"-" yaml:"-"`
	Scope         string           `json:"-" yaml:"-"`
	Node          *html.Node       `json:"-" yaml:"-"`
}

// Navigable reports whether the item can be the target of a sequence.
func (m MenuItem) Navigable() bool {
	return !m.IsHeader && !m.IsBackControl && m.Identifier != ""
}

// LocateMenuItems returns the navigable top-level items of doc in document
// order. Absence is reported as an empty slice.
func LocateMenuItems(doc *html.Node, p Profile) []MenuItem {
	return navigable(ScanMenuItems(doc, p))
}

// ScanMenuItems is LocateMenuItems without the navigability filter.
func ScanMenuItems(doc *html.Node, p Profile) []MenuItem {
	return scan(firstMatching(doc, p.MenuItemSelectors), p, p.ItemClass)
}

// SubmenuItems reads the submenu entries currently rendered in doc.
func SubmenuItems(doc *html.Node, p Profile) []MenuItem {
	return navigable(scan(firstMatching(doc, p.SubmenuItemSelectors), p, p.SubmenuItemClass))
}

// LocateSubmenu polls src until a submenu with at least one item has been
// rendered, or the policy runs out. Submenus render asynchronously after the
// parent click with no load event to wait on.
func LocateSubmenu(ctx context.Context, src snapshot.Source, p Profile, policy poll.Policy) []MenuItem {
	logger := zerolog.Ctx(ctx)
	var items []MenuItem
	err := poll.Until(ctx, policy, func(ctx context.Context, attempt int) (bool, error) {
		doc, err := src.Snapshot(ctx)
		if err != nil {
			logger.Debug().Err(err).Int("attempt", attempt).Msg("submenu snapshot failed")
			return false, nil
		}
		items = SubmenuItems(doc, p)
		return len(items) > 0, nil
	})
	if err != nil {
		logger.Debug().Err(err).Dur("waited", policy.Timeout()).Msg("submenu not rendered")
		return nil
	}
	return items
}

// FindItem returns the first item whose identifier, or failing that whose
// attribute label, equals identifier after whitespace normalization.
func FindItem(items []MenuItem, identifier string) (MenuItem, bool) {
	want := snapshot.NormalizeSpace(identifier)
	for _, it := range items {
		if it.Identifier == want {
			return it, true
		}
	}
	for _, it := range items {
		if it.Label != "" && it.Label == want {
			return it, true
		}
	}
	return MenuItem{}, false
}

func firstMatching(doc *html.Node, selectors []string) []*html.Node {
	for _, sel := range selectors {
		nodes, err := snapshot.Query(doc, sel)
		if err != nil {
			continue
		}
		if len(nodes) > 0 {
			return nodes
		}
	}
	return nil
}

func navigable(items []MenuItem) []MenuItem {
	out := make([]MenuItem, 0, len(items))
	for _, it := range items {
		if it.Navigable() {
			out = append(out, it)
		}
	}
	return out
}

func scan(nodes []*html.Node, p Profile, scope string) []MenuItem {
	items := make([]MenuItem, 0, len(nodes))
	for _, n := range nodes {
		it := MenuItem{
			Tag:           snapshot.Tag(n),
			Scope:         scopeFor(n, scope),
			Node:          n,
			IsHeader:      p.HeaderClass != "" && snapshot.ClassContains(n, p.HeaderClass),
			IsBackControl: p.BackClass != "" && snapshot.ClassContains(n, p.BackClass),
			Hidden:        p.InvisibleClass != "" && snapshot.HasClass(n, p.InvisibleClass),
			HasChildren:   p.SubmenuIndicator != "" && snapshot.QueryOne(n, p.SubmenuIndicator) != nil,
		}
		it.Identifier, it.Source, it.LabelTag = identify(n, p)
		for _, attr := range p.LabelAttributes {
			if v := snapshot.NormalizeSpace(snapshot.Attr(n, attr)); v != "" {
				it.Label, it.LabelAttr = v, attr
				break
			}
		}
		items = append(items, it)
	}
	return items
}

// scopeFor keeps class as the selector scope only when n or one of its
// ancestors carries it. Items matched by a fallback heuristic usually don't.
func scopeFor(n *html.Node, class string) string {
	if class == "" {
		return ""
	}
	for a := n; a != nil; a = a.Parent {
		if a.Type == html.ElementNode && snapshot.HasClass(a, class) {
			return class
		}
	}
	return ""
}

func identify(n *html.Node, p Profile) (string, IdentifierSource, string) {
	for _, sel := range p.LabelSelectors {
		if label := snapshot.QueryOne(n, sel); label != nil {
			if text := snapshot.Text(label); text != "" {
				return text, SourceLabel, snapshot.Tag(label)
			}
		}
	}
	if text := snapshot.OwnText(n); text != "" {
		return text, SourceOwnText, ""
	}
	text := snapshot.TextExcluding(n, func(c *html.Node) bool { return isIcon(c, p) })
	return text, SourceContent, ""
}

func isIcon(n *html.Node, p Profile) bool {
	tag := snapshot.Tag(n)
	for _, t := range p.IconTags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return p.IconClass != "" && snapshot.ClassContains(n, p.IconClass)
}
