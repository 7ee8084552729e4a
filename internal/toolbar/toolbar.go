// Package toolbar probes the page-specific action toolbar. The toolbar has
// no stable class or id, so it is addressed by a fixed positional path.
package toolbar

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/polzovatel/navshot/internal/poll"
	"github.com/polzovatel/navshot/internal/sequence"
	"github.com/polzovatel/navshot/internal/snapshot"
)

// Kind distinguishes native buttons from button-like elements.
type Kind string

const (
	KindButton  Kind = "button"
	KindControl Kind = "control"
)

// Control is one actionable toolbar entry. Selector is valid for the
// document instance it was read from.
type Control struct {
	Name         string                `json:"name" yaml:"name"`
	Selector     string                `json:"selector" yaml:"selector"`
	SelectorKind sequence.SelectorKind `json:"selectorKind" yaml:"selectorKind"`
	Kind         Kind                  `json:"kind" yaml:"kind"`
	Enabled      bool                  `json:"enabled" yaml:"enabled"`
	Position     int                   `json:"position" yaml:"position"`
}

// Profile holds the toolbar conventions of the target application.
type Profile struct {
	ContainerPath      string            `mapstructure:"container_path"`
	PrimaryActionClass string            `mapstructure:"primary_action_class"`
	ComponentPathAttr  string            `mapstructure:"component_path_attr"`
	DisabledClass      string            `mapstructure:"disabled_class"`
	IconNames          map[string]string `mapstructure:"icon_names"`
}

// DefaultProfile describes the toolbar of the target app.
func DefaultProfile() Profile {
	return Profile{
		ContainerPath:      "//main/div[1]/div[2]",
		PrimaryActionClass: "primary-action",
		ComponentPathAttr:  "data-component-path",
		DisabledClass:      "disabled",
		IconNames: map[string]string{
			"add":         "Add",
			"edit":        "Edit",
			"delete":      "Delete",
			"refresh":     "Refresh",
			"search":      "Search",
			"filter_list": "Filter",
			"download":    "Export",
			"upload":      "Import",
			"print":       "Print",
			"save":        "Save",
			"settings":    "Settings",
		},
	}
}

func (p Profile) clickable(n *html.Node) bool {
	switch snapshot.Tag(n) {
	case "button":
		return true
	case "div":
		return p.PrimaryActionClass != "" && snapshot.HasClass(n, p.PrimaryActionClass)
	}
	return false
}

// Container returns the toolbar container in doc when it holds at least one
// clickable element.
func Container(doc *html.Node, p Profile) *html.Node {
	c := snapshot.QueryOne(doc, p.ContainerPath)
	if c == nil {
		return nil
	}
	if len(clickables(c, p)) == 0 {
		return nil
	}
	return c
}

// WaitForContainer polls src for the toolbar container. A nil container
// means the page has no toolbar, which is common and not an error. The
// snapshot the container was found in is returned with it.
func WaitForContainer(ctx context.Context, src snapshot.Source, p Profile, policy poll.Policy) (*html.Node, *html.Node) {
	logger := zerolog.Ctx(ctx)
	var container, doc *html.Node
	err := poll.Until(ctx, policy, func(ctx context.Context, attempt int) (bool, error) {
		d, err := src.Snapshot(ctx)
		if err != nil {
			logger.Debug().Err(err).Int("attempt", attempt).Msg("toolbar snapshot failed")
			return false, nil
		}
		if c := Container(d, p); c != nil {
			container, doc = c, d
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		logger.Debug().Err(err).Str("path", p.ContainerPath).Dur("waited", policy.Timeout()).Msg("toolbar not found")
		return nil, nil
	}
	return container, doc
}

// Probe waits for the toolbar and extracts its controls.
func Probe(ctx context.Context, src snapshot.Source, p Profile, policy poll.Policy) []Control {
	container, doc := WaitForContainer(ctx, src, p, policy)
	if container == nil {
		return nil
	}
	return ExtractControls(doc, p)
}

// ExtractControls re-locates the toolbar container in doc and describes
// every visible clickable in it. Controls resolving to the same name are
// all kept; Position tells them apart.
func ExtractControls(doc *html.Node, p Profile) []Control {
	c := Container(doc, p)
	if c == nil {
		return nil
	}
	var out []Control
	for i, n := range clickables(c, p) {
		if hiddenInline(snapshot.Attr(n, "style")) {
			continue
		}
		pos := i + 1
		sel, kind := selectorFor(n, p)
		ctl := Control{
			Name:         nameFor(n, p, pos),
			Selector:     sel,
			SelectorKind: kind,
			Kind:         KindControl,
			Enabled:      enabled(n, p),
			Position:     pos,
		}
		if snapshot.Tag(n) == "button" {
			ctl.Kind = KindButton
		}
		out = append(out, ctl)
	}
	return out
}

// clickables lists the outermost clickable elements below c in document
// order.
func clickables(c *html.Node, p Profile) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for _, ch := range snapshot.Elements(n) {
			if p.clickable(ch) {
				out = append(out, ch)
				continue
			}
			walk(ch)
		}
	}
	walk(c)
	return out
}

func enabled(n *html.Node, p Profile) bool {
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		if snapshot.HasAttr(cur, "disabled") {
			return false
		}
		if strings.EqualFold(snapshot.Attr(cur, "aria-disabled"), "true") {
			return false
		}
		if p.DisabledClass != "" && snapshot.ClassContains(cur, p.DisabledClass) {
			return false
		}
	}
	return true
}

// hiddenInline only inspects the inline style attribute. Computed styles
// would need a round trip to the browser per control.
func hiddenInline(style string) bool {
	for _, decl := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		val = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "!important")))
		if (prop == "display" && val == "none") || (prop == "visibility" && val == "hidden") {
			return true
		}
	}
	return false
}

func nameFor(n *html.Node, p Profile, pos int) string {
	if key := iconKey(n); key != "" {
		if name, ok := p.IconNames[key]; ok {
			return name
		}
	}
	if text := snapshot.TextExcluding(n, isIcon); text != "" {
		return text
	}
	if label := snapshot.NormalizeSpace(snapshot.Attr(n, "aria-label")); label != "" {
		return label
	}
	return fmt.Sprintf("Button %d", pos)
}

func iconKey(n *html.Node) string {
	icon := snapshot.QueryOne(n, ".//i | .//svg | .//span[contains(@class, 'icon')]")
	if icon == nil {
		return ""
	}
	if text := strings.ToLower(snapshot.Text(icon)); text != "" {
		return text
	}
	for _, c := range strings.Fields(snapshot.Attr(icon, "class")) {
		for _, prefix := range []string{"icon-", "mdi-", "fa-"} {
			if strings.HasPrefix(c, prefix) && len(c) > len(prefix) {
				return strings.ToLower(strings.TrimPrefix(c, prefix))
			}
		}
	}
	return ""
}

func isIcon(n *html.Node) bool {
	switch snapshot.Tag(n) {
	case "i", "svg":
		return true
	}
	return snapshot.ClassContains(n, "icon")
}

func selectorFor(n *html.Node, p Profile) (string, sequence.SelectorKind) {
	if p.ComponentPathAttr != "" {
		if v := snapshot.Attr(n, p.ComponentPathAttr); v != "" {
			return fmt.Sprintf("//*[@%s=%s]", p.ComponentPathAttr, snapshot.Literal(v)), sequence.KindComponentPath
		}
	}
	if id := snapshot.Attr(n, "id"); id != "" {
		return "//*[@id=" + snapshot.Literal(id) + "]", sequence.KindID
	}
	return snapshot.PositionalXPath(n), sequence.KindPositional
}
