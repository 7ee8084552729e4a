package locator

import (
	"fmt"
	"strings"

	"github.com/polzovatel/navshot/internal/sequence"
	"github.com/polzovatel/navshot/internal/snapshot"
)

// SelectorForText builds an XPath matching a tag element whose
// whitespace-normalized text content equals text. When scopeClass is set the
// element must carry that class or sit below an element carrying it.
func SelectorForText(tag, text, scopeClass string) string {
	return scoped(tagOrAny(tag), "normalize-space(.)="+snapshot.Literal(snapshot.NormalizeSpace(text)), scopeClass)
}

// SelectorForOwnText is SelectorForText matched against the element's own
// text nodes only, for items whose label sits next to icon children.
func SelectorForOwnText(tag, text, scopeClass string) string {
	return scoped(tagOrAny(tag), "text()[normalize-space(.)="+snapshot.Literal(snapshot.NormalizeSpace(text))+"]", scopeClass)
}

// SelectorForAttr matches an element by exact attribute value.
func SelectorForAttr(tag, attr, value string) string {
	return fmt.Sprintf("//%s[@%s=%s]", tagOrAny(tag), attr, snapshot.Literal(value))
}

func scoped(tag, predicate, scopeClass string) string {
	if strings.TrimSpace(scopeClass) == "" {
		return fmt.Sprintf("//%s[%s]", tag, predicate)
	}
	return fmt.Sprintf("//*[%s]/descendant-or-self::%s[%s]", snapshot.ClassPredicate(scopeClass), tag, predicate)
}

func tagOrAny(tag string) string {
	tag = strings.TrimSpace(strings.ToLower(tag))
	if tag == "" {
		return "*"
	}
	return tag
}

// Strategy turns a located item into a replayable selector. Implementations
// are swappable; the text strategy is the default.
type Strategy interface {
	Name() string
	Selector(item MenuItem) (string, sequence.SelectorKind)
	// ForIdentifier builds a selector from a bare identifier, used when the
	// item could not be located and a best-effort sequence is still wanted.
	ForIdentifier(identifier, scopeClass string) (string, sequence.SelectorKind)
}

// TextStrategy addresses items by their visible text.
type TextStrategy struct{}

func (TextStrategy) Name() string { return "text" }

func (TextStrategy) Selector(item MenuItem) (string, sequence.SelectorKind) {
	switch item.Source {
	case SourceLabel:
		return SelectorForText(item.LabelTag, item.Identifier, item.Scope), sequence.KindText
	case SourceOwnText:
		return SelectorForOwnText(item.Tag, item.Identifier, item.Scope), sequence.KindText
	default:
		return SelectorForText("", item.Identifier, item.Scope), sequence.KindText
	}
}

func (TextStrategy) ForIdentifier(identifier, scopeClass string) (string, sequence.SelectorKind) {
	return SelectorForText("", identifier, scopeClass), sequence.KindText
}

// LabelStrategy addresses items by their attribute label (aria-label and
// friends), falling back to text for items that carry none.
type LabelStrategy struct{}

func (LabelStrategy) Name() string { return "label" }

func (LabelStrategy) Selector(item MenuItem) (string, sequence.SelectorKind) {
	if item.Label != "" && item.LabelAttr != "" {
		return SelectorForAttr(item.Tag, item.LabelAttr, item.Label), sequence.KindLabel
	}
	return TextStrategy{}.Selector(item)
}

func (LabelStrategy) ForIdentifier(identifier, scopeClass string) (string, sequence.SelectorKind) {
	return TextStrategy{}.ForIdentifier(identifier, scopeClass)
}

// StrategyByName resolves a configured strategy name.
func StrategyByName(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text":
		return TextStrategy{}, nil
	case "label", "attribute":
		return LabelStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown locator strategy %q", name)
	}
}
