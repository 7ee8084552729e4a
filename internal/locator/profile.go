package locator

import "github.com/polzovatel/navshot/internal/snapshot"

// Profile holds the DOM conventions of the target application. The
// selector lists are ordered heuristics: the first one yielding a match
// wins, none of them is authoritative.
type Profile struct {
	MenuItemSelectors    []string `mapstructure:"menu_item_selectors"`
	SubmenuItemSelectors []string `mapstructure:"submenu_item_selectors"`
	LabelSelectors       []string `mapstructure:"label_selectors"`
	LabelAttributes      []string `mapstructure:"label_attributes"`
	SubmenuIndicator     string   `mapstructure:"submenu_indicator"`
	IconTags             []string `mapstructure:"icon_tags"`
	IconClass            string   `mapstructure:"icon_class"`
	ItemClass            string   `mapstructure:"item_class"`
	SubmenuItemClass     string   `mapstructure:"submenu_item_class"`
	HeaderClass          string   `mapstructure:"header_class"`
	BackClass            string   `mapstructure:"back_class"`
	InvisibleClass       string   `mapstructure:"invisible_class"`
}

// DefaultProfile describes the sidebar navigation of the target app.
func DefaultProfile() Profile {
	return Profile{
		MenuItemSelectors: []string{
			"//nav[" + snapshot.ClassPredicate("side-menu") + "]/ul/li[" + snapshot.ClassPredicate("menu-item") + "]",
			"//ul[" + snapshot.ClassPredicate("menu-list") + "]/li",
			"//*[contains(@class, 'menu-item') and not(ancestor::*[contains(@class, 'submenu')])]",
		},
		SubmenuItemSelectors: []string{
			"//div[" + snapshot.ClassPredicate("submenu-panel") + "]//li[" + snapshot.ClassPredicate("submenu-item") + "]",
			"//*[contains(@class, 'submenu')]//li",
		},
		LabelSelectors: []string{
			"./span[" + snapshot.ClassPredicate("menu-title") + "]",
			"./a/span[contains(@class, 'title')]",
			"./span[contains(@class, 'label')]",
		},
		LabelAttributes:  []string{"aria-label", "data-label", "title"},
		SubmenuIndicator: ".//i[contains(@class, 'chevron') or normalize-space(.)='chevron_right']",
		IconTags:         []string{"i", "svg"},
		IconClass:        "icon",
		ItemClass:        "menu-item",
		SubmenuItemClass: "submenu-item",
		HeaderClass:      "menu-header",
		BackClass:        "menu-back",
		InvisibleClass:   "invisible",
	}
}
