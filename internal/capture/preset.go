package capture

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Preset is a named viewport size.
type Preset struct {
	Name   string `json:"name" yaml:"name"`
	Width  int    `json:"width" yaml:"width"`
	Height int    `json:"height" yaml:"height"`
}

// FullPage is the preset name selecting a full-content-height capture at
// the desktop width.
const FullPage = "fullPage"

// DefaultPreset is used when no preset is configured.
const DefaultPreset = "desktop"

var presets = map[string]Preset{
	"desktop": {Name: "desktop", Width: 1920, Height: 1080},
	"laptop":  {Name: "laptop", Width: 1366, Height: 768},
	"tablet":  {Name: "tablet", Width: 768, Height: 1024},
	"mobile":  {Name: "mobile", Width: 375, Height: 667},
}

// LookupPreset resolves name. "fullPage" resolves to the desktop preset
// with fullPage set.
func LookupPreset(name string) (p Preset, fullPage bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultPreset
	}
	if strings.EqualFold(name, FullPage) {
		return presets[DefaultPreset], true, nil
	}
	if p, ok := presets[strings.ToLower(name)]; ok {
		return p, false, nil
	}
	return Preset{}, false, fmt.Errorf("unknown preset %q (known: %s, %s)", name, strings.Join(PresetNames(), ", "), FullPage)
}

// PresetNames lists the fixed-size presets.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Metrics are the document dimensions read from the live page.
type Metrics struct {
	BodyScrollHeight float64   `json:"bodyScrollHeight"`
	BodyOffsetHeight float64   `json:"bodyOffsetHeight"`
	DocScrollHeight  float64   `json:"docScrollHeight"`
	DocOffsetHeight  float64   `json:"docOffsetHeight"`
	ElementBottoms   []float64 `json:"elementBottoms"`
}

// FullPageHeight is the height needed to show all content: the largest of
// the body and document heights and every element's bottom edge, never
// less than base. Absolutely positioned content can extend past the
// normal flow, hence the per-element scan.
func FullPageHeight(m Metrics, base int) int {
	h := math.Max(math.Max(m.BodyScrollHeight, m.BodyOffsetHeight), math.Max(m.DocScrollHeight, m.DocOffsetHeight))
	for _, b := range m.ElementBottoms {
		if b > h {
			h = b
		}
	}
	height := int(math.Ceil(h))
	if height < base {
		return base
	}
	return height
}
