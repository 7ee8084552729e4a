// Package output renders command results and persists capture artifacts.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/polzovatel/navshot/internal/locator"
)

// Format is how results are printed.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts text, json and yaml (or yml).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "table":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Structured writes v as JSON or YAML.
func Structured(w io.Writer, f Format, v interface{}) error {
	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("yaml encode: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("json encode: %w", err)
		}
		return nil
	}
}

// MenuItems prints discovered items, as a table for FormatText.
func MenuItems(w io.Writer, f Format, items []locator.MenuItem) error {
	if items == nil {
		items = []locator.MenuItem{}
	}
	if f != FormatText {
		return Structured(w, f, items)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tITEM\tSUBMENU\tLABEL")
	for i, it := range items {
		sub := ""
		if it.HasChildren {
			sub = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, it.Identifier, sub, it.Label)
	}
	return tw.Flush()
}
