// Package urlctx reconstructs navigation URLs from project/module/page
// context. The target app keeps a predictable URL scheme next to its DOM
// navigation, which makes it a recovery path when clicking fails to land on
// the expected page.
package urlctx

import (
	"net/url"
	"strings"
	"unicode"
)

// DefaultMarker is the path segment after which project/module/page follow.
const DefaultMarker = "app"

// Context is the structural position encoded in a URL.
type Context struct {
	Valid       bool     `json:"valid"`
	Project     string   `json:"project,omitempty"`
	Module      string   `json:"module,omitempty"`
	Page        string   `json:"page,omitempty"`
	RawSegments []string `json:"rawSegments,omitempty"`
}

// Depth is how many of project/module/page were resolved.
func (c Context) Depth() int {
	switch {
	case c.Page != "":
		return 3
	case c.Module != "":
		return 2
	case c.Project != "":
		return 1
	}
	return 0
}

// Parse splits raw on the marker segment. Hash routes (#/app/...) are
// honoured as well as plain paths.
func Parse(raw, marker string) Context {
	if marker == "" {
		marker = DefaultMarker
	}
	segs := routeSegments(raw)
	idx := indexOf(segs, marker)
	if idx < 0 {
		return Context{}
	}
	rest := segs[idx+1:]
	ctx := Context{Valid: len(rest) > 0, RawSegments: append([]string(nil), rest...)}
	if len(rest) > 0 {
		ctx.Project = rest[0]
	}
	if len(rest) > 1 {
		ctx.Module = rest[1]
	}
	if len(rest) > 2 {
		ctx.Page = rest[2]
	}
	return ctx
}

// ToURLSegment turns a display name into a path segment: whitespace is
// dropped first, then anything but letters, digits, '-' and '_'.
func ToURLSegment(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsSpace(r) {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BuildURL joins base with the marker and the given context. page may be
// empty. base is expected to already end in the marker segment when it came
// from Base.
func BuildURL(base, project, module, page string) string {
	parts := []string{strings.TrimRight(base, "/")}
	for _, p := range []string{project, module, page} {
		if p == "" {
			break
		}
		parts = append(parts, url.PathEscape(p))
	}
	return strings.Join(parts, "/")
}

// Base extracts everything up to and including the marker from raw, e.g.
// https://host/console/#/app for https://host/console/#/app/p1/reports.
func Base(raw, marker string) (string, bool) {
	if marker == "" {
		marker = DefaultMarker
	}
	needle := "/" + marker
	for i := 0; ; {
		j := strings.Index(raw[i:], needle)
		if j < 0 {
			return "", false
		}
		end := i + j + len(needle)
		if end == len(raw) || strings.ContainsRune("/?#", rune(raw[end])) {
			return raw[:end], true
		}
		i = end
	}
}

// MainMenuURL slices raw down to its project/module prefix: the closest
// approximation of the main menu page when exact restoration failed.
func MainMenuURL(raw, marker string) (string, bool) {
	base, ok := Base(raw, marker)
	if !ok {
		return "", false
	}
	ctx := Parse(raw, marker)
	if ctx.Depth() < 2 {
		return "", false
	}
	return BuildURL(base, ctx.Project, ctx.Module, ""), true
}

// Expected builds the URL a module/page pair should live at, given the
// current URL for the base and project. ok is false when current does not
// carry enough context.
func Expected(current, marker, module, page string) (string, bool) {
	base, ok := Base(current, marker)
	if !ok {
		return "", false
	}
	ctx := Parse(current, marker)
	if ctx.Depth() < 1 {
		return "", false
	}
	mod := ToURLSegment(module)
	if mod == "" {
		return "", false
	}
	return BuildURL(base, ctx.Project, mod, ToURLSegment(page)), true
}

func routeSegments(raw string) []string {
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	path := u.Path
	if frag, _, _ := strings.Cut(u.Fragment, "?"); strings.HasPrefix(frag, "/") {
		path = path + frag
	}
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s == "" {
			continue
		}
		if dec, err := url.PathUnescape(s); err == nil {
			s = dec
		}
		out = append(out, s)
	}
	return out
}

func indexOf(segs []string, want string) int {
	for i, s := range segs {
		if s == want {
			return i
		}
	}
	return -1
}
