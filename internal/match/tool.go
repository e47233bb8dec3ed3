// Package match implements the data-only predicate evaluation shared by the
// permission policy and instruction injection engines: glob and regex
// scalar patterns, structured subset matching, and a small boolean
// expression language for rule skip/only conditions.
package match

import (
	"path/filepath"
	"regexp"
	"strings"
)

// regexPrefix selects regex semantics for a scalar pattern.
const regexPrefix = "re:"

var mcpSeparator = regexp.MustCompile(`_{2,}`)

// Tool reports whether a tool name satisfies pattern.
//
// Pattern forms:
//   - "" or "*" matches everything
//   - "re:<expr>" matches by regexp search
//   - "group:item" matches MCP-style names of the form mcp__group__item,
//     with glob semantics on each side and "*" defaults for empty sides
//   - anything else is a plain glob on the full tool name
func Tool(name, pattern string) bool {
	p := strings.TrimSpace(pattern)
	if p == "" || p == "*" {
		return true
	}
	if expr, ok := strings.CutPrefix(p, regexPrefix); ok {
		rx, err := regexp.Compile(expr)
		if err != nil {
			return false
		}
		return rx.MatchString(name)
	}
	if !strings.Contains(p, ":") {
		return glob(p, name)
	}

	groupPat, itemPat, _ := strings.Cut(p, ":")
	if groupPat == "" {
		groupPat = "*"
	}
	if itemPat == "" {
		itemPat = "*"
	}

	parts := mcpSeparator.Split(strings.TrimSpace(name), 3)
	if len(parts) > 0 && parts[0] == "mcp" {
		parts = parts[1:]
	}
	if len(parts) < 2 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	group, item := parts[0], parts[len(parts)-1]

	// Group side also accepts substring containment; server naming varies
	// across MCP installations.
	if groupPat != "*" && !glob(groupPat, group) && !strings.Contains(group, groupPat) {
		return false
	}
	return glob(itemPat, item)
}

// glob wraps filepath.Match, treating a malformed pattern as no match.
func glob(pattern, s string) bool {
	ok, err := filepath.Match(pattern, s)
	return err == nil && ok
}

// When reports whether a subtype value is included by a when-list. An empty
// list or a "*" entry matches every subtype.
func When(when []string, value string) bool {
	if len(when) == 0 {
		return true
	}
	for _, w := range when {
		if w == "*" || w == value {
			return true
		}
	}
	return false
}
