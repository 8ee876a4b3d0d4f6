// Package routes resolves which rate-limit rule governs a request path.
//
// Pattern syntax: a literal segment matches itself, "*" matches exactly
// one path segment, and a trailing "**" matches zero or more segments.
// Patterns are evaluated in configuration order and the first full match
// wins, so operators must list specific routes before catch-alls.
package routes

import "strings"

// Matcher holds an ordered list of route patterns.
type Matcher struct {
	patterns []string
}

// NewMatcher builds a matcher over patterns, preserving their order.
func NewMatcher(patterns []string) *Matcher {
	return &Matcher{patterns: append([]string(nil), patterns...)}
}

// Resolve returns the first pattern that fully matches path, or ("",
// false) when no pattern matches and the global rule applies.
func (m *Matcher) Resolve(path string) (string, bool) {
	for _, p := range m.patterns {
		if Match(p, path) {
			return p, true
		}
	}
	return "", false
}

// Match reports whether path fully matches pattern.
func Match(pattern, path string) bool {
	if pattern == path {
		return true
	}
	return matchSegments(splitPath(pattern), splitPath(path))
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pattern, path []string) bool {
	for len(pattern) > 0 {
		seg := pattern[0]
		if seg == "**" {
			// Trailing "**" swallows the rest, including nothing.
			if len(pattern) == 1 {
				return true
			}
			// "**" mid-pattern: try every possible tail.
			for i := 0; i <= len(path); i++ {
				if matchSegments(pattern[1:], path[i:]) {
					return true
				}
			}
			return false
		}
		if len(path) == 0 {
			return false
		}
		if seg != "*" && seg != path[0] {
			return false
		}
		pattern = pattern[1:]
		path = path[1:]
	}
	return len(path) == 0
}

// PathExcluded reports whether path appears in excluded, which may itself
// contain wildcard patterns. Used to bypass checks for endpoints such as
// health probes.
func PathExcluded(excluded []string, path string) bool {
	for _, e := range excluded {
		if Match(e, path) {
			return true
		}
	}
	return false
}
