package detector

import "regexp"

// PatternSet holds compiled regex signatures for one attack category.
type PatternSet struct {
	Category string
	Patterns []*regexp.Regexp
}

// compile builds a PatternSet from regex strings. Panics on invalid
// patterns (the built-in sets are compile-time constants); signatures
// supplied through configuration go through Custom instead.
func compile(category string, patterns []string) PatternSet {
	ps := PatternSet{Category: category, Patterns: make([]*regexp.Regexp, len(patterns))}
	for i, p := range patterns {
		ps.Patterns[i] = regexp.MustCompile(p)
	}
	return ps
}

// Custom compiles operator-supplied signatures, rejecting malformed ones
// at load time.
func Custom(category string, patterns []string) (PatternSet, error) {
	ps := PatternSet{Category: category, Patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return PatternSet{}, err
		}
		ps.Patterns = append(ps.Patterns, re)
	}
	return ps, nil
}

// MatchAny returns true if any signature in the set matches the text.
func (ps *PatternSet) MatchAny(text string) bool {
	for _, p := range ps.Patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// --- SQL injection ---

var SQLInjectionPatterns = compile("sql_injection", []string{
	`(?i)(union\s+select|select\s+.*\s+from|insert\s+into|update\s+.*\s+set|delete\s+from)`,
	`(?i)(\bor\s+1\s*=\s*1\b|--\s|/\*.*?\*/)`,
	`(?i)(;\s*drop\s+table|;\s*truncate\s+)`,
})

// --- Cross-site scripting ---

var XSSPatterns = compile("xss", []string{
	`(?i)(<script.*?>|javascript:|onerror=|onload=|document\.cookie|alert\s*\()`,
	`(?i)(<iframe|<img\s+src|<svg\s+onload)`,
})

// --- Path traversal ---

var PathTraversalPatterns = compile("path_traversal", []string{
	`(?i)(\.\./|\.\.\\|%2e%2e%2f|%2e%2e%5c)`,
})

// --- Command injection ---

var CommandInjectionPatterns = compile("command_injection", []string{
	`(?i)(\|\||&&|\$\(.*?\)|` + "`.*?`" + `)`,
	`(?i)(cat\s+/etc/passwd|whoami\b|uname\s+-a)`,
})

// --- Sensitive file probes ---

var SensitiveFilePatterns = compile("sensitive_files", []string{
	`(?i)(\.env\b|\.git\b|config\.yml|\.htaccess|\.sql\b|\.bak\b)`,
	`(?i)(/etc/passwd|/etc/shadow|boot\.ini|win\.ini)`,
})

// DefaultPatternSets is the built-in signature library, scanned in order.
func DefaultPatternSets() []PatternSet {
	return []PatternSet{
		SQLInjectionPatterns,
		XSSPatterns,
		PathTraversalPatterns,
		CommandInjectionPatterns,
		SensitiveFilePatterns,
	}
}
