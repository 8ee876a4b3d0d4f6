// Package uafilter blocks requests by user-agent substring. The check is
// stateless: it is purely a function of the current request.
package uafilter

import (
	"strings"

	"github.com/py-daily/pywebguard/internal/routes"
)

// KindBlockedAgent is the deny reason kind produced by this check.
const KindBlockedAgent = "blocked_user_agent"

// Filter holds the lowercased block list and path exemptions.
type Filter struct {
	blocked       []string
	excludedPaths []string
}

// New builds a filter from the configured block list.
func New(blockedAgents, excludedPaths []string) *Filter {
	blocked := make([]string, 0, len(blockedAgents))
	for _, b := range blockedAgents {
		b = strings.ToLower(strings.TrimSpace(b))
		if b != "" {
			blocked = append(blocked, b)
		}
	}
	return &Filter{blocked: blocked, excludedPaths: excludedPaths}
}

// Check reports whether the user agent is admitted for the given path.
// The match is a case-insensitive substring test against the block list.
func (f *Filter) Check(userAgent, path string) (blocked bool, agent string) {
	if routes.PathExcluded(f.excludedPaths, path) {
		return false, ""
	}
	ua := strings.ToLower(userAgent)
	for _, b := range f.blocked {
		if strings.Contains(ua, b) {
			return true, b
		}
	}
	return false, ""
}
