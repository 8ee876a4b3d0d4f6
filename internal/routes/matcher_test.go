package routes

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/api/admin/**", "/api/admin/x/y", true},
		{"/api/admin/**", "/api/admin", true},
		{"/api/admin/**", "/api/adminx", false},
		{"/api/*", "/api/files", true},
		{"/api/*", "/api/files/sub", false},
		{"/api/*", "/api", false},
		{"/health", "/health", true},
		{"/health", "/healthz", false},
		{"/*/status", "/api/status", true},
		{"/*/status", "/api/v2/status", false},
		{"/**", "/anything/at/all", true},
		{"/**", "/", true},
		{"/api/*/items/**", "/api/v1/items", true},
		{"/api/*/items/**", "/api/v1/items/42/detail", true},
		{"/api/*/items/**", "/api/v1/other", false},
	}

	for _, tt := range tests {
		if got := Match(tt.pattern, tt.path); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}

func TestResolveFirstMatchWins(t *testing.T) {
	m := NewMatcher([]string{"/api/admin/**", "/api/**"})

	pattern, ok := m.Resolve("/api/admin/users")
	if !ok || pattern != "/api/admin/**" {
		t.Errorf("expected /api/admin/** to win, got %q (ok=%v)", pattern, ok)
	}

	pattern, ok = m.Resolve("/api/public")
	if !ok || pattern != "/api/**" {
		t.Errorf("expected /api/** fallthrough, got %q (ok=%v)", pattern, ok)
	}

	if _, ok = m.Resolve("/other"); ok {
		t.Error("expected no match for /other")
	}
}

func TestResolveOrderEncodesPriority(t *testing.T) {
	// Catch-all listed first shadows the specific route; configuration
	// order is the documented contract.
	m := NewMatcher([]string{"/api/**", "/api/admin/**"})
	pattern, _ := m.Resolve("/api/admin/users")
	if pattern != "/api/**" {
		t.Errorf("expected first-listed /api/** to win, got %q", pattern)
	}
}

func TestPathExcluded(t *testing.T) {
	excluded := []string{"/health", "/metrics", "/internal/**"}

	if !PathExcluded(excluded, "/health") {
		t.Error("expected /health excluded")
	}
	if !PathExcluded(excluded, "/internal/debug/vars") {
		t.Error("expected /internal/debug/vars excluded")
	}
	if PathExcluded(excluded, "/api/users") {
		t.Error("expected /api/users not excluded")
	}
}
