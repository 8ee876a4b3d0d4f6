package uafilter

import "testing"

func TestBlockedAgents(t *testing.T) {
	f := New([]string{"curl", "Scrapy", "sqlmap"}, nil)

	tests := []struct {
		ua      string
		blocked bool
	}{
		{"curl/8.4.0", true},
		{"CURL/7.0", true},
		{"Mozilla/5.0 (compatible; Scrapy/2.11)", true},
		{"sqlmap/1.7#stable", true},
		{"Mozilla/5.0 (X11; Linux x86_64) Firefox/121.0", false},
		{"", false},
	}
	for _, tt := range tests {
		blocked, _ := f.Check(tt.ua, "/api/data")
		if blocked != tt.blocked {
			t.Errorf("Check(%q) blocked = %v, want %v", tt.ua, blocked, tt.blocked)
		}
	}
}

func TestExcludedPathBypasses(t *testing.T) {
	f := New([]string{"curl"}, []string{"/health", "/internal/**"})

	if blocked, _ := f.Check("curl/8.4.0", "/health"); blocked {
		t.Error("expected excluded path to bypass the check")
	}
	if blocked, _ := f.Check("curl/8.4.0", "/internal/probe/live"); blocked {
		t.Error("expected wildcard-excluded path to bypass the check")
	}
	if blocked, _ := f.Check("curl/8.4.0", "/api/data"); !blocked {
		t.Error("expected non-excluded path to be checked")
	}
}
