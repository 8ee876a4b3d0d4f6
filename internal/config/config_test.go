package config

import (
	"strings"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("expected memory storage default, got %q", cfg.Storage.Type)
	}
	if !cfg.Storage.FailsOpen() {
		t.Error("expected fail-open default")
	}
	if cfg.RateLimit.RequestsPerWindow != 60 || cfg.RateLimit.WindowSeconds != 60 {
		t.Errorf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
}

func TestParseFullConfig(t *testing.T) {
	raw := `
storage:
  type: redis
  url: redis://localhost:6379/0
  fail_open: false
ip_filter:
  enabled: true
  whitelist: ["10.0.0.0/8"]
  blacklist: ["203.0.113.7"]
  geo_restrictions:
    RU: false
rate_limit:
  enabled: true
  requests_per_window: 100
  window_seconds: 30
  burst_size: 5
  auto_ban_threshold: 3
  auto_ban_duration_minutes: 15
  routes:
    - endpoint: /api/login/**
      requests_per_window: 5
      window_seconds: 60
penetration:
  enabled: true
  log_suspicious: true
  suspicious_patterns: ['(?i)probe']
`
	cfg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Storage.FailsOpen() {
		t.Error("expected fail-closed from explicit fail_open: false")
	}
	if len(cfg.RateLimit.Routes) != 1 || cfg.RateLimit.Routes[0].Endpoint != "/api/login/**" {
		t.Errorf("unexpected routes: %+v", cfg.RateLimit.Routes)
	}
	if !cfg.Penetration.LogSuspicious {
		t.Error("expected log_suspicious true")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "bad cidr",
			yaml: "ip_filter:\n  blacklist: ['10.0.0.0/99']",
			want: "invalid CIDR",
		},
		{
			name: "bad ip",
			yaml: "ip_filter:\n  whitelist: ['not-an-ip']",
			want: "invalid IP",
		},
		{
			name: "bad regex",
			yaml: "penetration:\n  suspicious_patterns: ['([unclosed']",
			want: "suspicious_patterns",
		},
		{
			name: "unknown storage",
			yaml: "storage:\n  type: cassandra",
			want: "unknown storage type",
		},
		{
			name: "redis without url",
			yaml: "storage:\n  type: redis",
			want: "requires a url",
		},
		{
			name: "route without endpoint",
			yaml: "rate_limit:\n  routes:\n    - requests_per_window: 5\n      window_seconds: 60",
			want: "endpoint is required",
		},
		{
			name: "zero route limit",
			yaml: "rate_limit:\n  routes:\n    - endpoint: /x\n      requests_per_window: 0",
			want: "requests_per_window must be positive",
		},
		{
			name: "bad country code",
			yaml: "ip_filter:\n  geo_restrictions:\n    RUS: false",
			want: "ISO country code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
