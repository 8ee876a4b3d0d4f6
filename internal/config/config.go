// Package config defines the guard's configuration schema. Every section
// is validated when loaded; a malformed CIDR, regex or rule is rejected
// at startup, never at request time.
package config

import "time"

// Config is the top-level configuration loaded from YAML.
type Config struct {
	Storage     StorageConfig     `yaml:"storage" json:"storage"`
	IPFilter    IPFilterConfig    `yaml:"ip_filter" json:"ip_filter"`
	UserAgent   UserAgentConfig   `yaml:"user_agent" json:"user_agent"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" json:"rate_limit"`
	Penetration PenetrationConfig `yaml:"penetration" json:"penetration"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// StorageConfig selects the shared counter store.
type StorageConfig struct {
	// Type is one of memory, redis, postgres, sqlite, mongodb, file.
	Type string `yaml:"type" json:"type"`

	// URL is the backend connection string (file path for sqlite/file).
	URL string `yaml:"url" json:"url,omitempty"`

	// Namespace isolates this guard's keys (prefix, table or collection
	// name depending on the backend).
	Namespace string `yaml:"namespace" json:"namespace,omitempty"`

	// FailOpen controls the policy when the backend is unreachable at
	// request time: true (the default) admits the request and logs the
	// failure, false denies with reason storage_unavailable.
	FailOpen *bool `yaml:"fail_open" json:"fail_open,omitempty"`
}

// FailsOpen resolves the pointer with its default of true.
func (s StorageConfig) FailsOpen() bool {
	return s.FailOpen == nil || *s.FailOpen
}

// IPFilterConfig configures the IP admission check.
type IPFilterConfig struct {
	Enabled             bool            `yaml:"enabled" json:"enabled"`
	Whitelist           []string        `yaml:"whitelist" json:"whitelist,omitempty"`
	Blacklist           []string        `yaml:"blacklist" json:"blacklist,omitempty"`
	BlockCloudProviders bool            `yaml:"block_cloud_providers" json:"block_cloud_providers"`
	// GeoRestrictions maps ISO country codes to allowed/denied. Only an
	// explicit false denies.
	GeoRestrictions map[string]bool `yaml:"geo_restrictions" json:"geo_restrictions,omitempty"`
	// GeoIPDatabase is the path to a MaxMind .mmdb file; empty disables
	// geo lookups.
	GeoIPDatabase string `yaml:"geoip_database" json:"geoip_database,omitempty"`
	// CloudRanges maps provider names to CIDR lists for the cloud check.
	CloudRanges map[string][]string `yaml:"cloud_ranges" json:"cloud_ranges,omitempty"`
}

// UserAgentConfig configures the user-agent block list.
type UserAgentConfig struct {
	Enabled       bool     `yaml:"enabled" json:"enabled"`
	BlockedAgents []string `yaml:"blocked_agents" json:"blocked_agents,omitempty"`
	ExcludedPaths []string `yaml:"excluded_paths" json:"excluded_paths,omitempty"`
}

// RouteRateLimit overrides the global rule for one route pattern. Its
// numeric fields replace the global rule's wholesale.
type RouteRateLimit struct {
	Endpoint               string   `yaml:"endpoint" json:"endpoint"`
	RequestsPerWindow      int      `yaml:"requests_per_window" json:"requests_per_window"`
	WindowSeconds          int      `yaml:"window_seconds" json:"window_seconds"`
	BurstSize              int      `yaml:"burst_size" json:"burst_size"`
	AutoBanThreshold       int      `yaml:"auto_ban_threshold" json:"auto_ban_threshold"`
	AutoBanDurationMinutes int      `yaml:"auto_ban_duration_minutes" json:"auto_ban_duration_minutes"`
	// ExcludedPaths replaces the global exclusion list for this route;
	// omitted, the global list applies.
	ExcludedPaths []string `yaml:"excluded_paths" json:"excluded_paths,omitempty"`
}

// RateLimitConfig configures the fixed-window rate limiter.
type RateLimitConfig struct {
	Enabled                bool             `yaml:"enabled" json:"enabled"`
	RequestsPerWindow      int              `yaml:"requests_per_window" json:"requests_per_window"`
	WindowSeconds          int              `yaml:"window_seconds" json:"window_seconds"`
	BurstSize              int              `yaml:"burst_size" json:"burst_size"`
	AutoBanThreshold       int              `yaml:"auto_ban_threshold" json:"auto_ban_threshold"`
	AutoBanDurationMinutes int              `yaml:"auto_ban_duration_minutes" json:"auto_ban_duration_minutes"`
	ExcludedPaths          []string         `yaml:"excluded_paths" json:"excluded_paths,omitempty"`
	Routes                 []RouteRateLimit `yaml:"routes" json:"routes,omitempty"`
}

// AutoBanDuration returns the configured ban length.
func (r RateLimitConfig) AutoBanDuration() time.Duration {
	return time.Duration(r.AutoBanDurationMinutes) * time.Minute
}

// PenetrationConfig configures the attack-signature scanner.
type PenetrationConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// LogSuspicious switches the detector to log-only: matches are
	// recorded but the request is admitted.
	LogSuspicious bool `yaml:"log_suspicious" json:"log_suspicious"`
	ScanBody      bool `yaml:"scan_body" json:"scan_body"`
	// SuspiciousPatterns are extra regex signatures appended to the
	// built-in library.
	SuspiciousPatterns []string `yaml:"suspicious_patterns" json:"suspicious_patterns,omitempty"`
}

// LoggingConfig configures the structured and audit logs.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// AuditFile receives one JSON line per denied request; empty writes
	// to stderr.
	AuditFile string `yaml:"audit_file" json:"audit_file,omitempty"`
	// AuditSuspicious also records suspicious-but-allowed requests.
	AuditSuspicious bool `yaml:"audit_suspicious" json:"audit_suspicious"`
}

// Default returns the configuration used when a section is omitted.
func Default() Config {
	return Config{
		Storage: StorageConfig{Type: "memory", Namespace: "webguard"},
		IPFilter: IPFilterConfig{
			Enabled: true,
		},
		UserAgent: UserAgentConfig{
			Enabled: true,
		},
		RateLimit: RateLimitConfig{
			Enabled:                true,
			RequestsPerWindow:      60,
			WindowSeconds:          60,
			BurstSize:              10,
			AutoBanThreshold:       10,
			AutoBanDurationMinutes: 60,
		},
		Penetration: PenetrationConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
