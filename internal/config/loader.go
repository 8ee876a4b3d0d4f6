package config

import (
	"fmt"
	"net/netip"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads and validates a configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML bytes into a Config, applying defaults for omitted
// fields and validating the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

var storageTypes = map[string]bool{
	"": true, "memory": true, "redis": true,
	"postgres": true, "postgresql": true, "sqlite": true,
	"mongodb": true, "mongo": true, "file": true, "badger": true,
}

// Validate checks every section. All errors here are configuration
// errors: they abort initialization and can never surface at request
// time.
func Validate(cfg *Config) error {
	if !storageTypes[cfg.Storage.Type] {
		return fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
	if cfg.Storage.Type != "" && cfg.Storage.Type != "memory" &&
		cfg.Storage.Type != "sqlite" && cfg.Storage.Type != "file" &&
		cfg.Storage.Type != "badger" && cfg.Storage.URL == "" {
		return fmt.Errorf("storage type %q requires a url", cfg.Storage.Type)
	}

	if err := validateAddrs("ip_filter.whitelist", cfg.IPFilter.Whitelist); err != nil {
		return err
	}
	if err := validateAddrs("ip_filter.blacklist", cfg.IPFilter.Blacklist); err != nil {
		return err
	}
	for provider, cidrs := range cfg.IPFilter.CloudRanges {
		if err := validateAddrs("ip_filter.cloud_ranges."+provider, cidrs); err != nil {
			return err
		}
	}
	for cc := range cfg.IPFilter.GeoRestrictions {
		if len(cc) != 2 {
			return fmt.Errorf("ip_filter.geo_restrictions: %q is not an ISO country code", cc)
		}
	}

	if cfg.RateLimit.Enabled {
		if err := validateRateNumbers("rate_limit", cfg.RateLimit.RequestsPerWindow,
			cfg.RateLimit.WindowSeconds, cfg.RateLimit.BurstSize); err != nil {
			return err
		}
	}
	for i, route := range cfg.RateLimit.Routes {
		if strings.TrimSpace(route.Endpoint) == "" {
			return fmt.Errorf("rate_limit.routes[%d]: endpoint is required", i)
		}
		if err := validateRateNumbers(fmt.Sprintf("rate_limit.routes[%d]", i),
			route.RequestsPerWindow, route.WindowSeconds, route.BurstSize); err != nil {
			return err
		}
	}

	for i, p := range cfg.Penetration.SuspiciousPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("penetration.suspicious_patterns[%d]: %w", i, err)
		}
	}
	return nil
}

func validateAddrs(field string, entries []string) error {
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			if _, err := netip.ParsePrefix(e); err != nil {
				return fmt.Errorf("%s: invalid CIDR %q", field, e)
			}
			continue
		}
		if _, err := netip.ParseAddr(e); err != nil {
			return fmt.Errorf("%s: invalid IP %q", field, e)
		}
	}
	return nil
}

func validateRateNumbers(field string, requests, window, burst int) error {
	if requests <= 0 {
		return fmt.Errorf("%s: requests_per_window must be positive", field)
	}
	if window < 0 {
		return fmt.Errorf("%s: window_seconds must not be negative", field)
	}
	if burst < 0 {
		return fmt.Errorf("%s: burst_size must not be negative", field)
	}
	return nil
}
