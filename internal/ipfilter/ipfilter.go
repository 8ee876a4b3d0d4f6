// Package ipfilter implements the IP admission check: whitelist,
// blacklist, cloud-provider ranges and geo restrictions, evaluated in
// that order with first match winning.
package ipfilter

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/rs/zerolog"
)

// Deny reason kinds produced by this check.
const (
	KindBlacklisted   = "blacklisted"
	KindCloudProvider = "cloud_provider"
	KindGeoRestricted = "geo_restricted"
)

// GeoResolver maps an address to an ISO country code. Implementations
// wrap an external lookup database; a nil resolver disables geo checks.
type GeoResolver interface {
	Country(addr netip.Addr) (string, error)
}

// CloudRanges reports whether an address belongs to a known cloud
// provider. A nil table disables the cloud check.
type CloudRanges interface {
	Provider(addr netip.Addr) (string, bool)
}

// Result is the outcome of the IP check for one address.
type Result struct {
	Allowed bool
	Kind    string
	Detail  string
}

var allow = Result{Allowed: true}

// Filter is the immutable, compiled form of the IP filter configuration.
type Filter struct {
	whitelist  []netip.Prefix
	blacklist  []netip.Prefix
	blockCloud bool
	geo        map[string]bool
	resolver   GeoResolver
	cloud      CloudRanges
	logger     zerolog.Logger
}

// Options carries the injected lookup capabilities.
type Options struct {
	GeoResolver GeoResolver
	CloudRanges CloudRanges
	Logger      zerolog.Logger
}

// New compiles whitelist/blacklist entries (single IPs or CIDRs) and geo
// restrictions into a Filter. Malformed entries are rejected here, never
// at request time.
func New(whitelist, blacklist []string, blockCloud bool, geo map[string]bool, opts Options) (*Filter, error) {
	wl, err := parseRanges(whitelist)
	if err != nil {
		return nil, fmt.Errorf("whitelist: %w", err)
	}
	bl, err := parseRanges(blacklist)
	if err != nil {
		return nil, fmt.Errorf("blacklist: %w", err)
	}

	normalized := make(map[string]bool, len(geo))
	for cc, allowed := range geo {
		normalized[strings.ToUpper(cc)] = allowed
	}

	return &Filter{
		whitelist:  wl,
		blacklist:  bl,
		blockCloud: blockCloud,
		geo:        normalized,
		resolver:   opts.GeoResolver,
		cloud:      opts.CloudRanges,
		logger:     opts.Logger,
	}, nil
}

// parseRanges accepts "1.2.3.4" and "1.2.3.0/24" forms, IPv4 and IPv6.
func parseRanges(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("invalid CIDR %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("invalid IP %q: %w", e, err)
		}
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

func contains(ranges []netip.Prefix, addr netip.Addr) bool {
	for _, p := range ranges {
		if p.Contains(addr.Unmap()) {
			return true
		}
	}
	return false
}

// Check evaluates addr. Whitelisted addresses bypass every other rule.
// If the geo or cloud lookup capability is missing or fails, that check
// is skipped and logged rather than denied.
func (f *Filter) Check(addr netip.Addr) Result {
	if len(f.whitelist) > 0 && contains(f.whitelist, addr) {
		return allow
	}

	if len(f.blacklist) > 0 && contains(f.blacklist, addr) {
		return Result{Kind: KindBlacklisted, Detail: fmt.Sprintf("IP %s is blacklisted", addr)}
	}

	if f.blockCloud {
		if f.cloud == nil {
			f.logger.Debug().Msg("cloud provider check enabled but no range table injected; skipping")
		} else if provider, ok := f.cloud.Provider(addr); ok {
			return Result{
				Kind:   KindCloudProvider,
				Detail: fmt.Sprintf("IP %s belongs to cloud provider %s", addr, provider),
			}
		}
	}

	if len(f.geo) > 0 {
		if f.resolver == nil {
			f.logger.Debug().Msg("geo restrictions configured but no resolver injected; skipping")
		} else {
			cc, err := f.resolver.Country(addr)
			if err != nil {
				f.logger.Warn().Err(err).Stringer("ip", addr).Msg("geo lookup failed; skipping geo check")
			} else if allowed, ok := f.geo[strings.ToUpper(cc)]; ok && !allowed {
				return Result{
					Kind:   KindGeoRestricted,
					Detail: fmt.Sprintf("country %s is not allowed", strings.ToUpper(cc)),
				}
			}
		}
	}

	return allow
}
