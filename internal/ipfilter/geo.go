package ipfilter

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/oschwald/geoip2-golang"
)

// GeoIP2Resolver resolves country codes from a MaxMind GeoIP2/GeoLite2
// database file.
type GeoIP2Resolver struct {
	reader *geoip2.Reader
}

// OpenGeoIP2 opens the .mmdb file at path.
func OpenGeoIP2(path string) (*GeoIP2Resolver, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening geoip database: %w", err)
	}
	return &GeoIP2Resolver{reader: reader}, nil
}

// Country implements GeoResolver.
func (g *GeoIP2Resolver) Country(addr netip.Addr) (string, error) {
	rec, err := g.reader.Country(net.IP(addr.AsSlice()))
	if err != nil {
		return "", err
	}
	return rec.Country.IsoCode, nil
}

func (g *GeoIP2Resolver) Close() error { return g.reader.Close() }

// StaticCloudRanges is a CloudRanges table built from an in-memory map of
// provider name to CIDR prefixes, e.g. loaded from a published range
// file at startup.
type StaticCloudRanges struct {
	providers map[string][]netip.Prefix
}

// NewStaticCloudRanges parses the given provider ranges.
func NewStaticCloudRanges(ranges map[string][]string) (*StaticCloudRanges, error) {
	providers := make(map[string][]netip.Prefix, len(ranges))
	for name, cidrs := range ranges {
		parsed, err := parseRanges(cidrs)
		if err != nil {
			return nil, fmt.Errorf("cloud ranges for %s: %w", name, err)
		}
		providers[name] = parsed
	}
	return &StaticCloudRanges{providers: providers}, nil
}

// Provider implements CloudRanges.
func (s *StaticCloudRanges) Provider(addr netip.Addr) (string, bool) {
	for name, prefixes := range s.providers {
		if contains(prefixes, addr) {
			return name, true
		}
	}
	return "", false
}
