package ipfilter

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/rs/zerolog"
)

func mustAddr(t *testing.T, s string) netip.Addr {
	t.Helper()
	a, err := netip.ParseAddr(s)
	if err != nil {
		t.Fatalf("parsing %q: %v", s, err)
	}
	return a
}

type staticGeo map[string]string // ip -> country

func (g staticGeo) Country(addr netip.Addr) (string, error) {
	if cc, ok := g[addr.String()]; ok {
		return cc, nil
	}
	return "", errors.New("not in database")
}

func TestWhitelistBypassesEverything(t *testing.T) {
	f, err := New(
		[]string{"10.0.0.1", "192.168.0.0/16"},
		[]string{"10.0.0.1", "192.168.1.0/24"}, // also blacklisted
		true,
		map[string]bool{"RU": false},
		Options{Logger: zerolog.Nop()},
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	for _, ip := range []string{"10.0.0.1", "192.168.1.77"} {
		res := f.Check(mustAddr(t, ip))
		if !res.Allowed {
			t.Errorf("expected whitelisted %s allowed, got deny (%s)", ip, res.Kind)
		}
	}
}

func TestBlacklistDenies(t *testing.T) {
	f, err := New(nil, []string{"203.0.113.0/24", "2001:db8::/32"}, false, nil,
		Options{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	res := f.Check(mustAddr(t, "203.0.113.9"))
	if res.Allowed || res.Kind != KindBlacklisted {
		t.Errorf("expected blacklisted deny, got %+v", res)
	}
	res = f.Check(mustAddr(t, "2001:db8::1"))
	if res.Allowed || res.Kind != KindBlacklisted {
		t.Errorf("expected IPv6 blacklisted deny, got %+v", res)
	}
	if res = f.Check(mustAddr(t, "198.51.100.1")); !res.Allowed {
		t.Errorf("expected unlisted IP allowed, got %+v", res)
	}
}

func TestGeoRestriction(t *testing.T) {
	geo := staticGeo{"203.0.113.9": "RU", "198.51.100.1": "BR"}
	f, err := New(nil, nil, false, map[string]bool{"RU": false, "BR": true},
		Options{GeoResolver: geo, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	res := f.Check(mustAddr(t, "203.0.113.9"))
	if res.Allowed || res.Kind != KindGeoRestricted {
		t.Errorf("expected geo deny for RU, got %+v", res)
	}
	if res = f.Check(mustAddr(t, "198.51.100.1")); !res.Allowed {
		t.Errorf("expected BR allowed, got %+v", res)
	}
	// Lookup failure skips the geo check instead of denying.
	if res = f.Check(mustAddr(t, "192.0.2.200")); !res.Allowed {
		t.Errorf("expected allow when lookup fails, got %+v", res)
	}
}

func TestGeoWithoutResolverSkips(t *testing.T) {
	f, err := New(nil, nil, false, map[string]bool{"RU": false},
		Options{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if res := f.Check(mustAddr(t, "203.0.113.9")); !res.Allowed {
		t.Errorf("expected allow with no resolver injected, got %+v", res)
	}
}

func TestCloudProviderBlock(t *testing.T) {
	cloud, err := NewStaticCloudRanges(map[string][]string{
		"aws": {"3.0.0.0/8"},
	})
	if err != nil {
		t.Fatalf("cloud ranges: %v", err)
	}
	f, err := New(nil, nil, true, nil,
		Options{CloudRanges: cloud, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	res := f.Check(mustAddr(t, "3.14.15.9"))
	if res.Allowed || res.Kind != KindCloudProvider {
		t.Errorf("expected cloud provider deny, got %+v", res)
	}
	if res = f.Check(mustAddr(t, "8.8.8.8")); !res.Allowed {
		t.Errorf("expected non-cloud IP allowed, got %+v", res)
	}
}

func TestInvalidConfigRejectedAtLoad(t *testing.T) {
	if _, err := New([]string{"not-an-ip"}, nil, false, nil, Options{Logger: zerolog.Nop()}); err == nil {
		t.Error("expected error for malformed whitelist entry")
	}
	if _, err := New(nil, []string{"10.0.0.0/99"}, false, nil, Options{Logger: zerolog.Nop()}); err == nil {
		t.Error("expected error for malformed CIDR")
	}
}
