// Package guard sequences the admission checks into one decision: IP
// filter, user-agent filter, rate limiter, penetration detector, in that
// order, short-circuiting on the first deny. Storage is the only shared
// mutable resource; no lock is held across a pipeline run.
package guard

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/rs/zerolog"

	"github.com/py-daily/pywebguard/internal/audit"
	"github.com/py-daily/pywebguard/internal/config"
	"github.com/py-daily/pywebguard/internal/detector"
	"github.com/py-daily/pywebguard/internal/ipfilter"
	"github.com/py-daily/pywebguard/internal/metrics"
	"github.com/py-daily/pywebguard/internal/ratelimit"
	"github.com/py-daily/pywebguard/internal/storage"
	"github.com/py-daily/pywebguard/internal/uafilter"
)

// KindStorageUnavailable is the deny reason kind used under the
// fail-closed storage policy.
const KindStorageUnavailable = "storage_unavailable"

// Guard owns the check pipeline and the immutable policy snapshots the
// checks run against. Runtime state (counters, bans) lives exclusively
// in Storage, so a Guard is safe for concurrent use.
type Guard struct {
	store    storage.Storage
	failOpen bool

	ip   *ipfilter.Filter
	ua   *uafilter.Filter
	rate *ratelimit.Limiter
	det  *detector.Detector

	auditSuspicious bool
	caps            capabilities

	logger  zerolog.Logger
	audit   *audit.Logger
	metrics *metrics.Metrics
}

// capabilities holds the pluggable IP lookup backends before they are
// compiled into the filter.
type capabilities struct {
	geo   ipfilter.GeoResolver
	cloud ipfilter.CloudRanges
}

// Option customizes Guard construction.
type Option func(*Guard)

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// WithAudit sets the security event logger.
func WithAudit(a *audit.Logger) Option {
	return func(g *Guard) { g.audit = a }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// WithGeoResolver injects the country lookup capability (overrides the
// geoip_database config path).
func WithGeoResolver(r ipfilter.GeoResolver) Option {
	return func(g *Guard) { g.caps.geo = r }
}

// WithCloudRanges injects the cloud-provider range table (overrides the
// cloud_ranges config section).
func WithCloudRanges(c ipfilter.CloudRanges) Option {
	return func(g *Guard) { g.caps.cloud = c }
}

// New builds a guard from validated configuration. All policy
// compilation happens here; errors are configuration errors and the
// guard never fails at request time for any of them.
func New(cfg config.Config, store storage.Storage, opts ...Option) (*Guard, error) {
	g := &Guard{
		store:           store,
		failOpen:        cfg.Storage.FailsOpen(),
		auditSuspicious: cfg.Logging.AuditSuspicious,
		logger:          zerolog.Nop(),
		audit:           audit.NopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if cfg.IPFilter.Enabled {
		if g.caps.geo == nil && cfg.IPFilter.GeoIPDatabase != "" {
			resolver, err := ipfilter.OpenGeoIP2(cfg.IPFilter.GeoIPDatabase)
			if err != nil {
				return nil, fmt.Errorf("ip filter: %w", err)
			}
			g.caps.geo = resolver
		}
		if g.caps.cloud == nil && len(cfg.IPFilter.CloudRanges) > 0 {
			table, err := ipfilter.NewStaticCloudRanges(cfg.IPFilter.CloudRanges)
			if err != nil {
				return nil, fmt.Errorf("ip filter: %w", err)
			}
			g.caps.cloud = table
		}
		f, err := ipfilter.New(
			cfg.IPFilter.Whitelist,
			cfg.IPFilter.Blacklist,
			cfg.IPFilter.BlockCloudProviders,
			cfg.IPFilter.GeoRestrictions,
			ipfilter.Options{
				GeoResolver: g.caps.geo,
				CloudRanges: g.caps.cloud,
				Logger:      g.logger,
			},
		)
		if err != nil {
			return nil, fmt.Errorf("ip filter: %w", err)
		}
		g.ip = f
	}

	if cfg.UserAgent.Enabled {
		g.ua = uafilter.New(cfg.UserAgent.BlockedAgents, cfg.UserAgent.ExcludedPaths)
	}

	if cfg.RateLimit.Enabled {
		global := ratelimit.Rule{
			RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
			WindowSeconds:     cfg.RateLimit.WindowSeconds,
			BurstSize:         cfg.RateLimit.BurstSize,
			AutoBanThreshold:  cfg.RateLimit.AutoBanThreshold,
			AutoBanDuration:   cfg.RateLimit.AutoBanDuration(),
			ExcludedPaths:     cfg.RateLimit.ExcludedPaths,
		}
		routeRules := make([]ratelimit.RouteRule, 0, len(cfg.RateLimit.Routes))
		for _, route := range cfg.RateLimit.Routes {
			excluded := route.ExcludedPaths
			if excluded == nil {
				excluded = cfg.RateLimit.ExcludedPaths
			}
			routeRules = append(routeRules, ratelimit.RouteRule{
				Pattern: route.Endpoint,
				Rule: ratelimit.Rule{
					RequestsPerWindow: route.RequestsPerWindow,
					WindowSeconds:     route.WindowSeconds,
					BurstSize:         route.BurstSize,
					AutoBanThreshold:  route.AutoBanThreshold,
					AutoBanDuration:   time.Duration(route.AutoBanDurationMinutes) * time.Minute,
					ExcludedPaths:     excluded,
				},
			})
		}
		g.rate = ratelimit.New(store, global, routeRules, g.logger)
	}

	if cfg.Penetration.Enabled {
		det, err := detector.New(detector.Config{
			ScanBody:        cfg.Penetration.ScanBody,
			LogOnly:         cfg.Penetration.LogSuspicious,
			ExtraSignatures: cfg.Penetration.SuspiciousPatterns,
			Logger:          g.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("penetration detector: %w", err)
		}
		g.det = det
	}

	return g, nil
}

// Check runs the pipeline with a background context; it is the blocking
// entry point for callers without a context of their own.
func (g *Guard) Check(req Request) Decision {
	return g.CheckContext(context.Background(), req)
}

// CheckContext runs the pipeline. Each storage call observes ctx, so an
// abandoned request stops at the next stage boundary; state already
// written (window increments, ban checks) is left as-is — stages are not
// a transaction.
func (g *Guard) CheckContext(ctx context.Context, req Request) Decision {
	dec := g.run(ctx, req)

	g.metrics.Decision(dec.Allowed, reasonKind(dec))
	if !dec.Allowed {
		g.logger.Warn().
			Str("ip", req.ClientIP).
			Str("method", req.Method).
			Str("path", req.Path).
			Str("reason", dec.Reason.Kind).
			Msg("request blocked")
		_ = g.audit.Log(audit.Entry{
			ClientIP:     req.ClientIP,
			Method:       req.Method,
			Path:         req.Path,
			UserAgent:    req.UserAgent(),
			Decision:     "deny",
			ReasonKind:   dec.Reason.Kind,
			ReasonDetail: dec.Reason.Detail,
		})
	}
	return dec
}

func reasonKind(d Decision) string {
	if d.Reason == nil {
		return ""
	}
	return d.Reason.Kind
}

func (g *Guard) run(ctx context.Context, req Request) Decision {
	if g.ip != nil {
		addr, err := netip.ParseAddr(req.ClientIP)
		if err != nil {
			// No usable address means the IP checks cannot run; the
			// stateless checks still apply.
			g.logger.Debug().Str("ip", req.ClientIP).Msg("unparseable client address; skipping IP filter")
		} else if res := g.ip.Check(addr); !res.Allowed {
			return deny(res.Kind, res.Detail)
		}
	}

	if g.ua != nil {
		if blocked, agent := g.ua.Check(req.UserAgent(), req.Path); blocked {
			return deny(uafilter.KindBlockedAgent,
				fmt.Sprintf("user agent matches blocked entry %q", agent))
		}
	}

	remaining := -1
	if g.rate != nil {
		res, err := g.rate.Check(ctx, req.ClientIP, req.Path)
		switch {
		case err != nil:
			g.metrics.StorageError()
			if !g.failOpen {
				return deny(KindStorageUnavailable, "storage backend unreachable")
			}
			g.logger.Error().Err(err).Msg("storage unavailable; admitting request (fail-open)")
		case !res.Allowed:
			return deny(res.Kind, res.Detail)
		default:
			remaining = res.Remaining
		}
	}

	if g.det != nil {
		if m, hit := g.det.Scan(req.Path, req.Query, req.Body); hit {
			if !g.det.LogOnly() {
				return deny(detector.KindSuspiciousPattern,
					fmt.Sprintf("%s signature matched in %s", m.Category, m.Target))
			}
			g.det.LogMatch(req.ClientIP, m)
			if g.auditSuspicious {
				_ = g.audit.Log(audit.Entry{
					ClientIP:     req.ClientIP,
					Method:       req.Method,
					Path:         req.Path,
					UserAgent:    req.UserAgent(),
					Decision:     "allow",
					ReasonKind:   detector.KindSuspiciousPattern,
					ReasonDetail: fmt.Sprintf("%s signature matched in %s", m.Category, m.Target),
				})
			}
		}
	}

	return Decision{Allowed: true, Remaining: remaining}
}

// UpdateMetrics records the outcome of a completed request. It is meant
// to be called after the response is written and never influences an
// admission decision; storage errors here are logged and swallowed.
func (g *Guard) UpdateMetrics(ctx context.Context, req Request, status int) {
	g.metrics.Response(status)

	if _, err := g.store.Incr(ctx, storage.StatKey("requests"), 1, 0); err != nil {
		g.logger.Debug().Err(err).Msg("recording request stat failed")
		return
	}
	if status == 403 {
		if _, err := g.store.Incr(ctx, storage.StatKey("blocked"), 1, 0); err != nil {
			g.logger.Debug().Err(err).Msg("recording blocked stat failed")
		}
	}
}
