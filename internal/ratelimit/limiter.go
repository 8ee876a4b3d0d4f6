// Package ratelimit implements fixed-window request counting with burst
// allowance and automatic banning, accounted in shared storage so that
// every process behind the same backend sees the same counters.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/py-daily/pywebguard/internal/routes"
	"github.com/py-daily/pywebguard/internal/storage"
)

// Deny reason kinds produced by this check.
const (
	KindRateLimitExceeded = "rate_limit_exceeded"
	KindBanned            = "banned"
)

// violationTTL bounds how long rate-limit violations accumulate toward
// an auto-ban.
const violationTTL = 24 * time.Hour

// globalPattern keys the window counter when no route override matched.
const globalPattern = "global"

// Rule is one resolved rate-limit rule. A per-route rule replaces the
// global rule's numeric fields wholesale; there is no merging.
type Rule struct {
	RequestsPerWindow int
	WindowSeconds     int
	BurstSize         int
	AutoBanThreshold  int
	AutoBanDuration   time.Duration
	ExcludedPaths     []string
}

// Window returns the rule's window as a duration, defaulting to 60s.
func (r Rule) Window() time.Duration {
	if r.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(r.WindowSeconds) * time.Second
}

// RouteRule binds a rule to a route pattern.
type RouteRule struct {
	Pattern string
	Rule    Rule
}

// Limiter evaluates the rate-limit check for one (client, path) pair.
type Limiter struct {
	store   storage.Storage
	global  Rule
	byRoute map[string]Rule
	matcher *routes.Matcher
	logger  zerolog.Logger
}

// New builds a limiter with a global rule and ordered per-route
// overrides.
func New(store storage.Storage, global Rule, routeRules []RouteRule, logger zerolog.Logger) *Limiter {
	patterns := make([]string, 0, len(routeRules))
	byRoute := make(map[string]Rule, len(routeRules))
	for _, rr := range routeRules {
		patterns = append(patterns, rr.Pattern)
		byRoute[rr.Pattern] = rr.Rule
	}
	return &Limiter{
		store:   store,
		global:  global,
		byRoute: byRoute,
		matcher: routes.NewMatcher(patterns),
		logger:  logger,
	}
}

// Result is the outcome of one rate-limit evaluation.
type Result struct {
	Allowed bool
	Kind    string
	Detail  string

	// Remaining is requestsPerWindow minus the count seen so far; it may
	// be negative while the burst allowance is being consumed.
	Remaining int

	// Reset is when the current window's counter expires.
	Reset time.Time
}

// resolveRule picks the rule and the counter-key pattern for a path.
func (l *Limiter) resolveRule(path string) (Rule, string) {
	if pattern, ok := l.matcher.Resolve(path); ok {
		return l.byRoute[pattern], pattern
	}
	return l.global, globalPattern
}

// Check runs the admission sequence: excluded-path bypass, ban
// check, atomic window increment, burst comparison, violation counting
// and auto-ban. Storage failures are returned to the caller, which owns
// the fail-open/fail-closed policy.
func (l *Limiter) Check(ctx context.Context, clientID, path string) (Result, error) {
	rule, pattern := l.resolveRule(path)

	if routes.PathExcluded(rule.ExcludedPaths, path) {
		return Result{Allowed: true, Remaining: -1}, nil
	}

	ban, err := storage.GetBan(ctx, l.store, clientID)
	if err != nil {
		return Result{}, fmt.Errorf("checking ban: %w", err)
	}
	if ban != nil {
		return Result{
			Kind:   KindBanned,
			Detail: fmt.Sprintf("client banned until %s: %s", ban.BannedUntil.Format(time.RFC3339), ban.Reason),
		}, nil
	}

	window := rule.Window()
	n, err := l.store.Incr(ctx, storage.WindowKey(clientID, pattern), 1, window)
	if err != nil {
		return Result{}, fmt.Errorf("incrementing window counter: %w", err)
	}
	reset := time.Now().Add(window)

	if n <= int64(rule.RequestsPerWindow+rule.BurstSize) {
		return Result{
			Allowed:   true,
			Remaining: rule.RequestsPerWindow - int(n),
			Reset:     reset,
		}, nil
	}

	res := Result{
		Kind:   KindRateLimitExceeded,
		Detail: fmt.Sprintf("rate limit exceeded for %s", pattern),
		Reset:  reset,
	}

	if rule.AutoBanThreshold <= 0 {
		return res, nil
	}
	violations, err := l.store.Incr(ctx, storage.ViolationKey(clientID), 1, violationTTL)
	if err != nil {
		return Result{}, fmt.Errorf("counting violation: %w", err)
	}
	if violations >= int64(rule.AutoBanThreshold) {
		reason := fmt.Sprintf("auto-ban after %d rate limit violations", violations)
		if err := storage.SetBan(ctx, l.store, clientID, reason, rule.AutoBanDuration); err != nil {
			return Result{}, fmt.Errorf("writing auto-ban: %w", err)
		}
		if err := l.store.Delete(ctx, storage.ViolationKey(clientID)); err != nil {
			return Result{}, fmt.Errorf("resetting violations: %w", err)
		}
		l.logger.Warn().
			Str("client", clientID).
			Dur("duration", rule.AutoBanDuration).
			Msg("client auto-banned")
	}
	return res, nil
}
