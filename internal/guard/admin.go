package guard

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/py-daily/pywebguard/internal/storage"
)

// Ban bans a client for the given duration. A zero or negative duration
// bans indefinitely.
func (g *Guard) Ban(ctx context.Context, clientID, reason string, d time.Duration) error {
	if clientID == "" {
		return fmt.Errorf("ban: empty client id")
	}
	if reason == "" {
		reason = "manual ban"
	}
	if err := storage.SetBan(ctx, g.store, clientID, reason, d); err != nil {
		return fmt.Errorf("ban %s: %w", clientID, err)
	}
	g.logger.Info().Str("client", clientID).Dur("duration", d).Str("reason", reason).Msg("client banned")
	return nil
}

// Unban removes a client's ban, if any.
func (g *Guard) Unban(ctx context.Context, clientID string) error {
	if err := storage.RemoveBan(ctx, g.store, clientID); err != nil {
		return fmt.Errorf("unban %s: %w", clientID, err)
	}
	g.logger.Info().Str("client", clientID).Msg("client unbanned")
	return nil
}

// IsBanned reports whether a client is currently banned and, if so, why.
func (g *Guard) IsBanned(ctx context.Context, clientID string) (bool, *storage.BanRecord, error) {
	ban, err := storage.GetBan(ctx, g.store, clientID)
	if err != nil {
		return false, nil, err
	}
	return ban != nil, ban, nil
}

// Status is a point-in-time snapshot of the guard's policy and the
// aggregate counters accumulated in storage.
type Status struct {
	IPFilterEnabled    bool  `json:"ip_filter_enabled"`
	UserAgentEnabled   bool  `json:"user_agent_enabled"`
	RateLimitEnabled   bool  `json:"rate_limit_enabled"`
	PenetrationEnabled bool  `json:"penetration_enabled"`
	FailOpen           bool  `json:"fail_open"`
	TotalRequests      int64 `json:"total_requests"`
	BlockedRequests    int64 `json:"blocked_requests"`
}

// Status reads the aggregate counters and reports which checks are
// active. Counter reads tolerate an empty store: absent keys read as
// zero.
func (g *Guard) Status(ctx context.Context) (Status, error) {
	st := Status{
		IPFilterEnabled:    g.ip != nil,
		UserAgentEnabled:   g.ua != nil,
		RateLimitEnabled:   g.rate != nil,
		PenetrationEnabled: g.det != nil,
		FailOpen:           g.failOpen,
	}

	var err error
	if st.TotalRequests, err = readCounter(ctx, g.store, storage.StatKey("requests")); err != nil {
		return Status{}, fmt.Errorf("reading request counter: %w", err)
	}
	if st.BlockedRequests, err = readCounter(ctx, g.store, storage.StatKey("blocked")); err != nil {
		return Status{}, fmt.Errorf("reading blocked counter: %w", err)
	}
	return st, nil
}

func readCounter(ctx context.Context, store storage.Storage, key string) (int64, error) {
	v, err := store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter %s holds %q: %w", key, v, err)
	}
	return n, nil
}
