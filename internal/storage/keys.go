package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Key prefixes shared by the rate limiter and the admin surface. The ban
// key format in particular is part of the operational contract: an
// operator can ban a client from any process that shares the store.
const (
	windowPrefix    = "ratelimit:"
	violationPrefix = "ratelimit:violations:"
	banPrefix       = "banned_ip:"
	statsPrefix     = "stats:"
)

// WindowKey addresses the fixed-window counter for one client under one
// matched route pattern.
func WindowKey(clientID, pattern string) string {
	return windowPrefix + clientID + ":" + pattern
}

// ViolationKey addresses the rate-limit violation counter for a client.
func ViolationKey(clientID string) string {
	return violationPrefix + clientID
}

// BanKey addresses the ban record for a client.
func BanKey(clientID string) string {
	return banPrefix + clientID
}

// StatKey addresses an aggregate counter (e.g. "requests", "blocked").
func StatKey(name string) string {
	return statsPrefix + name
}

// BanRecord is the value stored under a ban key. Presence of the key with
// an unexpired BannedUntil means the client is denied regardless of any
// other check.
type BanRecord struct {
	Reason      string    `json:"reason"`
	BannedUntil time.Time `json:"banned_until"`
}

// SetBan writes a ban record for clientID lasting d.
func SetBan(ctx context.Context, s Storage, clientID, reason string, d time.Duration) error {
	rec := BanRecord{Reason: reason, BannedUntil: time.Now().Add(d)}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding ban record: %w", err)
	}
	return s.Set(ctx, BanKey(clientID), raw, d)
}

// GetBan returns the active ban record for clientID, or nil if the client
// is not banned. A record whose BannedUntil has passed is treated as
// absent even if the backend has not reaped the key yet.
func GetBan(ctx context.Context, s Storage, clientID string) (*BanRecord, error) {
	raw, err := s.Get(ctx, BanKey(clientID))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var rec BanRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding ban record: %w", err)
	}
	if !rec.BannedUntil.IsZero() && time.Now().After(rec.BannedUntil) {
		return nil, nil
	}
	return &rec, nil
}

// RemoveBan deletes the ban record for clientID.
func RemoveBan(ctx context.Context, s Storage, clientID string) error {
	return s.Delete(ctx, BanKey(clientID))
}
