// Package detector scans request paths, query strings and bodies for
// known attack signatures (SQL injection, XSS, path traversal, command
// injection, sensitive-file probes). It keeps no state between requests.
package detector

import (
	"fmt"

	"github.com/rs/zerolog"
)

// KindSuspiciousPattern is the deny reason kind produced by this check.
const KindSuspiciousPattern = "suspicious_pattern"

// Detector holds the compiled signature sets and the block/log-only mode.
type Detector struct {
	sets     []PatternSet
	scanBody bool
	logOnly  bool
	logger   zerolog.Logger
}

// Config selects detector behavior.
type Config struct {
	// ScanBody includes the request body snapshot in the scan.
	ScanBody bool

	// LogOnly logs matches and lets the request through instead of
	// denying it.
	LogOnly bool

	// ExtraSignatures are operator-supplied regexes appended to the
	// built-in library under the "custom" category. A malformed regex is
	// a load-time error.
	ExtraSignatures []string

	Logger zerolog.Logger
}

// New builds a detector from the built-in signature library plus any
// configured extras.
func New(cfg Config) (*Detector, error) {
	sets := DefaultPatternSets()
	if len(cfg.ExtraSignatures) > 0 {
		custom, err := Custom("custom", cfg.ExtraSignatures)
		if err != nil {
			return nil, fmt.Errorf("compiling custom signature: %w", err)
		}
		sets = append(sets, custom)
	}
	return &Detector{
		sets:     sets,
		scanBody: cfg.ScanBody,
		logOnly:  cfg.LogOnly,
		logger:   cfg.Logger,
	}, nil
}

// Match describes the first signature hit for a request.
type Match struct {
	Category string
	Target   string // "path", "query" or "body"
}

// Scan checks path, query and (if enabled) body against every signature
// set, in order. The first hit wins.
func (d *Detector) Scan(path, query, body string) (Match, bool) {
	targets := []struct{ name, text string }{
		{"path", path},
		{"query", query},
	}
	if d.scanBody && body != "" {
		targets = append(targets, struct{ name, text string }{"body", body})
	}

	for _, tgt := range targets {
		if tgt.text == "" {
			continue
		}
		for i := range d.sets {
			if d.sets[i].MatchAny(tgt.text) {
				return Match{Category: d.sets[i].Category, Target: tgt.name}, true
			}
		}
	}
	return Match{}, false
}

// LogOnly reports whether matches are logged instead of blocked.
func (d *Detector) LogOnly() bool { return d.logOnly }

// LogMatch emits the structured event for a suspicious-but-allowed
// request.
func (d *Detector) LogMatch(clientID string, m Match) {
	d.logger.Warn().
		Str("client", clientID).
		Str("category", m.Category).
		Str("target", m.Target).
		Msg("suspicious pattern detected")
}
