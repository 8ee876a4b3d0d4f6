// Package audit writes the security event log: one JSON line per denied
// (or, when configured, suspicious-but-allowed) request.
package audit

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// Entry is a single security event.
type Entry struct {
	Timestamp    time.Time `json:"timestamp"`
	ClientIP     string    `json:"client_ip"`
	Method       string    `json:"method,omitempty"`
	Path         string    `json:"path,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	Decision     string    `json:"decision"` // "deny" or "allow"
	ReasonKind   string    `json:"reason_kind,omitempty"`
	ReasonDetail string    `json:"reason_detail,omitempty"`
}

// Logger writes JSON-line security event entries.
type Logger struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewLogger creates a new audit logger writing to the given writer.
func NewLogger(w io.Writer) *Logger {
	return &Logger{enc: json.NewEncoder(w)}
}

// NewFileLogger creates a logger that writes to a file at the given path.
// Creates the file if it doesn't exist, appends if it does.
func NewFileLogger(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return NewLogger(f), nil
}

// NewStderrLogger creates a logger that writes to stderr.
func NewStderrLogger() *Logger {
	return NewLogger(os.Stderr)
}

// Log writes a single entry as a JSON line.
func (l *Logger) Log(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(entry)
}

// NopLogger returns a logger that discards all entries.
func NopLogger() *Logger {
	return NewLogger(io.Discard)
}
