// Package storage defines the TTL-aware key/value contract that every
// stateful admission check is built on, together with adapters for the
// supported backends (memory, redis, postgres, sqlite, mongodb, badger).
//
// All backends must satisfy the same two invariants:
//
//   - Incr is linearizable per key: concurrent increments never lose an
//     update, and each caller observes a fully up-to-date count.
//   - A key whose TTL has elapsed behaves as absent for Get, Exists and
//     Incr; Incr on such a key re-creates it at the given amount with a
//     fresh TTL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable wraps transport-level backend failures so callers can
// apply their fail-open/fail-closed policy without inspecting
// driver-specific errors.
var ErrUnavailable = errors.New("storage unavailable")

// Storage is the minimal contract required by the admission checks.
// Values are opaque bytes; counters are stored as decimal text so that
// Get and Incr compose on the same key space.
type Storage interface {
	// Get returns the value for key, or (nil, nil) if the key is absent
	// or its TTL has elapsed.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Incr atomically adds amount to the counter at key and returns the
	// new value. An absent or expired key is created at amount with the
	// given ttl; the ttl of a live key is left untouched.
	Incr(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error)

	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)

	// Clear removes every key in this store's namespace.
	Clear(ctx context.Context) error

	Close() error
}

// Config selects and parameterizes a backend.
type Config struct {
	// Type is one of "memory", "redis", "postgres", "sqlite", "mongodb",
	// "file".
	Type string

	// URL is the backend connection string (ignored by memory; a file
	// path for sqlite and file).
	URL string

	// Namespace isolates this guard's keys: a key prefix for redis,
	// badger and memory, a table name for postgres/sqlite, a collection
	// name for mongodb. Defaults to "webguard".
	Namespace string
}

// Open connects the backend named by cfg.Type.
func Open(ctx context.Context, cfg Config) (Storage, error) {
	ns := cfg.Namespace
	if ns == "" {
		ns = "webguard"
	}
	switch cfg.Type {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return OpenRedis(ctx, cfg.URL, ns)
	case "postgres", "postgresql":
		return OpenPostgres(ctx, cfg.URL, ns)
	case "sqlite":
		return OpenSQLite(cfg.URL, ns)
	case "mongodb", "mongo":
		return OpenMongo(ctx, cfg.URL, ns)
	case "file", "badger":
		return OpenBadger(cfg.URL, ns)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// unavailable tags a backend error with ErrUnavailable.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

func errNotCounter(key string) error {
	return fmt.Errorf("key %q does not hold a counter", key)
}
