package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite adapts an embedded SQLite database file to the Storage contract.
// SQLite serializes writers, so the single-statement upsert in Incr is
// atomic the same way the Postgres backend's is. Expiry is tracked as
// unix milliseconds.
type SQLite struct {
	db    *sql.DB
	table string
}

// OpenSQLite opens (or creates) the database file at path. The namespace
// is used as the table name.
func OpenSQLite(path, namespace string) (*SQLite, error) {
	if !identPattern.MatchString(namespace) {
		return nil, fmt.Errorf("invalid storage namespace %q", namespace)
	}
	if path == "" {
		path = "webguard.db"
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// A single connection sidesteps SQLITE_BUSY between pooled conns.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, table: namespace}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		expires_at INTEGER
	)`, s.table)
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, unavailable("sqlite create table", err)
	}
	return s, nil
}

func nowMillis() int64 { return time.Now().UnixMilli() }

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	q := fmt.Sprintf(
		`SELECT value FROM %s WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		s.table)
	var value string
	err := s.db.QueryRowContext(ctx, q, key, nowMillis()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("sqlite get", err)
	}
	return []byte(value), nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	q := fmt.Sprintf(`INSERT INTO %s (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		s.table)
	var expires *int64
	if ttl > 0 {
		t := time.Now().Add(ttl).UnixMilli()
		expires = &t
	}
	if _, err := s.db.ExecContext(ctx, q, key, string(value), expires); err != nil {
		return unavailable("sqlite set", err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, s.table)
	if _, err := s.db.ExecContext(ctx, q, key); err != nil {
		return unavailable("sqlite delete", err)
	}
	return nil
}

func (s *SQLite) Incr(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	q := fmt.Sprintf(`INSERT INTO %s (key, value, expires_at) VALUES (?1, CAST(?2 AS TEXT), ?3)
		ON CONFLICT(key) DO UPDATE SET
			value = CASE WHEN expires_at IS NOT NULL AND expires_at <= ?4
				THEN CAST(?2 AS TEXT)
				ELSE CAST(CAST(value AS INTEGER) + ?2 AS TEXT) END,
			expires_at = CASE WHEN expires_at IS NOT NULL AND expires_at <= ?4
				THEN ?3
				ELSE expires_at END
		RETURNING CAST(value AS INTEGER)`, s.table)
	var expires *int64
	if ttl > 0 {
		t := time.Now().Add(ttl).UnixMilli()
		expires = &t
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, q, key, amount, expires, nowMillis()).Scan(&n); err != nil {
		return 0, unavailable("sqlite incr", err)
	}
	return n, nil
}

func (s *SQLite) Exists(ctx context.Context, key string) (bool, error) {
	q := fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM %s WHERE key = ? AND (expires_at IS NULL OR expires_at > ?))`,
		s.table)
	var ok bool
	if err := s.db.QueryRowContext(ctx, q, key, nowMillis()).Scan(&ok); err != nil {
		return false, unavailable("sqlite exists", err)
	}
	return ok, nil
}

func (s *SQLite) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table)); err != nil {
		return unavailable("sqlite clear", err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }
