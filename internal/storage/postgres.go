package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// identPattern restricts namespaces used as SQL table names.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Postgres adapts PostgreSQL to the Storage contract. Incr is a single
// INSERT ... ON CONFLICT ... RETURNING statement, so row-level locking in
// the server gives linearizable counters across processes.
type Postgres struct {
	pool  *pgxpool.Pool
	table string
}

// OpenPostgres connects with a standard postgres:// URL and ensures the
// key/value table exists. The namespace is used as the table name.
func OpenPostgres(ctx context.Context, url, namespace string) (*Postgres, error) {
	if !identPattern.MatchString(namespace) {
		return nil, fmt.Errorf("invalid storage namespace %q", namespace)
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres url: %w", err)
	}
	p := &Postgres{pool: pool, table: namespace}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		expires_at TIMESTAMPTZ
	)`, p.table)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, unavailable("postgres create table", err)
	}
	return p, nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	q := fmt.Sprintf(
		`SELECT value FROM %s WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		p.table)
	var value string
	err := p.pool.QueryRow(ctx, q, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("postgres get", err)
	}
	return []byte(value), nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	q := fmt.Sprintf(`INSERT INTO %s (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = $2, expires_at = $3`, p.table)
	var expires *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expires = &t
	}
	if _, err := p.pool.Exec(ctx, q, key, string(value), expires); err != nil {
		return unavailable("postgres set", err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, p.table)
	if _, err := p.pool.Exec(ctx, q, key); err != nil {
		return unavailable("postgres delete", err)
	}
	return nil
}

func (p *Postgres) Incr(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	// One upsert statement: an expired row is treated as absent, so the
	// counter restarts at amount with a fresh expiry; a live row is
	// incremented and keeps its expiry.
	q := fmt.Sprintf(`INSERT INTO %s AS t (key, value, expires_at) VALUES ($1, $2::text, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = CASE WHEN t.expires_at IS NOT NULL AND t.expires_at <= now()
				THEN $2::text
				ELSE (t.value::bigint + $2)::text END,
			expires_at = CASE WHEN t.expires_at IS NOT NULL AND t.expires_at <= now()
				THEN $3
				ELSE t.expires_at END
		RETURNING value::bigint`, p.table)
	var expires *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expires = &t
	}
	var n int64
	if err := p.pool.QueryRow(ctx, q, key, amount, expires).Scan(&n); err != nil {
		return 0, unavailable("postgres incr", err)
	}
	return n, nil
}

func (p *Postgres) Exists(ctx context.Context, key string) (bool, error) {
	q := fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM %s WHERE key = $1 AND (expires_at IS NULL OR expires_at > now()))`,
		p.table)
	var ok bool
	if err := p.pool.QueryRow(ctx, q, key).Scan(&ok); err != nil {
		return false, unavailable("postgres exists", err)
	}
	return ok, nil
}

func (p *Postgres) Clear(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, p.table)); err != nil {
		return unavailable("postgres clear", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
