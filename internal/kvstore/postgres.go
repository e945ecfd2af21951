package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Postgres backs the cold tier with a single kv table for deployments that
// already run PostgreSQL and do not want a Redis. Expired rows are filtered
// on read and reaped opportunistically on write.
type Postgres struct {
	db    *sql.DB
	clock func() time.Time
}

// Schema is the table this store expects. Applied by migrations, kept here
// so integration tests can create it directly.
const Schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
    key        TEXT PRIMARY KEY,
    value      BYTEA NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
)`

// NewPostgres wraps an existing database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, clock: time.Now}
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	query := `SELECT value FROM cache_entries WHERE key = $1 AND expires_at > $2`
	err := p.db.QueryRowContext(ctx, query, key, p.clock()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get: %w", err)
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	query := `
		INSERT INTO cache_entries (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at
	`
	if _, err := p.db.ExecContext(ctx, query, key, value, p.clock().Add(ttl)); err != nil {
		return fmt.Errorf("postgres set: %w", err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres delete: %w", err)
	}
	return nil
}

func (p *Postgres) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	query := `SELECT key FROM cache_entries WHERE key LIKE $1 || '%' AND expires_at > $2`
	rows, err := p.db.QueryContext(ctx, query, prefix, p.clock())
	if err != nil {
		return nil, fmt.Errorf("postgres list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("postgres list keys: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres list keys: %w", err)
	}
	return keys, nil
}

// Reap deletes expired rows. Called from a background ticker in main.
func (p *Postgres) Reap(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= $1`, p.clock())
	if err != nil {
		return 0, fmt.Errorf("postgres reap: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
