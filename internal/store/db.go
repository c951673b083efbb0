package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB is a KeyedStore backed by a single Postgres table of jsonb entries.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults and ensures the
// entries table exists.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return &DB{Client: db}, err
	}
	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_entries (
			key        TEXT PRIMARY KEY,
			value      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return &DB{Client: db}, err
}

// Get returns the entry value, or nil when the key does not exist.
func (d *DB) Get(ctx context.Context, key string) (json.RawMessage, error) {
	row := d.Client.QueryRowContext(ctx, `SELECT value FROM ledger_entries WHERE key = $1`, key)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return raw, nil
}

// Set upserts the entry value. Last writer wins, matching the source
// system's storage semantics.
func (d *DB) Set(ctx context.Context, key string, value json.RawMessage) error {
	_, err := d.Client.ExecContext(ctx, `
		INSERT INTO ledger_entries (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, []byte(value))
	return err
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
