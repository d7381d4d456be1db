package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS catalog_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS catalog_leases (
	key        TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);`

// PostgresStore is a Store backed by a single Postgres table.
type PostgresStore struct {
	DB *pgxpool.Pool
}

// ConnectPostgres opens a pool and makes sure the tables exist.
func ConnectPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: postgres connect: %v", ErrStoreUnavailable, err)
	}

	store := &PostgresStore{DB: pool}
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Migrate creates the backing tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.DB.Exec(ctx, createTablesSQL); err != nil {
		return fmt.Errorf("%w: postgres migrate: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.DB.Close()
}

// Get retrieves the value for key.
func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.DB.QueryRow(ctx, `SELECT value FROM catalog_kv WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: postgres get %s: %v", ErrStoreUnavailable, key, err)
	}
	return value, nil
}

// Put upserts value under key.
func (s *PostgresStore) Put(ctx context.Context, key, value string) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO catalog_kv (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("%w: postgres put %s: %v", ErrStoreUnavailable, key, err)
	}
	return nil
}

// Ping checks the pool.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.DB.Ping(ctx); err != nil {
		return fmt.Errorf("%w: postgres ping: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// AcquireLease inserts a lease row, taking over rows whose expiry has passed.
func (s *PostgresStore) AcquireLease(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		INSERT INTO catalog_leases (key, owner, expires_at)
		VALUES ($1, $2, now() + make_interval(secs => $3))
		ON CONFLICT (key) DO UPDATE
			SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
			WHERE catalog_leases.expires_at < now()`,
		key, owner, ttl.Seconds())
	if err != nil {
		return false, fmt.Errorf("%w: postgres lease %s: %v", ErrStoreUnavailable, key, err)
	}
	return ct.RowsAffected() == 1, nil
}

// ReleaseLease deletes the lease row if owner still holds it.
func (s *PostgresStore) ReleaseLease(ctx context.Context, key, owner string) error {
	if _, err := s.DB.Exec(ctx, `DELETE FROM catalog_leases WHERE key = $1 AND owner = $2`, key, owner); err != nil {
		return fmt.Errorf("%w: postgres release %s: %v", ErrStoreUnavailable, key, err)
	}
	return nil
}
