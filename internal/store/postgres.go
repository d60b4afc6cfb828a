package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultPostgresMaxConns caps the pool when no limit is configured.
const DefaultPostgresMaxConns = 4

// queryTimeout bounds every statement, since Store methods take no context.
const queryTimeout = 5 * time.Second

// Row keys in the kiosk_state table.
const (
	rowAuth   = "auth"
	rowBlob   = "blob"
	rowPublic = "public"
)

const schema = `
CREATE TABLE IF NOT EXISTS kiosk_state (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertState = `
INSERT INTO kiosk_state (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

// PostgresStore implements Store on a single key/value table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to url and creates the table if needed.
func NewPostgresStore(ctx context.Context, url string, maxConns int) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if maxConns <= 0 {
		maxConns = DefaultPostgresMaxConns
	}
	poolConfig.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping verifies the database connection is still alive.
func (s *PostgresStore) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) get(key string, notFound error) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM kiosk_state WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

// GetAuth returns the auth record, or ErrAuthNotFound if not set.
func (s *PostgresStore) GetAuth() (*AuthRecord, error) {
	data, err := s.get(rowAuth, ErrAuthNotFound)
	if err != nil {
		return nil, err
	}
	var record AuthRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode auth record: %w", err)
	}
	return &record, nil
}

// SetAuth stores the auth record.
func (s *PostgresStore) SetAuth(record *AuthRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal auth record: %w", err)
	}
	return s.transaction(func(tx pgx.Tx) error {
		return upsert(tx, rowAuth, data)
	})
}

// GetConfigBlob returns the encrypted configuration, or ErrBlobNotFound.
func (s *PostgresStore) GetConfigBlob() (string, error) {
	data, err := s.get(rowBlob, ErrBlobNotFound)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetConfig stores the blob and the public projection in one transaction.
func (s *PostgresStore) SetConfig(blob string, public []byte) error {
	return s.transaction(func(tx pgx.Tx) error {
		if err := upsert(tx, rowBlob, []byte(blob)); err != nil {
			return err
		}
		return upsert(tx, rowPublic, public)
	})
}

// GetPublicConfig returns the raw projection JSON, or ErrNotFound.
func (s *PostgresStore) GetPublicConfig() ([]byte, error) {
	return s.get(rowPublic, ErrNotFound)
}

// SetAuthWithConfig replaces the auth record and the blob in one transaction.
func (s *PostgresStore) SetAuthWithConfig(record *AuthRecord, blob string) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal auth record: %w", err)
	}
	return s.transaction(func(tx pgx.Tx) error {
		if err := upsert(tx, rowAuth, data); err != nil {
			return err
		}
		return upsert(tx, rowBlob, []byte(blob))
	})
}

// DeleteAll removes every row.
func (s *PostgresStore) DeleteAll() error {
	return s.transaction(func(tx pgx.Tx) error {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		_, err := tx.Exec(ctx, `DELETE FROM kiosk_state`)
		return err
	})
}

func upsert(tx pgx.Tx, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	if _, err := tx.Exec(ctx, upsertState, key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// transaction executes fn within a database transaction. If fn returns an
// error the transaction is rolled back, otherwise it is committed.
func (s *PostgresStore) transaction(fn func(tx pgx.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
