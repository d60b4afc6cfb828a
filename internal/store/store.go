// Package store persists the auth record, the encrypted configuration blob
// and its public projection.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Supported storage drivers.
const (
	DriverFile     = "file"
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
)

// Sentinel errors returned by store operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAuthNotFound  = fmt.Errorf("auth record %w", ErrNotFound)
	ErrBlobNotFound  = fmt.Errorf("config blob %w", ErrNotFound)
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Store defines the persistence operations needed by the vault.
type Store interface {
	// Auth record
	GetAuth() (*AuthRecord, error)
	SetAuth(record *AuthRecord) error

	// Configuration
	GetConfigBlob() (string, error)
	SetConfig(blob string, public []byte) error
	GetPublicConfig() ([]byte, error)

	// SetAuthWithConfig replaces the auth record and the blob together, used
	// when the salt changes.
	SetAuthWithConfig(record *AuthRecord, blob string) error

	// DeleteAll removes the auth record, the blob and the projection.
	DeleteAll() error

	// Lifecycle
	Ping() error
	Close() error
}

type openOptions struct {
	postgresURL      string
	postgresMaxConns int
}

// OpenOption configures backend-specific settings for Open.
type OpenOption func(*openOptions)

// WithPostgres sets the connection URL and pool size for DriverPostgres.
func WithPostgres(url string, maxConns int) OpenOption {
	return func(o *openOptions) {
		o.postgresURL = url
		o.postgresMaxConns = maxConns
	}
}

// Open creates the data directory if needed and opens the backend selected by driver.
func Open(driver, dataDir string, opts ...OpenOption) (Store, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	switch driver {
	case DriverFile, "":
		return NewFileStore(dataDir)
	case DriverBolt:
		return NewBoltStore(filepath.Join(dataDir, BoltFilename))
	case DriverPostgres:
		if o.postgresURL == "" {
			return nil, errors.New("postgres driver requires a database URL")
		}
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		return NewPostgresStore(ctx, o.postgresURL, o.postgresMaxConns)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
