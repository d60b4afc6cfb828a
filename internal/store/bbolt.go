package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltFilename is the database file name used by Open for the bolt driver.
const BoltFilename = "kiosk.db"

// Bucket names used in the bbolt database.
var (
	bucketAuth   = []byte("auth")
	bucketConfig = []byte("config")
)

// Keys within the buckets.
var (
	keyAuthRecord = []byte("record")
	keyBlob       = []byte("blob")
	keyPublic     = []byte("public")
)

// BoltStore implements Store using bbolt.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) a bbolt database at the given path and
// ensures all required buckets exist. The file is created with 0600 permissions.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	if err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketAuth, bucketConfig} {
			if _, bErr := tx.CreateBucketIfNotExists(b); bErr != nil {
				return fmt.Errorf("create bucket %s: %w", b, bErr)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database can serve a read transaction.
func (s *BoltStore) Ping() error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketAuth) == nil {
			return fmt.Errorf("bucket %s missing", bucketAuth)
		}
		return nil
	})
}

// GetAuth returns the auth record, or ErrAuthNotFound if not set.
func (s *BoltStore) GetAuth() (*AuthRecord, error) {
	var record AuthRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketAuth).Get(keyAuthRecord)
		if v == nil {
			return ErrAuthNotFound
		}
		return json.Unmarshal(v, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// SetAuth stores the auth record.
func (s *BoltStore) SetAuth(record *AuthRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putAuth(tx, record)
	})
}

// GetConfigBlob returns the encrypted configuration, or ErrBlobNotFound.
func (s *BoltStore) GetConfigBlob() (string, error) {
	var blob string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketConfig).Get(keyBlob)
		if v == nil {
			return ErrBlobNotFound
		}
		blob = string(v)
		return nil
	})
	return blob, err
}

// SetConfig stores the blob and the public projection in one transaction.
func (s *BoltStore) SetConfig(blob string, public []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConfig)
		if err := b.Put(keyBlob, []byte(blob)); err != nil {
			return err
		}
		return b.Put(keyPublic, public)
	})
}

// GetPublicConfig returns the raw projection JSON, or ErrNotFound.
func (s *BoltStore) GetPublicConfig() ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketConfig).Get(keyPublic)
		if v == nil {
			return ErrNotFound
		}
		// Values are only valid for the life of the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

// SetAuthWithConfig replaces the auth record and the blob in one transaction.
func (s *BoltStore) SetAuthWithConfig(record *AuthRecord, blob string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := putAuth(tx, record); err != nil {
			return err
		}
		return tx.Bucket(bucketConfig).Put(keyBlob, []byte(blob))
	})
}

// DeleteAll empties both buckets.
func (s *BoltStore) DeleteAll() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketAuth, bucketConfig} {
			if err := tx.DeleteBucket(name); err != nil {
				return fmt.Errorf("delete bucket %s: %w", name, err)
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

func putAuth(tx *bolt.Tx, record *AuthRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal auth record: %w", err)
	}
	return tx.Bucket(bucketAuth).Put(keyAuthRecord, data)
}
