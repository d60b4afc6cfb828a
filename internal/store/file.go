package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File names used by FileStore inside the data directory.
const (
	AuthFilename         = "auth.json"
	ConfigBlobFilename   = "config.enc"
	PublicConfigFilename = "config.public.json"
)

// FileStore implements Store with one file per document. Every write goes to
// a temporary file in the same directory and is renamed into place.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore returns a store rooted at dir. The directory must exist.
func NewFileStore(dir string) (*FileStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s is not a directory", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

// Ping checks that the data directory is still present.
func (s *FileStore) Ping() error {
	_, err := os.Stat(s.dir)
	return err
}

// GetAuth reads auth.json, or returns ErrAuthNotFound.
func (s *FileStore) GetAuth() (*AuthRecord, error) {
	data, err := os.ReadFile(s.path(AuthFilename))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrAuthNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read auth record: %w", err)
	}

	var record AuthRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("parse auth record: %w", err)
	}
	return &record, nil
}

// SetAuth writes auth.json with owner-only permissions.
func (s *FileStore) SetAuth(record *AuthRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAuth(record)
}

// GetConfigBlob reads config.enc, or returns ErrBlobNotFound.
func (s *FileStore) GetConfigBlob() (string, error) {
	data, err := os.ReadFile(s.path(ConfigBlobFilename))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrBlobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read config blob: %w", err)
	}
	return string(data), nil
}

// SetConfig writes the blob, then the world-readable projection.
func (s *FileStore) SetConfig(blob string, public []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.path(ConfigBlobFilename), []byte(blob), 0o600); err != nil {
		return fmt.Errorf("write config blob: %w", err)
	}
	if err := writeFileAtomic(s.path(PublicConfigFilename), public, 0o644); err != nil {
		return fmt.Errorf("write public config: %w", err)
	}
	return nil
}

// GetPublicConfig reads config.public.json, or returns ErrNotFound.
func (s *FileStore) GetPublicConfig() ([]byte, error) {
	data, err := os.ReadFile(s.path(PublicConfigFilename))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read public config: %w", err)
	}
	return data, nil
}

// SetAuthWithConfig writes the blob, then the auth record.
func (s *FileStore) SetAuthWithConfig(record *AuthRecord, blob string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.path(ConfigBlobFilename), []byte(blob), 0o600); err != nil {
		return fmt.Errorf("write config blob: %w", err)
	}
	return s.writeAuth(record)
}

// DeleteAll removes every file except the machine secret.
func (s *FileStore) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range []string{AuthFilename, ConfigBlobFilename, PublicConfigFilename} {
		if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

func (s *FileStore) writeAuth(record *AuthRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal auth record: %w", err)
	}
	if err := writeFileAtomic(s.path(AuthFilename), data, 0o600); err != nil {
		return fmt.Errorf("write auth record: %w", err)
	}
	return nil
}

// writeFileAtomic replaces path with data. Readers see either the old or the
// new contents, never a partial write.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
