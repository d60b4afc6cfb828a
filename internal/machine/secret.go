// Package machine manages the host-local secret that is mixed into every
// configuration key. Ciphertext produced on one device cannot be opened on
// another even when the PIN is known.
package machine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/kiosk/internal/crypto"
)

// SecretFilename is the name of the machine secret file inside the data directory.
const SecretFilename = "machine.secret"

// ErrCorruptSecret is returned when the secret file exists but does not hold
// exactly crypto.MachineSecretSize bytes.
var ErrCorruptSecret = errors.New("machine secret file is corrupt")

// LoadOrCreateSecret returns the secret stored at path, generating and
// persisting a new one with owner-only permissions if the file is absent.
func LoadOrCreateSecret(path string) ([]byte, error) {
	secret, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(secret) != crypto.MachineSecretSize {
			return nil, fmt.Errorf("%w: %s has %d bytes", ErrCorruptSecret, path, len(secret))
		}
		return secret, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read machine secret: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create secret directory: %w", err)
	}

	secret, err = crypto.GenerateBytes(crypto.MachineSecretSize)
	if err != nil {
		return nil, fmt.Errorf("generate machine secret: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			// Lost a race with another process; use its secret.
			return LoadOrCreateSecret(path)
		}
		return nil, fmt.Errorf("create machine secret: %w", err)
	}

	if _, err := f.Write(secret); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write machine secret: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("sync machine secret: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close machine secret: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return nil, fmt.Errorf("chmod machine secret: %w", err)
	}

	slog.Info("generated new machine secret", "path", path)
	return secret, nil
}
