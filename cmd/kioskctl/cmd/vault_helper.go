package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/abdul-hamid-achik/kiosk/internal/config"
	"github.com/abdul-hamid-achik/kiosk/internal/crypto"
	"github.com/abdul-hamid-achik/kiosk/internal/machine"
	"github.com/abdul-hamid-achik/kiosk/internal/store"
	"github.com/abdul-hamid-achik/kiosk/internal/validation"
	"github.com/abdul-hamid-achik/kiosk/internal/vault"
)

// kioskVault is an open vault together with the store it owns.
type kioskVault struct {
	*vault.Vault
	store   store.Store
	dataDir string
	driver  string
}

func (k *kioskVault) Close() error {
	return k.store.Close()
}

// loadConfig loads the server configuration and applies flag overrides.
func loadConfig() (*config.Config, error) {
	file := cfgFile
	if file == "" {
		file = os.Getenv("KIOSK_CONFIG")
	}
	cfg, err := config.Load(file)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if driver != "" {
		cfg.Storage.Driver = driver
	}
	return cfg, nil
}

// openVault opens the kiosk data directory. The machine secret is created on
// first use, like the server does.
func openVault() (*kioskVault, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	secret, err := machine.LoadOrCreateSecret(filepath.Join(cfg.Storage.DataDir, machine.SecretFilename))
	if err != nil {
		return nil, err
	}
	cipher, err := crypto.NewCipher(secret)
	crypto.ZeroBytes(secret)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Storage.Driver, cfg.Storage.DataDir,
		store.WithPostgres(cfg.Storage.PostgresURL, cfg.Storage.PostgresMaxConns))
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", cfg.Storage.DataDir, err)
	}

	return &kioskVault{
		Vault:   vault.New(st, cipher, vault.WithSetupCodeTTL(cfg.Security.SetupCodeTTL)),
		store:   st,
		dataDir: cfg.Storage.DataDir,
		driver:  cfg.Storage.Driver,
	}, nil
}

// readPIN returns the PIN from env, or prompts for it with echo disabled.
func readPIN(env, prompt string) (string, error) {
	if pin := os.Getenv(env); pin != "" {
		return pin, nil
	}
	fmt.Fprint(os.Stderr, prompt)
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read PIN: %w", err)
	}
	return string(bytes), nil
}

// readNewPIN reads a new PIN from KIOSK_NEW_PIN, or prompts twice.
func readNewPIN() (string, error) {
	if pin := os.Getenv("KIOSK_NEW_PIN"); pin != "" {
		return pin, validation.PIN(pin)
	}

	pin, err := readPIN("", "New PIN: ")
	if err != nil {
		return "", err
	}
	if err := validation.PIN(pin); err != nil {
		return "", err
	}
	confirm, err := readPIN("", "Confirm PIN: ")
	if err != nil {
		return "", err
	}
	if pin != confirm {
		return "", errors.New("PINs do not match")
	}
	return pin, nil
}
