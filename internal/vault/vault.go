// Package vault owns the admin credential lifecycle and the encrypted
// configuration. It orchestrates the cipher and the store.
package vault

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/kiosk/internal/crypto"
	"github.com/abdul-hamid-achik/kiosk/internal/kiosk"
	"github.com/abdul-hamid-achik/kiosk/internal/metrics"
	"github.com/abdul-hamid-achik/kiosk/internal/store"
)

// DefaultSetupCodeTTL is how long an issued setup code stays redeemable.
const DefaultSetupCodeTTL = 15 * time.Minute

// Vault orchestrates crypto and store operations.
type Vault struct {
	store   store.Store
	cipher  *crypto.Cipher
	codeTTL time.Duration
	now     func() time.Time
	mu      sync.Mutex
}

// Option configures a Vault.
type Option func(*Vault)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) { v.now = now }
}

// WithSetupCodeTTL overrides DefaultSetupCodeTTL.
func WithSetupCodeTTL(d time.Duration) Option {
	return func(v *Vault) {
		if d > 0 {
			v.codeTTL = d
		}
	}
}

// New returns a Vault over the given store and cipher.
func New(s store.Store, c *crypto.Cipher, opts ...Option) *Vault {
	v := &Vault{
		store:   s,
		cipher:  c,
		codeTTL: DefaultSetupCodeTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SetupCodeTTL returns how long issued setup codes stay valid.
func (v *Vault) SetupCodeTTL() time.Duration {
	return v.codeTTL
}

// CodeExpired reports whether the record's setup code has passed its expiry.
// A record without an expiry is not considered expired.
func (v *Vault) CodeExpired(record *store.AuthRecord) bool {
	return record != nil && record.FirstTimeCodeExpiry != nil && v.now().After(*record.FirstTimeCodeExpiry)
}

// Ping reports whether the underlying store is usable.
func (v *Vault) Ping() error {
	return v.store.Ping()
}

// LoadAuth returns the auth record, or nil if the kiosk has never been initialized.
func (v *Vault) LoadAuth() (*store.AuthRecord, error) {
	record, err := v.store.GetAuth()
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load auth record: %w", err)
	}
	return record, nil
}

// IsSetupComplete reports whether an admin PIN has been set.
func (v *Vault) IsSetupComplete() (bool, error) {
	record, err := v.LoadAuth()
	if err != nil {
		return false, err
	}
	return record != nil && record.SetupComplete, nil
}

// IssueSetupCode generates a new setup code, replacing any previous one.
func (v *Vault) IssueSetupCode() (string, time.Time, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	record, err := v.LoadAuth()
	if err != nil {
		return "", time.Time{}, err
	}
	if record != nil && record.SetupComplete {
		return "", time.Time{}, ErrAlreadySetup
	}

	code, err := crypto.GenerateSetupCode()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate setup code: %w", err)
	}
	expiry := v.now().Add(v.codeTTL)

	if err := v.store.SetAuth(&store.AuthRecord{
		FirstTimeCode:       code,
		FirstTimeCodeExpiry: &expiry,
	}); err != nil {
		return "", time.Time{}, fmt.Errorf("save auth record: %w", err)
	}

	slog.Info("setup_code_issued", "expires_at", expiry)
	return code, expiry, nil
}

func (v *Vault) checkSetupCode(record *store.AuthRecord, code string) error {
	if !record.HasPendingCode() {
		return ErrSetupNotPending
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if subtle.ConstantTimeCompare([]byte(code), []byte(record.FirstTimeCode)) != 1 {
		return ErrInvalidSetupCode
	}
	if record.CodeExpired(v.now()) {
		return ErrSetupCodeExpired
	}
	return nil
}

// CompleteSetup redeems the setup code, sets the admin PIN and stores the
// initial configuration. On any code error the stored state is untouched.
func (v *Vault) CompleteSetup(code, pin string, cfg *kiosk.Config) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	record, err := v.LoadAuth()
	if err != nil {
		return err
	}
	if err := v.checkSetupCode(record, code); err != nil {
		return err
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	pinHash, err := hashPIN(pin, salt)
	if err != nil {
		return err
	}

	// The record goes last: until it is written the setup code stays redeemable.
	if err := v.writeConfig(cfg, pin, salt); err != nil {
		return err
	}
	if err := v.store.SetAuth(&store.AuthRecord{
		PinHash:       pinHash,
		Salt:          salt,
		SetupComplete: true,
	}); err != nil {
		return fmt.Errorf("save auth record: %w", err)
	}

	slog.Info("setup_completed")
	return nil
}

// VerifyPIN reports whether pin matches the admin PIN.
func (v *Vault) VerifyPIN(pin string) (bool, error) {
	record, err := v.LoadAuth()
	if err != nil {
		return false, err
	}
	if record == nil || !record.SetupComplete {
		return false, ErrSetupIncomplete
	}
	return verifyPIN(pin, record)
}

// Unlock verifies the PIN and returns the decrypted configuration.
func (v *Vault) Unlock(pin string) (*kiosk.Config, error) {
	ok, err := v.VerifyPIN(pin)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrWrongPIN
	}
	return v.LoadConfig(pin)
}

// SaveConfig encrypts cfg under pin and rewrites the blob and the public
// projection. The caller is responsible for checking the PIN first.
func (v *Vault) SaveConfig(cfg *kiosk.Config, pin string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	record, err := v.LoadAuth()
	if err != nil {
		return err
	}
	if record == nil {
		return ErrNotInitialized
	}
	return v.writeConfig(cfg, pin, record.Salt)
}

func (v *Vault) writeConfig(cfg *kiosk.Config, pin, salt string) error {
	blob, err := v.encrypt(cfg, pin, salt)
	if err != nil {
		return err
	}
	public, err := json.MarshalIndent(cfg.Public(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal public config: %w", err)
	}
	if err := v.store.SetConfig(blob, public); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// LoadConfig decrypts the stored configuration with pin.
func (v *Vault) LoadConfig(pin string) (*kiosk.Config, error) {
	record, err := v.LoadAuth()
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotInitialized
	}

	blob, err := v.store.GetConfigBlob()
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load config blob: %w", err)
	}

	return v.decrypt(blob, pin, record.Salt)
}

// LoadPublicConfig returns the public projection, or nil if none has been written.
func (v *Vault) LoadPublicConfig() (*kiosk.PublicConfig, error) {
	data, err := v.store.GetPublicConfig()
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load public config: %w", err)
	}

	var pub kiosk.PublicConfig
	if err := json.Unmarshal(data, &pub); err != nil {
		return nil, fmt.Errorf("parse public config: %w", err)
	}
	return &pub, nil
}

// ChangePIN re-encrypts the configuration under newPIN with a fresh salt and
// returns the configuration.
func (v *Vault) ChangePIN(currentPIN, newPIN string) (*kiosk.Config, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	record, err := v.LoadAuth()
	if err != nil {
		return nil, err
	}
	if record == nil || !record.SetupComplete {
		return nil, ErrSetupIncomplete
	}
	ok, err := verifyPIN(currentPIN, record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrWrongPIN
	}

	cfg, err := v.LoadConfig(currentPIN)
	if err != nil {
		return nil, err
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	pinHash, err := hashPIN(newPIN, salt)
	if err != nil {
		return nil, err
	}
	blob, err := v.encrypt(cfg, newPIN, salt)
	if err != nil {
		return nil, err
	}

	if err := v.store.SetAuthWithConfig(&store.AuthRecord{
		PinHash:       pinHash,
		Salt:          salt,
		SetupComplete: true,
	}, blob); err != nil {
		return nil, fmt.Errorf("save rekeyed config: %w", err)
	}

	slog.Info("pin_changed")
	return cfg, nil
}

// DeleteAll removes the auth record, the encrypted configuration and the
// public projection. The machine secret is kept.
func (v *Vault) DeleteAll() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.store.DeleteAll(); err != nil {
		return fmt.Errorf("delete kiosk data: %w", err)
	}
	slog.Warn("factory_reset")
	return nil
}

func (v *Vault) encrypt(cfg *kiosk.Config, pin, salt string) (string, error) {
	plaintext, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}

	start := time.Now()
	blob, err := v.cipher.Encrypt(plaintext, pin, salt)
	metrics.KDFDuration.WithLabelValues("config_key").Observe(time.Since(start).Seconds())
	metrics.EncryptionOperations.WithLabelValues("encrypt", metrics.Result(err)).Inc()
	if err != nil {
		return "", fmt.Errorf("encrypt config: %w", err)
	}
	return blob, nil
}

func (v *Vault) decrypt(blob, pin, salt string) (*kiosk.Config, error) {
	start := time.Now()
	plaintext, err := v.cipher.Decrypt(blob, pin, salt)
	metrics.KDFDuration.WithLabelValues("config_key").Observe(time.Since(start).Seconds())
	metrics.EncryptionOperations.WithLabelValues("decrypt", metrics.Result(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}

	var cfg kiosk.Config
	if err := json.Unmarshal(plaintext, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	return &cfg, nil
}

func hashPIN(pin, salt string) (string, error) {
	start := time.Now()
	hash, err := crypto.HashPIN(pin, salt)
	metrics.KDFDuration.WithLabelValues("pin_hash").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("hash PIN: %w", err)
	}
	return hash, nil
}

func verifyPIN(pin string, record *store.AuthRecord) (bool, error) {
	start := time.Now()
	ok, err := crypto.VerifyPIN(pin, record.Salt, record.PinHash)
	metrics.KDFDuration.WithLabelValues("pin_hash").Observe(time.Since(start).Seconds())
	if err != nil {
		return false, fmt.Errorf("verify PIN: %w", err)
	}
	return ok, nil
}
