// Package crypto provides the cryptographic primitives for the kiosk admin
// store. It implements AES-256-GCM envelope encryption of the configuration
// and scrypt key derivation from the admin PIN mixed with a machine secret.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/scrypt"
)

const (
	// KeySize is the size of AES-256 keys in bytes.
	KeySize = 32

	// IVSize is the size of the GCM nonce in bytes. The envelope format uses
	// a 16-byte IV rather than the 12-byte GCM default.
	IVSize = 16

	// TagSize is the size of GCM authentication tags in bytes.
	TagSize = 16

	// SaltSize is the number of random bytes in a salt before hex encoding.
	SaltSize = 32

	// MachineSecretSize is the required length of the machine secret.
	MachineSecretSize = 32

	// ScryptN is the scrypt CPU/memory cost parameter (2^14).
	ScryptN = 1 << 14

	// ScryptR is the scrypt block size parameter.
	ScryptR = 8

	// ScryptP is the scrypt parallelism parameter.
	ScryptP = 1

	blobSeparator = ":"
)

var (
	// ErrInvalidMachineSecret is returned when the machine secret has the wrong size.
	ErrInvalidMachineSecret = errors.New("machine secret must be 32 bytes")

	// ErrInvalidBlob is returned when an encrypted blob is malformed.
	ErrInvalidBlob = errors.New("invalid encrypted data format")

	// ErrDecryptionFailed is returned when decryption fails (authentication error).
	ErrDecryptionFailed = errors.New("decryption failed: authentication error")
)

// Cipher derives configuration keys and seals configuration blobs. It holds
// the machine secret that is mixed into every config key.
type Cipher struct {
	machineSecret []byte
}

// NewCipher creates a Cipher bound to the given machine secret.
func NewCipher(machineSecret []byte) (*Cipher, error) {
	if len(machineSecret) != MachineSecretSize {
		return nil, ErrInvalidMachineSecret
	}
	secret := make([]byte, len(machineSecret))
	copy(secret, machineSecret)
	return &Cipher{machineSecret: secret}, nil
}

// DeriveConfigKey derives the 32-byte configuration key from the PIN, the
// machine secret and the salt.
func (c *Cipher) DeriveConfigKey(pin, salt string) ([]byte, error) {
	input := make([]byte, 0, len(pin)+len(c.machineSecret))
	input = append(input, pin...)
	input = append(input, c.machineSecret...)
	defer ZeroBytes(input)

	key, err := scrypt.Key(input, []byte(salt), ScryptN, ScryptR, ScryptP, KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext under the key derived from pin and salt.
// The result is hex(iv):hex(tag):hex(ciphertext).
func (c *Cipher) Encrypt(plaintext []byte, pin, salt string) (string, error) {
	key, err := c.DeriveConfigKey(pin, salt)
	if err != nil {
		return "", err
	}
	defer ZeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ciphertext := sealed[:len(sealed)-TagSize]
	tag := sealed[len(sealed)-TagSize:]

	return strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	}, blobSeparator), nil
}

// Decrypt opens a blob produced by Encrypt. It returns ErrInvalidBlob for
// malformed input and ErrDecryptionFailed when the tag does not verify or the
// plaintext is not valid UTF-8.
func (c *Cipher) Decrypt(blob, pin, salt string) ([]byte, error) {
	iv, tag, ciphertext, err := splitBlob(blob)
	if err != nil {
		return nil, err
	}

	key, err := c.DeriveConfigKey(pin, salt)
	if err != nil {
		return nil, err
	}
	defer ZeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if !utf8.Valid(plaintext) {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func splitBlob(blob string) (iv, tag, ciphertext []byte, err error) {
	parts := strings.Split(strings.TrimSpace(blob), blobSeparator)
	if len(parts) != 3 {
		return nil, nil, nil, ErrInvalidBlob
	}

	if iv, err = hex.DecodeString(parts[0]); err != nil || len(iv) != IVSize {
		return nil, nil, nil, ErrInvalidBlob
	}
	if tag, err = hex.DecodeString(parts[1]); err != nil || len(tag) != TagSize {
		return nil, nil, nil, ErrInvalidBlob
	}
	if ciphertext, err = hex.DecodeString(parts[2]); err != nil {
		return nil, nil, nil, ErrInvalidBlob
	}
	return iv, tag, ciphertext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes", KeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// HashPIN derives the verification hash for a PIN. It deliberately does not
// use the machine secret, so the stored hash cannot be turned into the
// configuration key.
func HashPIN(pin, salt string) (string, error) {
	hash, err := scrypt.Key([]byte(pin), []byte(salt), ScryptN, ScryptR, ScryptP, KeySize)
	if err != nil {
		return "", fmt.Errorf("failed to hash pin: %w", err)
	}
	return hex.EncodeToString(hash), nil
}

// VerifyPIN reports whether pin hashes to expectedHash under salt.
// The comparison is constant-time.
func VerifyPIN(pin, salt, expectedHash string) (bool, error) {
	computed, err := HashPIN(pin, salt)
	if err != nil {
		return false, err
	}
	return CompareTokens([]byte(computed), []byte(expectedHash)), nil
}

// CompareTokens compares two values in constant time.
func CompareTokens(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// ZeroBytes securely zeros a byte slice.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
