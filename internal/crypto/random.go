package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// SetupCodeAlphabet is the symbol set for first-time setup codes. It omits
// 0, O, 1 and I. Its length is 32 so that byte % 32 is uniform.
const SetupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// SetupCodeLength is the number of characters in a setup code.
const SetupCodeLength = 6

// SessionTokenSize is the number of random bytes in a session id.
const SessionTokenSize = 32

// GenerateBytes returns n cryptographically secure random bytes.
func GenerateBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}

// GenerateSalt returns a fresh hex-encoded 32-byte salt.
func GenerateSalt() (string, error) {
	salt, err := GenerateBytes(SaltSize)
	if err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(salt), nil
}

// GenerateToken returns a hex-encoded random token of length bytes.
func GenerateToken(length int) (string, error) {
	token, err := GenerateBytes(length)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(token), nil
}

// GenerateSetupCode returns a random code of SetupCodeLength characters drawn
// from SetupCodeAlphabet.
func GenerateSetupCode() (string, error) {
	raw, err := GenerateBytes(SetupCodeLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate setup code: %w", err)
	}

	code := make([]byte, SetupCodeLength)
	for i, b := range raw {
		code[i] = SetupCodeAlphabet[int(b)%len(SetupCodeAlphabet)]
	}
	return string(code), nil
}
