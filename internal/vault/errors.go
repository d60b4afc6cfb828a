package vault

import "errors"

var (
	// ErrNotInitialized is returned when no auth record exists yet.
	ErrNotInitialized = errors.New("kiosk not initialized")

	// ErrAlreadySetup is returned when issuing a setup code after setup completed.
	ErrAlreadySetup = errors.New("setup already complete")

	// ErrSetupNotPending is returned by CompleteSetup when there is no
	// outstanding setup code to redeem.
	ErrSetupNotPending = errors.New("setup already complete or not initialized")

	// ErrSetupIncomplete is returned when a PIN is checked before setup completed.
	ErrSetupIncomplete = errors.New("setup not complete")

	// ErrInvalidSetupCode is returned when the setup code does not match.
	ErrInvalidSetupCode = errors.New("invalid setup code")

	// ErrSetupCodeExpired is returned when the setup code is past its expiry.
	ErrSetupCodeExpired = errors.New("setup code expired")

	// ErrWrongPIN is returned when the PIN does not match the stored hash.
	ErrWrongPIN = errors.New("invalid PIN")

	// ErrConfigNotFound is returned when no encrypted configuration exists.
	ErrConfigNotFound = errors.New("config not found")

	// ErrDecryption is returned when the configuration cannot be decrypted,
	// usually because the PIN is wrong or the machine secret changed.
	ErrDecryption = errors.New("failed to decrypt config (wrong PIN?)")
)
