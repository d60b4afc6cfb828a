package store

import "time"

// AuthRecord is the singleton admin credential record.
type AuthRecord struct {
	PinHash             string     `json:"pinHash"`
	Salt                string     `json:"salt"`
	SetupComplete       bool       `json:"setupComplete"`
	FirstTimeCode       string     `json:"firstTimeCode,omitempty"`
	FirstTimeCodeExpiry *time.Time `json:"firstTimeCodeExpiry,omitempty"`
}

// HasPendingCode reports whether a setup code has been issued and not yet consumed.
func (r *AuthRecord) HasPendingCode() bool {
	return r != nil && !r.SetupComplete && r.FirstTimeCode != ""
}

// CodeExpired reports whether the pending setup code is past its expiry.
func (r *AuthRecord) CodeExpired(now time.Time) bool {
	return r.FirstTimeCodeExpiry == nil || now.After(*r.FirstTimeCodeExpiry)
}
