package mcp

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Access modes.
const (
	AccessReadOnly  = "read-only"
	AccessReadWrite = "read-write"
)

// PolicyFilename is the policy file looked up in the data directory.
const PolicyFilename = "mcp-policy.yaml"

// AccessPolicy controls what the MCP server can expose.
type AccessPolicy struct {
	AccessMode string `yaml:"access_mode"`
	// RevealSecrets returns API keys and OAuth credentials from
	// kiosk_get_config instead of redacting them.
	RevealSecrets bool `yaml:"reveal_secrets"`
	// MaxPINAttempts bounds wrong PINs per server process before
	// kiosk_get_config is locked out.
	MaxPINAttempts int `yaml:"max_pin_attempts"`
}

// DefaultPolicy returns a read-only policy that redacts secrets.
func DefaultPolicy() *AccessPolicy {
	return &AccessPolicy{
		AccessMode:     AccessReadOnly,
		RevealSecrets:  false,
		MaxPINAttempts: 3,
	}
}

// LoadPolicy reads an access policy from a YAML file. Fields missing from the
// file keep their defaults. Returns nil, nil if the file does not exist.
func LoadPolicy(path string) (*AccessPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	policy := DefaultPolicy()
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return policy, nil
}

// CanWrite reports whether the policy allows write operations.
func (p *AccessPolicy) CanWrite() bool {
	return p.AccessMode == AccessReadWrite
}
