package mcp

import (
	"context"
	"errors"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/abdul-hamid-achik/kiosk/internal/kiosk"
	"github.com/abdul-hamid-achik/kiosk/internal/vault"
)

// --- kiosk_public_config ---

type publicConfigInput struct{}

type publicConfigOutput struct {
	Config *kiosk.PublicConfig `json:"config"`
	// Default is true when the kiosk has not been set up yet.
	Default bool `json:"default"`
}

// --- kiosk_get_config ---

type getConfigInput struct {
	PIN string `json:"pin" jsonschema:"The kiosk admin PIN."`
}

type getConfigOutput struct {
	Config   *kiosk.Config `json:"config"`
	Redacted bool          `json:"redacted"`
	Warning  string        `json:"warning,omitempty"`
}

func (s *KioskMCPServer) registerConfigTools() {
	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "kiosk_public_config",
		Description: "Get the public dashboard configuration: location, transport stops, slideshow interval. Needs no PIN.",
	}, s.handlePublicConfig)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name: "kiosk_get_config",
		Description: "Decrypt the full dashboard configuration with the admin PIN. " +
			"Credentials are redacted unless the access policy sets reveal_secrets.",
	}, s.handleGetConfig)
}

func (s *KioskMCPServer) handlePublicConfig(_ context.Context, _ *sdkmcp.CallToolRequest, _ publicConfigInput) (*sdkmcp.CallToolResult, publicConfigOutput, error) {
	pub, err := s.vault.LoadPublicConfig()
	if err != nil {
		return nil, publicConfigOutput{}, fmt.Errorf("load public config: %w", err)
	}
	if pub == nil {
		return nil, publicConfigOutput{Config: kiosk.DefaultPublic(), Default: true}, nil
	}
	return nil, publicConfigOutput{Config: pub}, nil
}

func (s *KioskMCPServer) handleGetConfig(_ context.Context, _ *sdkmcp.CallToolRequest, input getConfigInput) (*sdkmcp.CallToolResult, getConfigOutput, error) {
	status := s.limiter.Reserve(limiterKey)
	if !status.Allowed {
		return nil, getConfigOutput{}, fmt.Errorf("too many wrong PINs, retry in %d seconds", status.LockoutSeconds)
	}

	cfg, err := s.vault.Unlock(input.PIN)
	if errors.Is(err, vault.ErrWrongPIN) {
		return nil, getConfigOutput{}, fmt.Errorf("invalid PIN (%d attempts left)", status.RemainingAttempts)
	}
	if err != nil {
		s.limiter.Release(limiterKey)
		return nil, getConfigOutput{}, fmt.Errorf("load config: %w", err)
	}
	s.limiter.Record(limiterKey, true)

	if s.policy.RevealSecrets {
		return nil, getConfigOutput{
			Config:  cfg,
			Warning: "Credentials are now part of the AI conversation context.",
		}, nil
	}
	return nil, getConfigOutput{Config: redactConfig(cfg), Redacted: true}, nil
}
