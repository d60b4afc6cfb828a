// Package mcp exposes a kiosk data directory as a Model Context Protocol
// server over stdio.
package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/abdul-hamid-achik/kiosk/internal/ratelimit"
	"github.com/abdul-hamid-achik/kiosk/internal/vault"
)

// limiterKey is the single limiter bucket; the stdio transport has one client.
const limiterKey = "mcp"

// KioskMCPServer wraps a vault and exposes it as an MCP server.
type KioskMCPServer struct {
	server  *sdkmcp.Server
	vault   *vault.Vault
	policy  *AccessPolicy
	limiter *ratelimit.Limiter
}

// NewKioskMCPServer creates a new MCP server backed by the given vault and policy.
func NewKioskMCPServer(v *vault.Vault, policy *AccessPolicy) *KioskMCPServer {
	if policy == nil {
		policy = DefaultPolicy()
	}

	s := &KioskMCPServer{
		vault:   v,
		policy:  policy,
		limiter: ratelimit.New(ratelimit.WithLimits(policy.MaxPINAttempts, 0)),
	}

	s.server = sdkmcp.NewServer(
		&sdkmcp.Implementation{
			Name:    "kiosk",
			Version: "1.0.0",
		},
		&sdkmcp.ServerOptions{
			Instructions: "Kiosk exposes the setup state and configuration of a home dashboard. " +
				"Prefer kiosk_public_config over kiosk_get_config, which needs the admin PIN.",
		},
	)

	s.registerStatusTools()
	s.registerConfigTools()

	return s
}

// Run starts the MCP server on the stdio transport.
func (s *KioskMCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &sdkmcp.StdioTransport{})
}
