package mcp

import (
	"context"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// --- kiosk_status ---

type statusInput struct{}

type statusOutput struct {
	SetupComplete bool `json:"setup_complete"`
	SetupPending  bool `json:"setup_pending"`
	CodeExpired   bool `json:"code_expired"`
}

// --- kiosk_issue_setup_code ---

type issueSetupCodeInput struct{}

type issueSetupCodeOutput struct {
	Code      string `json:"code"`
	ExpiresAt string `json:"expires_at" jsonschema:"RFC 3339 timestamp."`
}

func (s *KioskMCPServer) registerStatusTools() {
	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name:        "kiosk_status",
		Description: "Report whether the kiosk admin PIN has been set and whether a setup code is pending. Never returns the code.",
	}, s.handleStatus)

	sdkmcp.AddTool(s.server, &sdkmcp.Tool{
		Name: "kiosk_issue_setup_code",
		Description: "Issue a one-time setup code for the setup wizard, replacing any pending one. " +
			"Only works before setup is complete.",
	}, s.handleIssueSetupCode)
}

func (s *KioskMCPServer) handleStatus(_ context.Context, _ *sdkmcp.CallToolRequest, _ statusInput) (*sdkmcp.CallToolResult, statusOutput, error) {
	record, err := s.vault.LoadAuth()
	if err != nil {
		return nil, statusOutput{}, fmt.Errorf("load auth: %w", err)
	}

	var out statusOutput
	if record != nil {
		out.SetupComplete = record.SetupComplete
		out.SetupPending = record.HasPendingCode()
		out.CodeExpired = out.SetupPending && s.vault.CodeExpired(record)
	}
	return nil, out, nil
}

func (s *KioskMCPServer) handleIssueSetupCode(_ context.Context, _ *sdkmcp.CallToolRequest, _ issueSetupCodeInput) (*sdkmcp.CallToolResult, issueSetupCodeOutput, error) {
	if !s.policy.CanWrite() {
		return nil, issueSetupCodeOutput{}, fmt.Errorf("write operations are not allowed by policy (access_mode: %s)", s.policy.AccessMode)
	}

	code, expiry, err := s.vault.IssueSetupCode()
	if err != nil {
		return nil, issueSetupCodeOutput{}, fmt.Errorf("issue setup code: %w", err)
	}
	return nil, issueSetupCodeOutput{Code: code, ExpiresAt: expiry.UTC().Format(time.RFC3339)}, nil
}
