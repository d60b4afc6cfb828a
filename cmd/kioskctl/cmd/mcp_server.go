package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	kioskmcp "github.com/abdul-hamid-achik/kiosk/internal/mcp"
)

var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Start kioskctl as an MCP server (stdio)",
	Long: `Start kioskctl as a Model Context Protocol server for AI agent integration.
Communicates over stdin/stdout using JSON-RPC.

The access policy is read from mcp-policy.yaml in the data directory:
  access_mode: read-only      # or read-write to allow kiosk_issue_setup_code
  reveal_secrets: false       # return credentials from kiosk_get_config
  max_pin_attempts: 3`,
	Hidden: true,
	RunE:   runMCPServer,
}

func init() {
	rootCmd.AddCommand(mcpServerCmd)
}

func runMCPServer(cmd *cobra.Command, _ []string) error {
	v, err := openVault()
	if err != nil {
		return err
	}
	defer v.Close()

	policy, err := kioskmcp.LoadPolicy(filepath.Join(v.dataDir, kioskmcp.PolicyFilename))
	if err != nil {
		return err
	}

	srv := kioskmcp.NewKioskMCPServer(v.Vault, policy)
	return srv.Run(cmd.Context())
}
