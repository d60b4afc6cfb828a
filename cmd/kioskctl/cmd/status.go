package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show kiosk setup status",
	Long:  "Show the data directory, the storage driver and whether the admin PIN has been set.",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusOutput struct {
	DataDir       string     `json:"dataDir"`
	Driver        string     `json:"driver"`
	SetupComplete bool       `json:"setupComplete"`
	SetupPending  bool       `json:"setupPending"`
	CodeExpiresAt *time.Time `json:"codeExpiresAt,omitempty"`
	CodeExpired   bool       `json:"codeExpired"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	v, err := openVault()
	if err != nil {
		return err
	}
	defer v.Close()

	record, err := v.LoadAuth()
	if err != nil {
		return err
	}

	out := statusOutput{
		DataDir: v.dataDir,
		Driver:  v.driver,
	}
	if record != nil {
		out.SetupComplete = record.SetupComplete
		out.SetupPending = record.HasPendingCode()
		if out.SetupPending {
			out.CodeExpiresAt = record.FirstTimeCodeExpiry
			out.CodeExpired = v.CodeExpired(record)
		}
	}

	if structured() {
		return printStructured(cmd.OutOrStdout(), outputFormat, out)
	}

	w := cmd.OutOrStdout()
	PrintKeyValue(w, "Data directory", out.DataDir)
	PrintKeyValue(w, "Driver", out.Driver)
	switch {
	case out.SetupComplete:
		PrintKeyValue(w, "Status", "configured")
	case out.SetupPending && out.CodeExpired:
		PrintKeyValue(w, "Status", "setup code expired")
	case out.SetupPending:
		PrintKeyValue(w, "Status", "waiting for setup")
		PrintKeyValue(w, "Code expires", out.CodeExpiresAt.Local().Format(time.Kitchen))
	default:
		PrintKeyValue(w, "Status", "not configured")
	}
	return nil
}
