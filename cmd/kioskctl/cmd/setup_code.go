package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var setupCodeCmd = &cobra.Command{
	Use:   "setup-code",
	Short: "Issue a one-time setup code",
	Long: `Issue a new one-time setup code, replacing any pending one. Use it when
the kiosk screen is not reachable; the code is entered in the setup wizard.`,
	RunE: runSetupCode,
}

func init() {
	rootCmd.AddCommand(setupCodeCmd)
}

type setupCodeOutput struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func runSetupCode(cmd *cobra.Command, _ []string) error {
	v, err := openVault()
	if err != nil {
		return err
	}
	defer v.Close()

	code, expiry, err := v.IssueSetupCode()
	if err != nil {
		return err
	}

	if structured() {
		return printStructured(cmd.OutOrStdout(), outputFormat, setupCodeOutput{Code: code, ExpiresAt: expiry})
	}

	w := cmd.OutOrStdout()
	PrintKeyValue(w, "Setup code", code)
	PrintKeyValue(w, "Expires", expiry.Local().Format(time.Kitchen))
	return nil
}
