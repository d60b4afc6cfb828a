package cmd

import (
	"github.com/spf13/cobra"
)

var factoryResetYes bool

var factoryResetCmd = &cobra.Command{
	Use:   "factory-reset",
	Short: "Delete the admin PIN and the configuration",
	Long: `Delete the admin PIN, the encrypted configuration and the public
projection. The machine secret is kept. The kiosk returns to the setup wizard.

Requires the current PIN (or KIOSK_PIN).

Admin sessions live in the memory of a running kiosk server, which this
command cannot reach. Until they expire, browsers that were logged in keep
reading the pre-reset configuration from GET /api/config. Restart the server
after a reset, or reset from the dashboard instead, to end them at once.`,
	RunE: runFactoryReset,
}

func init() {
	rootCmd.AddCommand(factoryResetCmd)
	factoryResetCmd.Flags().BoolVarP(&factoryResetYes, "yes", "y", false, "skip confirmation")
}

func runFactoryReset(_ *cobra.Command, _ []string) error {
	v, err := openVault()
	if err != nil {
		return err
	}
	defer v.Close()

	pin, err := readPIN("KIOSK_PIN", "Enter PIN: ")
	if err != nil {
		return err
	}
	ok, err := v.VerifyPIN(pin)
	if err != nil {
		return err
	}
	if !ok {
		Error("PIN is incorrect")
		return errInvalidPIN
	}

	if !factoryResetYes && !PromptConfirm("Delete all kiosk configuration?") {
		Info("Aborted")
		return nil
	}

	if err := v.DeleteAll(); err != nil {
		return err
	}
	Success("Kiosk reset, open the dashboard to run setup again")
	Warning("Restart a running kiosk server to end existing admin sessions")
	return nil
}
