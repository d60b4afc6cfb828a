package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/kiosk/internal/vault"
)

var changePINCmd = &cobra.Command{
	Use:   "change-pin",
	Short: "Change the admin PIN",
	Long: `Change the admin PIN and re-encrypt the configuration under it.

The PINs can also be provided via KIOSK_PIN and KIOSK_NEW_PIN. Sessions held
by a running server stay valid until they expire or log out.`,
	RunE: runChangePIN,
}

func init() {
	rootCmd.AddCommand(changePINCmd)
}

func runChangePIN(_ *cobra.Command, _ []string) error {
	v, err := openVault()
	if err != nil {
		return err
	}
	defer v.Close()

	current, err := readPIN("KIOSK_PIN", "Current PIN: ")
	if err != nil {
		return err
	}
	newPIN, err := readNewPIN()
	if err != nil {
		return err
	}

	if _, err := v.ChangePIN(current, newPIN); err != nil {
		if errors.Is(err, vault.ErrWrongPIN) {
			Error("Current PIN is incorrect")
			return errInvalidPIN
		}
		return err
	}

	Success("PIN changed")
	return nil
}
