package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

var errInvalidPIN = errors.New("invalid PIN")

var verifyPINCmd = &cobra.Command{
	Use:   "verify-pin",
	Short: "Check the admin PIN",
	Long: `Check the admin PIN and that the stored configuration decrypts with it.

The PIN can also be provided via the KIOSK_PIN environment variable.`,
	RunE: runVerifyPIN,
}

func init() {
	rootCmd.AddCommand(verifyPINCmd)
}

func runVerifyPIN(_ *cobra.Command, _ []string) error {
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
	if _, err := v.LoadConfig(pin); err != nil {
		Warning("PIN is correct but the configuration does not decrypt")
		return err
	}

	Success("PIN is correct")
	return nil
}
