package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/kiosk/internal/kiosk"
)

var publicConfigCmd = &cobra.Command{
	Use:   "public-config",
	Short: "Print the public dashboard configuration",
	Long: `Print the configuration the dashboard reads without a PIN. Before setup
the defaults are printed.`,
	RunE: runPublicConfig,
}

func init() {
	rootCmd.AddCommand(publicConfigCmd)
}

func runPublicConfig(cmd *cobra.Command, _ []string) error {
	v, err := openVault()
	if err != nil {
		return err
	}
	defer v.Close()

	pub, err := v.LoadPublicConfig()
	if err != nil {
		return err
	}
	if pub == nil {
		pub = kiosk.DefaultPublic()
	}

	format := outputFormat
	if format == "text" {
		format = "yaml"
	}
	return printStructured(cmd.OutOrStdout(), format, pub)
}
