// Package cmd provides the CLI commands for kioskctl.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	dataDir      string
	driver       string
	outputFormat string
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "kioskctl",
	Short: "kioskctl - local administration of a kiosk dashboard",
	Long: `kioskctl works directly on the kiosk data directory. It reads the same
configuration as the server (config file and KIOSK_* environment variables).

With the bolt driver the database is locked by a running server, so stop
the server first. With the file driver kioskctl can run alongside it, but
existing admin sessions keep their cached config until they log in again.

Examples:
  kioskctl status
  kioskctl setup-code
  kioskctl public-config -o yaml
  kioskctl verify-pin
  kioskctl change-pin
  kioskctl factory-reset`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "server config file (default: KIOSK_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides storage.data_dir)")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "storage driver: file or bolt (overrides storage.driver)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json, yaml")
}
