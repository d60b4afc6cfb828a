// Package main is the entry point for kioskctl, the local admin tool for a
// kiosk data directory.
package main

import (
	"os"

	"github.com/abdul-hamid-achik/kiosk/cmd/kioskctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
