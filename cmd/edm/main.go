// Package main provides the entry point for the edm CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/edm/cmd/edm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
