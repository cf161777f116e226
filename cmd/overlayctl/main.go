// Package main is the entry point for the overlayctl CLI.
package main

import (
	"os"

	"go.aimuz.me/orb/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
