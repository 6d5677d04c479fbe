// Package main provides the leapunits CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/leapunits/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
