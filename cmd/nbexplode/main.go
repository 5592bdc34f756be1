// Package main provides the nbexplode command.
package main

import (
	"os"

	"github.com/leapstack-labs/nbexplode/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
