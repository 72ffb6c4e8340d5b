// Package main is the entry point for the ctesplit CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/ctesplit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
