// Package main provides the protodrive CLI.
package main

import (
	"os"

	"github.com/matchday-labs/protodrive/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
