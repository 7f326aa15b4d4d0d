// Package main provides the entry point for the knowmcp CLI.
package main

import (
	"os"

	"github.com/knowmcp/knowmcp/cmd/knowmcp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
