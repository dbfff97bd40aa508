// Package main is the entry point for the yieldbook auth service.
package main

import (
	"fmt"
	"os"

	"github.com/aussiebroadwan/yieldbook/internal/auth/app"
)

// Set at build time.
var (
	commit = "unknown"
	date   = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", app.BuildVersion, commit, date)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
