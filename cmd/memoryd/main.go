// Package main provides the entry point for the memoryd CLI.
package main

import (
	"os"

	"github.com/divyekant/memoryd/cmd/memoryd/cmd"
	"github.com/divyekant/memoryd/internal/httpapi"
	"github.com/divyekant/memoryd/pkg/version"
)

func main() {
	httpapi.Version = version.Version

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
