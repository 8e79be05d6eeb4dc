// Package main provides the entry point for the foldersearch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/foldersearch/cmd/foldersearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
