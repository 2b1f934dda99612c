// Package main provides the entry point for the ralph CLI.
package main

import (
	"fmt"
	"os"

	"github.com/ralphctl/ralph/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ralph:", err)
		os.Exit(1)
	}
}
