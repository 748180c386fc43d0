// Package main is the entry point for the localsearchd indexing daemon.
package main

import (
	"fmt"
	"os"

	"github.com/localsearch/miner/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
