// Package main is the fieldshift command-line entry point.
package main

import (
	"os"

	"github.com/fieldshift-labs/fieldshift/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
