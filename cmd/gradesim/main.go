// Package main is the gradesim command.
package main

import (
	"os"

	"github.com/gradesim/gradesim/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
