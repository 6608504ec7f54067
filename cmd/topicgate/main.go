// Package main is the entry point for the topicgate CLI.
package main

import (
	"os"

	"github.com/topicgate/topicgate/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
