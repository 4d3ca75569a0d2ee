// Package main provides the entry point for the qdialect CLI.
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/search-dialect/cmd/qdialect/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
