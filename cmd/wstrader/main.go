package main

import (
	"os"

	"github.com/guberm/wealthsimple-trading-bot/cmd/wstrader/commands"
)

// main is the entry point for the wstrader CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
