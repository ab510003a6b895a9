package main

import (
	"os"

	"github.com/atmx/reputation-engine/cmd/ledgerctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
