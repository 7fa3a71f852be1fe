package main

import (
	"os"

	"github.com/CoderDKai/oai-team-automation/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
