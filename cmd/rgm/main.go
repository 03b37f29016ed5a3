package main

import (
	"os"

	"github.com/wonny/rgm/cmd/rgm/commands"
)

// main is the entry point for the RGM CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/rgm [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
