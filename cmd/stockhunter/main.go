package main

import (
	"os"

	"github.com/wonny/stockhunter/cmd/stockhunter/commands"
)

// main is the entry point for the Stock Hunter CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/stockhunter [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
