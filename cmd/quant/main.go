package main

import (
	"os"

	"github.com/wonny/newsquant/cmd/quant/commands"
)

// main is the entry point for the newsquant CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/quant [command]
// Execute recovers and logs panics, so every failure exits non-zero here.
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
