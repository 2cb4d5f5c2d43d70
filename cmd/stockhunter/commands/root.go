package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stockhunter",
	Short: "Stock Hunter - 기술적 조건 기반 주식 스크리너",
	Long: `Stock Hunter CLI

한국투자증권 API 로 일봉을 수집하고
기술적 지표 조건으로 종목을 걸러내는 배치 스크리너.

Usage:
  go run ./cmd/stockhunter [command]

Examples:
  go run ./cmd/stockhunter serve
  go run ./cmd/stockhunter collect init --force
  go run ./cmd/stockhunter collect update
  go run ./cmd/stockhunter screen --condition condition.json
  go run ./cmd/stockhunter status
  go run ./cmd/stockhunter scheduler`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
