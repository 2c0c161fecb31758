package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	settingsDir string
	logLevel    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wstrader",
	Short: "Momentum rotation bot for Wealthsimple Trade",
	Long: `wstrader Unified CLI

Momentum rotation portfolio bot for Wealthsimple Trade.
Screens a Canadian stock universe, ranks it by blended momentum,
and rebalances one brokerage account toward the top picks.

Usage:
  go run ./cmd/wstrader [command]

Examples:
  go run ./cmd/wstrader picks
  go run ./cmd/wstrader run
  go run ./cmd/wstrader serve
  go run ./cmd/wstrader accounts`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&settingsDir, "settings-dir", "", "settings directory (default $SETTINGS_DIR or ./config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug|info|warn|error)")
}
