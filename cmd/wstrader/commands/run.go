package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/internal/engine"
	"github.com/guberm/wealthsimple-trading-bot/internal/settings"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one rebalance now",
	Long: `Runs the full rebalance pipeline once and prints the report.

This command:
- Logs in to Wealthsimple Trade
- Screens and ranks the universe by momentum
- Plans sells and buys against the configured account
- Executes orders in live mode, simulates them in dry run

Live trading needs three independent switches: trading.mode=live and
live_mode_confirmation=true in settings.yaml, plus the --live flag.
Anything less runs dry.

Example:
  go run ./cmd/wstrader run
  go run ./cmd/wstrader run --num-picks 5
  go run ./cmd/wstrader run --live`,
	RunE: runRebalance,
}

var (
	runLive     bool
	runYes      bool
	runNumPicks int
)

func init() {
	rootCmd.AddCommand(runCmd)

	// Flags
	runCmd.Flags().BoolVar(&runLive, "live", false, "place real orders (requires live settings)")
	runCmd.Flags().BoolVar(&runYes, "yes", false, "skip the interactive live confirmation")
	runCmd.Flags().IntVar(&runNumPicks, "num-picks", 0, "override the configured number of picks")
}

func runRebalance(cmd *cobra.Command, args []string) error {
	fmt.Println("=== wstrader Rebalance ===")

	// 1. Initialize dependencies
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.cfg.HasCredentials() {
		return fmt.Errorf("WS_EMAIL and WS_PASSWORD must be set to run a rebalance")
	}

	// 2. Resolve the trading mode across all three gates
	mode, err := resolveMode(a.settings, runLive, runYes)
	if err != nil {
		return err
	}

	// 3. Apply the pick count override before the engine is built;
	// the ranker is configured at construction time
	if runNumPicks > 0 {
		a.settings.StockPicker.NumPicks = runNumPicks
	}

	// 4. Build engine
	eng := a.buildEngine(nil)

	if mode == contracts.RunModeLive {
		PrintWarning("LIVE MODE: real orders will be placed")
	} else {
		fmt.Println("\nMode: dry_run (orders are simulated)")
	}

	// 5. Run the pipeline; Ctrl+C cancels cleanly between stages
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, runErr := eng.Run(ctx, engine.RunConfig{Mode: mode})

	// 6. Render the report; failed runs still carry one
	if report != nil {
		fmt.Println()
		engine.RenderReport(os.Stdout, report)
	}
	if runErr != nil {
		return fmt.Errorf("rebalance run: %w", runErr)
	}

	return nil
}

// resolveMode applies the three live-trading gates: the settings mode,
// the settings confirmation flag, and the --live CLI flag. Every
// combination short of all three runs dry.
func resolveMode(s *settings.Settings, live, yes bool) (contracts.RunMode, error) {
	if !live {
		if s.IsLiveMode() {
			PrintInfo("Settings request live mode; running dry without --live")
		}
		return contracts.RunModeDryRun, nil
	}

	if !s.IsLiveMode() {
		return "", fmt.Errorf("--live requires trading.mode=live and live_mode_confirmation=true in settings.yaml")
	}

	if !yes {
		if err := confirmLive(); err != nil {
			return "", err
		}
	}

	return contracts.RunModeLive, nil
}

// confirmLive requires the operator to type YES before a live run
func confirmLive() error {
	fmt.Print("Type YES to confirm live trading: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read confirmation: %w", err)
	}
	if strings.TrimSpace(line) != "YES" {
		return fmt.Errorf("live trading not confirmed")
	}

	return nil
}
