package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/internal/engine"
)

// picksCmd represents the picks command
var picksCmd = &cobra.Command{
	Use:   "picks",
	Short: "Preview the current momentum picks",
	Long: `Ranks the universe and prints the picks a rebalance would target.

This command:
- Fetches price history and company profiles
- Screens out small caps and thin volume
- Ranks survivors by blended momentum

Only public market data is read; no brokerage credentials are needed
and no account is touched.

Example:
  go run ./cmd/wstrader picks
  go run ./cmd/wstrader picks --limit 10`,
	RunE: runPicks,
}

var picksLimit int

func init() {
	rootCmd.AddCommand(picksCmd)

	// Flags
	picksCmd.Flags().IntVar(&picksLimit, "limit", 0, "cap the number of picks (default from settings)")
}

func runPicks(cmd *cobra.Command, args []string) error {
	fmt.Println("=== wstrader Picks ===")

	// 1. Initialize dependencies
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// 2. Build engine
	eng := a.buildEngine(nil)

	// 3. Rank the universe
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	picks, err := eng.Picks(ctx, picksLimit)
	if err != nil {
		if errors.Is(err, contracts.ErrNoCandidates) {
			PrintWarning("No candidates survived screening; nothing to show")
			return nil
		}
		return fmt.Errorf("rank universe: %w", err)
	}

	// 4. Render
	fmt.Println()
	engine.RenderPicks(os.Stdout, picks)

	return nil
}
