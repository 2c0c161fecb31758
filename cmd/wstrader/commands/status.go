package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/guberm/wealthsimple-trading-bot/internal/api/handlers"
	"github.com/guberm/wealthsimple-trading-bot/pkg/config"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of a running daemon",
	Long: `Queries a running daemon's status endpoint and prints it.

Shown:
- Mode, version and uptime
- Whether a rebalance is running right now
- Next scheduled runs
- Last journaled run and outcome counts

Example:
  go run ./cmd/wstrader status
  go run ./cmd/wstrader status --url http://localhost:8090`,
	RunE: runStatus,
}

var statusURL string

func init() {
	rootCmd.AddCommand(statusCmd)

	// Flags
	statusCmd.Flags().StringVar(&statusURL, "url", "", "daemon base URL (default http://localhost:$API_PORT)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	base := statusURL
	if base == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		base = "http://localhost:" + cfg.API.Port
	}
	base = strings.TrimRight(base, "/")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(base + "/api/status")
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	var status handlers.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}

	fmt.Printf("=== %s %s ===\n\n", status.Service, status.Version)
	PrintKeyValue("Env", status.Env, 12)
	PrintKeyValue("Mode", status.Mode, 12)
	PrintKeyValue("Uptime", (time.Duration(status.UptimeSeconds) * time.Second).String(), 12)
	PrintKeyValue("Run active", fmt.Sprintf("%t", status.RunActive), 12)
	if len(status.RunningJobs) > 0 {
		PrintKeyValue("Running", strings.Join(status.RunningJobs, ", "), 12)
	}

	if len(status.NextRuns) > 0 {
		fmt.Println("\nNext scheduled runs:")
		for _, t := range status.NextRuns {
			fmt.Printf("  - %s\n", t.Local().Format("Mon 2006-01-02 15:04"))
		}
	}

	if status.LastRun != nil {
		last := status.LastRun
		fmt.Println("\nLast run:")
		PrintKeyValue("ID", last.RunID, 12)
		PrintKeyValue("Outcome", last.Outcome, 12)
		PrintKeyValue("Finished", last.FinishedAt.Local().Format("2006-01-02 15:04:05"), 12)
		PrintKeyValue("Picks", fmt.Sprintf("%d", last.Picks), 12)
		PrintKeyValue("Orders", fmt.Sprintf("%d", last.Orders), 12)
	}

	if len(status.Outcomes) > 0 {
		fmt.Println("\nRun outcomes:")
		for outcome, n := range status.Outcomes {
			fmt.Printf("  %-14s %d\n", outcome, n)
		}
	}

	return nil
}
