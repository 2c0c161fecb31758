package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/guberm/wealthsimple-trading-bot/internal/api"
	"github.com/guberm/wealthsimple-trading-bot/internal/api/handlers"
	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/internal/events"
	"github.com/guberm/wealthsimple-trading-bot/internal/journal"
	"github.com/guberm/wealthsimple-trading-bot/internal/scheduler"
	"github.com/guberm/wealthsimple-trading-bot/internal/scheduler/jobs"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler daemon with the status API",
	Long: `Starts the bot as a long-running daemon.

This command:
- Schedules rebalance runs at the configured market slots
- Serves the status and metrics API
- Streams run events to websocket subscribers

Endpoints:
  GET  /health            - Health check
  GET  /api/status        - Engine, schedule and last-run state
  GET  /api/runs          - Journaled run history
  GET  /api/runs/{id}     - One full run report
  POST /api/run           - Trigger a dry run
  GET  /api/picks         - Selection preview
  GET  /metrics           - Prometheus metrics
  GET  /ws                - Run event stream

Live trading follows the same three gates as the run command:
live settings plus the --live flag.

Example:
  go run ./cmd/wstrader serve
  go run ./cmd/wstrader serve --port 8090
  go run ./cmd/wstrader serve --live --yes`,
	RunE: runServe,
}

var (
	servePort string
	serveLive bool
	serveYes  bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	// Flags
	serveCmd.Flags().StringVar(&servePort, "port", "", "API port (default $API_PORT or 8090)")
	serveCmd.Flags().BoolVar(&serveLive, "live", false, "scheduled runs place real orders (requires live settings)")
	serveCmd.Flags().BoolVar(&serveYes, "yes", false, "skip the interactive live confirmation")
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println("=== wstrader Daemon ===")

	// 1. Initialize dependencies
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// An explicit --port implies wanting the API up
	if servePort != "" {
		a.cfg.API.Port = servePort
		a.cfg.API.Enabled = true
	}

	// 2. Resolve the trading mode for scheduled runs
	mode, err := resolveMode(a.settings, serveLive, serveYes)
	if err != nil {
		return err
	}

	if !a.cfg.HasCredentials() {
		PrintWarning("WS_EMAIL/WS_PASSWORD not set; scheduled runs will fail at AUTH")
	}
	if mode == contracts.RunModeLive {
		PrintWarning("LIVE MODE: scheduled runs will place real orders")
	}

	// 3. Event hub for websocket subscribers, only with the API up
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()

	var hub *events.Hub
	if a.cfg.API.Enabled {
		hub = events.New(a.log)
		go hub.Run(hubCtx)
	}

	// 4. Build engine
	eng := a.buildEngine(hub)

	// 5. Scheduler with the rebalance and journal prune jobs
	sched, err := scheduler.New(a.settings.Schedule.Timezone, a.log)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	rebalance, err := jobs.NewRebalanceJob(eng, mode, a.settings.Schedule, a.log)
	if err != nil {
		return fmt.Errorf("build rebalance job: %w", err)
	}
	if err := sched.AddJob(rebalance); err != nil {
		return fmt.Errorf("register rebalance job: %w", err)
	}
	if a.journal != nil {
		if err := sched.AddJob(jobs.NewJournalPruneJob(a.journal, 0, a.log)); err != nil {
			return fmt.Errorf("register prune job: %w", err)
		}
	}

	sched.Start()
	defer sched.Stop()

	// 6. API server
	var server *api.Server
	if a.cfg.API.Enabled {
		store := storeOrNil(a.journal)
		status := handlers.NewStatusHandler(eng, store, sched, a.db, string(mode), a.cfg.Env, version, a.log)
		runs := handlers.NewRunsHandler(store, eng, a.log)
		picks := handlers.NewPicksHandler(eng, a.log)

		router := api.NewRouter(status, runs, picks, hub, a.log)
		server = api.New(a.cfg, a.log, router)

		go func() {
			if err := server.Start(); err != nil {
				a.log.WithError(err).Fatal("Failed to start server")
			}
		}()

		fmt.Printf("\n✅ Daemon running on http://localhost:%s\n", a.cfg.API.Port)
	} else {
		fmt.Println("\n✅ Daemon running (API disabled)")
	}

	fmt.Println("\nNext scheduled runs:")
	for _, t := range sched.NextRuns(4) {
		fmt.Printf("  - %s\n", t.Format("Mon 2006-01-02 15:04 MST"))
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	a.log.Info("Shutting down daemon")

	// Graceful shutdown with timeout
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
	}

	a.log.Info("Daemon stopped")
	return nil
}

// storeOrNil converts the concrete journal pointer into the handler
// interface. Assigning a nil *journal.Journal straight into the
// interface would make the handlers see a non-nil store.
func storeOrNil(j *journal.Journal) handlers.RunStore {
	if j == nil {
		return nil
	}
	return j
}
