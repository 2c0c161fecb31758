package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/internal/execution"
	"github.com/guberm/wealthsimple-trading-bot/internal/observe"
	"github.com/guberm/wealthsimple-trading-bot/internal/portfolio"
	"github.com/guberm/wealthsimple-trading-bot/internal/selection"
	"github.com/guberm/wealthsimple-trading-bot/internal/settings"
	"github.com/guberm/wealthsimple-trading-bot/internal/signals"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

// metricWorkers bounds concurrent market data fetches during METRICS
const metricWorkers = 4

// Authenticator pre-flights the broker session before any account call
type Authenticator interface {
	Login(ctx context.Context) error
}

// Journal persists finished run reports
type Journal interface {
	SaveRun(ctx context.Context, report *contracts.RunReport) error
}

// Notifier announces finished runs
type Notifier interface {
	RunFinished(ctx context.Context, report *contracts.RunReport)
}

// Events receives run lifecycle notifications for live subscribers
type Events interface {
	RunStarted(runID string, mode contracts.RunMode)
	StageRecorded(runID string, stage contracts.StageResult)
	RunFinished(report *contracts.RunReport)
}

// Engine coordinates the complete rebalance pipeline:
// AUTH → ACCOUNT → METRICS → SELECTION → RESOLVE → PLAN → ORDERS → EXECUTE
type Engine struct {
	// Brokerage and market data sources
	auth     Authenticator
	accounts contracts.AccountSource
	history  contracts.HistorySource
	profiles contracts.ProfileSource
	quotes   contracts.QuoteSource

	// Strategy components
	calculator  *signals.Calculator
	screener    *selection.Screener
	ranker      *selection.Ranker
	planner     *portfolio.Planner
	synthesizer *execution.Synthesizer

	// Live execution path; one instance per process so the daily trade
	// counter survives across runs
	executor *execution.Executor

	journal  Journal
	notifier Notifier
	events   Events

	settings *settings.Settings
	universe *settings.Universe
	logger   *logger.Logger

	// Guards against overlapping runs: a scheduled slot firing while the
	// previous rebalance is still placing orders must not double-trade.
	active atomic.Bool
}

// RunConfig holds configuration for one pipeline run
type RunConfig struct {
	RunID string            // generated when empty
	Mode  contracts.RunMode // defaults to dry_run
}

// New creates a new engine. journal, notifier, and events may be nil;
// the run then skips the matching side effect.
func New(
	auth Authenticator,
	accounts contracts.AccountSource,
	history contracts.HistorySource,
	profiles contracts.ProfileSource,
	quotes contracts.QuoteSource,
	calculator *signals.Calculator,
	screener *selection.Screener,
	ranker *selection.Ranker,
	planner *portfolio.Planner,
	synthesizer *execution.Synthesizer,
	executor *execution.Executor,
	journal Journal,
	notifier Notifier,
	events Events,
	cfg *settings.Settings,
	universe *settings.Universe,
	log *logger.Logger,
) *Engine {
	return &Engine{
		auth:        auth,
		accounts:    accounts,
		history:     history,
		profiles:    profiles,
		quotes:      quotes,
		calculator:  calculator,
		screener:    screener,
		ranker:      ranker,
		planner:     planner,
		synthesizer: synthesizer,
		executor:    executor,
		journal:     journal,
		notifier:    notifier,
		events:      events,
		settings:    cfg,
		universe:    universe,
		logger:      log,
	}
}

// Run executes the complete pipeline and always returns a report, even
// on failure. No-candidate, empty-portfolio, and no-trade runs are
// clean terminations with a nil error. At most one run may be active
// per process; a second caller gets ErrRunInProgress and no report.
func (e *Engine) Run(ctx context.Context, config RunConfig) (*contracts.RunReport, error) {
	if !e.active.CompareAndSwap(false, true) {
		return nil, contracts.ErrRunInProgress
	}
	defer e.active.Store(false)

	return e.run(ctx, config)
}

// StartRun launches a run in the background and returns its run ID
// immediately, for callers that poll the journal for the result.
func (e *Engine) StartRun(mode contracts.RunMode) (string, error) {
	if !e.active.CompareAndSwap(false, true) {
		return "", contracts.ErrRunInProgress
	}

	runID := GenerateRunID()
	go func() {
		defer e.active.Store(false)
		// Failures are already logged and journaled by the run itself.
		_, _ = e.run(context.Background(), RunConfig{RunID: runID, Mode: mode})
	}()

	return runID, nil
}

// Busy reports whether a run is currently executing.
func (e *Engine) Busy() bool {
	return e.active.Load()
}

func (e *Engine) run(ctx context.Context, config RunConfig) (*contracts.RunReport, error) {
	startTime := time.Now()

	if config.RunID == "" {
		config.RunID = GenerateRunID()
	}
	if config.Mode == "" {
		config.Mode = contracts.RunModeDryRun
	}

	report := &contracts.RunReport{
		RunID:     config.RunID,
		Mode:      config.Mode,
		Outcome:   contracts.RunFailed,
		StartedAt: startTime,
		Stages:    make([]contracts.StageResult, 0, len(contracts.AllStages())),
	}

	e.logger.WithFields(map[string]interface{}{
		"run_id":  config.RunID,
		"mode":    string(config.Mode),
		"account": e.settings.Trading.AccountType,
	}).Info("Starting rebalance run")

	if e.events != nil {
		e.events.RunStarted(config.RunID, config.Mode)
	}

	runErr := e.pipeline(ctx, config, report)
	report.FinishedAt = time.Now()
	if runErr != nil {
		report.Outcome = contracts.RunFailed
		report.Error = runErr.Error()
	}

	e.finish(ctx, report, runErr)
	return report, runErr
}

// pipeline runs the stages in order, recording each into the report.
// Terminal business outcomes return nil with the outcome already set.
func (e *Engine) pipeline(ctx context.Context, config RunConfig, report *contracts.RunReport) error {
	if err := e.runAuth(ctx, report); err != nil {
		return fmt.Errorf("AUTH failed: %w", err)
	}

	account, positions, cash, err := e.runAccount(ctx, report)
	if err != nil {
		return fmt.Errorf("ACCOUNT failed: %w", err)
	}
	report.AccountID = account.ID

	metrics, err := e.runMetrics(ctx, report)
	if err != nil {
		return fmt.Errorf("METRICS failed: %w", err)
	}

	picks, err := e.runSelection(report, metrics)
	if err != nil {
		if errors.Is(err, contracts.ErrNoCandidates) {
			report.Outcome = contracts.RunNoCandidates
			e.logger.Warn("No candidates survived selection, nothing to trade")
			return nil
		}
		return fmt.Errorf("SELECTION failed: %w", err)
	}
	report.Picks = picks

	securityIDs, prices := e.runResolve(ctx, report, picks)

	summary := e.runPlan(report, picks, positions, cash, prices, securityIDs)
	report.Summary = summary
	if summary.TotalValue.LessThanOrEqual(decimal.Zero) {
		report.Outcome = contracts.RunEmptyPortfolio
		e.logger.Warn("Portfolio has no value, nothing to allocate")
		return nil
	}

	sells, buys := e.runOrders(report, summary)
	report.Sells, report.Buys = sells, buys
	if len(sells)+len(buys) == 0 {
		report.Outcome = contracts.RunNoTrades
		e.logger.Info("All positions within drift threshold, no trades needed")
		return nil
	}

	outcomes, execSummary, err := e.runExecute(ctx, config, report, account.ID, cash, prices, sells, buys)
	if err != nil {
		return fmt.Errorf("EXECUTE failed: %w", err)
	}
	report.Outcomes = outcomes
	report.Execution = execSummary

	report.Outcome = contracts.RunCompleted
	return nil
}

// finish logs the result and hands the report to the journal, the
// metrics registry, and the notifier. All best effort.
func (e *Engine) finish(ctx context.Context, report *contracts.RunReport, runErr error) {
	if runErr != nil {
		e.logger.WithError(runErr).WithFields(map[string]interface{}{
			"run_id": report.RunID,
			"stages": len(report.Stages),
		}).Error("Rebalance run failed")
	} else {
		e.logger.WithFields(map[string]interface{}{
			"run_id":   report.RunID,
			"outcome":  string(report.Outcome),
			"duration": report.Duration().Seconds(),
			"stages":   len(report.Stages),
		}).Info("Rebalance run completed")
	}

	observe.RecordRun(report)

	if e.events != nil {
		e.events.RunFinished(report)
	}
	if e.journal != nil {
		if err := e.journal.SaveRun(ctx, report); err != nil {
			e.logger.WithError(err).Warn("Failed to journal run report")
		}
	}
	if e.notifier != nil {
		e.notifier.RunFinished(ctx, report)
	}
}

// record appends a stage result and mirrors it to live subscribers
func (e *Engine) record(report *contracts.RunReport, stage contracts.Stage, ok bool, in, out int, took time.Duration, err error) {
	report.RecordStage(stage, ok, in, out, took, err)
	if e.events != nil {
		e.events.StageRecorded(report.RunID, report.Stages[len(report.Stages)-1])
	}
}

// runAuth executes AUTH: broker login
func (e *Engine) runAuth(ctx context.Context, report *contracts.RunReport) error {
	e.logger.Info("Running AUTH: broker login")
	start := time.Now()

	err := e.auth.Login(ctx)
	e.record(report, contracts.StageAuth, err == nil, 0, 0, time.Since(start), err)
	if err != nil {
		return err
	}

	e.logger.Info("AUTH completed")
	return nil
}

// runAccount executes ACCOUNT: account lookup and positions snapshot
func (e *Engine) runAccount(ctx context.Context, report *contracts.RunReport) (*contracts.Account, []contracts.Position, decimal.Decimal, error) {
	e.logger.Info("Running ACCOUNT: account and positions snapshot")
	start := time.Now()

	accountType := contracts.AccountType(e.settings.Trading.AccountType)
	account, err := e.accounts.AccountByType(ctx, accountType)
	if err != nil {
		e.record(report, contracts.StageAccount, false, 0, 0, time.Since(start), err)
		return nil, nil, decimal.Zero, err
	}

	positions, err := e.accounts.Positions(ctx, account.ID)
	if err != nil {
		e.record(report, contracts.StageAccount, false, 0, 0, time.Since(start), err)
		return nil, nil, decimal.Zero, err
	}

	cash := account.BuyingPower.Amount
	total := cash.Add(contracts.PositionsValue(positions))
	e.record(report, contracts.StageAccount, true, 0, len(positions), time.Since(start), nil)

	e.logger.WithFields(map[string]interface{}{
		"account_id": account.ID,
		"cash":       cash.StringFixed(2),
		"positions":  len(positions),
		"total":      total.StringFixed(2),
	}).Info("ACCOUNT completed")

	return account, positions, cash, nil
}

// runMetrics executes METRICS: history fetch and factor computation
// over the whole universe
func (e *Engine) runMetrics(ctx context.Context, report *contracts.RunReport) ([]contracts.SecurityMetrics, error) {
	e.logger.Info("Running METRICS: universe history and factors")
	start := time.Now()

	metrics, err := e.collectMetrics(ctx)
	e.record(report, contracts.StageMetrics, err == nil, e.universe.Count(), len(metrics), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(map[string]interface{}{
		"universe": e.universe.Count(),
		"computed": len(metrics),
		"skipped":  e.universe.Count() - len(metrics),
	}).Info("METRICS completed")

	return metrics, nil
}

// collectMetrics fans the universe out over a bounded errgroup and
// reassembles results in universe order. Symbols that fail history or
// factor computation are skipped, not fatal; only cancellation aborts.
func (e *Engine) collectMetrics(ctx context.Context) ([]contracts.SecurityMetrics, error) {
	symbols := e.universe.Symbols()
	slots := make([]*contracts.SecurityMetrics, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(metricWorkers)
	for i := range symbols {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if m, ok := e.symbolMetrics(gctx, symbols[i]); ok {
				slots[i] = &m
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]contracts.SecurityMetrics, 0, len(symbols))
	for _, m := range slots {
		if m != nil {
			out = append(out, *m)
		}
	}
	return out, nil
}

// symbolMetrics computes one symbol's factor snapshot. Missing history
// or a failed computation skips the symbol; a missing profile does not.
func (e *Engine) symbolMetrics(ctx context.Context, symbol string) (contracts.SecurityMetrics, bool) {
	candles, err := e.history.DailyCandles(ctx, symbol, e.settings.StockPicker.LookbackDays)
	if err != nil {
		e.logger.WithError(err).WithField("symbol", symbol).Warn("Skipping symbol, no usable history")
		return contracts.SecurityMetrics{}, false
	}

	profile, err := e.profiles.Profile(ctx, symbol)
	if err != nil {
		e.logger.WithError(err).WithField("symbol", symbol).Debug("Profile lookup failed, continuing without fundamentals")
		profile = contracts.Profile{Symbol: symbol}
	}

	m, err := e.calculator.Compute(symbol, candles, profile, e.universe.IsETF(symbol))
	if err != nil {
		e.logger.WithError(err).WithField("symbol", symbol).Warn("Skipping symbol, factor computation failed")
		return contracts.SecurityMetrics{}, false
	}

	m.Name = e.universe.DisplayName(symbol)
	return m, true
}

// runSelection executes SELECTION: screen and rank. An empty field of
// candidates is recorded as a clean stage; the caller maps the error
// to the no-candidates outcome.
func (e *Engine) runSelection(report *contracts.RunReport, metrics []contracts.SecurityMetrics) ([]contracts.SecurityMetrics, error) {
	e.logger.Info("Running SELECTION: screen and rank")
	start := time.Now()

	screened := e.screener.Screen(metrics)
	picks, err := e.ranker.Rank(screened)
	if err != nil {
		clean := errors.Is(err, contracts.ErrNoCandidates)
		e.record(report, contracts.StageSelection, clean, len(metrics), 0, time.Since(start), err)
		return nil, err
	}

	e.record(report, contracts.StageSelection, true, len(metrics), len(picks), time.Since(start), nil)
	e.logger.WithFields(map[string]interface{}{
		"candidates": len(metrics),
		"screened":   len(screened),
		"picks":      len(picks),
	}).Info("SELECTION completed")

	return picks, nil
}

// runResolve executes RESOLVE: broker security IDs and quotes for the
// picks. Both lookups skip failures symbol by symbol, so unresolved
// picks surface later as zero-priced targets, never as a stage error.
func (e *Engine) runResolve(ctx context.Context, report *contracts.RunReport, picks []contracts.SecurityMetrics) (map[string]string, map[string]decimal.Decimal) {
	e.logger.Info("Running RESOLVE: security IDs and quotes")
	start := time.Now()

	symbols := make([]string, len(picks))
	for i := range picks {
		symbols[i] = picks[i].Symbol
	}

	securityIDs := e.quotes.BulkResolve(ctx, symbols)
	prices := e.quotes.BulkQuotes(ctx, symbols)
	e.record(report, contracts.StageResolve, true, len(symbols), len(prices), time.Since(start), nil)

	e.logger.WithFields(map[string]interface{}{
		"picks":    len(symbols),
		"resolved": len(securityIDs),
		"quoted":   len(prices),
	}).Info("RESOLVE completed")

	return securityIDs, prices
}

// runPlan executes PLAN: equal-weight allocation targets
func (e *Engine) runPlan(report *contracts.RunReport, picks []contracts.SecurityMetrics, positions []contracts.Position, cash decimal.Decimal, prices map[string]decimal.Decimal, securityIDs map[string]string) *contracts.PortfolioSummary {
	e.logger.Info("Running PLAN: allocation targets")
	start := time.Now()

	summary := e.planner.Plan(picks, positions, cash, prices, securityIDs)
	e.record(report, contracts.StagePlan, true, len(picks), len(summary.Targets), time.Since(start), nil)

	counts := summary.CountByAction()
	e.logger.WithFields(map[string]interface{}{
		"targets": len(summary.Targets),
		"buys":    counts[contracts.ActionBuy],
		"sells":   counts[contracts.ActionSell],
		"holds":   counts[contracts.ActionHold],
		"total":   summary.TotalValue.StringFixed(2),
	}).Info("PLAN completed")

	return summary
}

// runOrders executes ORDERS: limit order synthesis
func (e *Engine) runOrders(report *contracts.RunReport, summary *contracts.PortfolioSummary) (sells, buys []contracts.OrderInstruction) {
	e.logger.Info("Running ORDERS: instruction synthesis")
	start := time.Now()

	sells, buys = e.synthesizer.BuildOrders(summary)
	e.record(report, contracts.StageOrders, true, len(summary.Actionable()), len(sells)+len(buys), time.Since(start), nil)

	e.logger.WithFields(map[string]interface{}{
		"sells": len(sells),
		"buys":  len(buys),
	}).Info("ORDERS completed")

	return sells, buys
}

// runExecute executes EXECUTE: live submission through the executor, or
// a paper broker fill pass in dry run
func (e *Engine) runExecute(ctx context.Context, config RunConfig, report *contracts.RunReport, accountID string, cash decimal.Decimal, prices map[string]decimal.Decimal, sells, buys []contracts.OrderInstruction) ([]contracts.OrderOutcome, *contracts.ExecutionSummary, error) {
	planned := len(sells) + len(buys)
	start := time.Now()

	var outcomes []contracts.OrderOutcome
	var err error
	var dailyUsed int

	if config.Mode == contracts.RunModeLive {
		e.logger.Info("Running EXECUTE: live order submission")
		outcomes, err = e.executor.Execute(ctx, accountID, sells, buys)
		dailyUsed = e.executor.DailyTradesUsed()
	} else {
		e.logger.Info("Running EXECUTE: dry run simulation")
		outcomes, err = e.simulate(ctx, accountID, cash, prices, sells, buys)
	}

	e.record(report, contracts.StageExecute, err == nil, planned, len(outcomes), time.Since(start), err)
	if err != nil {
		return outcomes, nil, err
	}

	summary := summarizeOutcomes(outcomes, dailyUsed)
	e.logger.WithFields(map[string]interface{}{
		"planned":    planned,
		"executed":   summary.TotalOrders,
		"successful": summary.Successful,
		"failed":     summary.Failed,
	}).Info("EXECUTE completed")

	return outcomes, summary, nil
}

// simulate fills the instructions through a paper broker seeded with
// the account's cash and the run's quotes. Sells settle before buys so
// freed cash can fund them. No rate gate and no daily cap apply;
// nothing real is at stake and the report should show the full plan.
func (e *Engine) simulate(ctx context.Context, accountID string, cash decimal.Decimal, prices map[string]decimal.Decimal, sells, buys []contracts.OrderInstruction) ([]contracts.OrderOutcome, error) {
	broker := execution.NewPaperBroker(cash, prices, e.logger)
	outcomes := make([]contracts.OrderOutcome, 0, len(sells)+len(buys))

	for i := range sells {
		outcome, err := broker.PlaceOrder(ctx, accountID, sells[i])
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, *outcome)
	}
	for i := range buys {
		outcome, err := broker.PlaceOrder(ctx, accountID, buys[i])
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, *outcome)
	}

	e.logger.WithField("cash_after", broker.CashRemaining().StringFixed(2)).Info("Dry run simulation complete")
	return outcomes, nil
}

// summarizeOutcomes aggregates one run's outcomes. dailyUsed carries
// the executor's cross-run counter on live runs and stays zero on
// simulations.
func summarizeOutcomes(outcomes []contracts.OrderOutcome, dailyUsed int) *contracts.ExecutionSummary {
	successful := 0
	for i := range outcomes {
		if outcomes[i].Accepted() {
			successful++
		}
	}
	return &contracts.ExecutionSummary{
		TotalOrders:     len(outcomes),
		Successful:      successful,
		Failed:          len(outcomes) - successful,
		DailyTradesUsed: dailyUsed,
	}
}

// Picks runs only the data and selection stages, for previewing the
// strategy without touching the brokerage. A positive limit truncates
// the configured pick count further.
func (e *Engine) Picks(ctx context.Context, limit int) ([]contracts.SecurityMetrics, error) {
	metrics, err := e.collectMetrics(ctx)
	if err != nil {
		return nil, err
	}

	screened := e.screener.Screen(metrics)
	picks, err := e.ranker.Rank(screened)
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(picks) > limit {
		picks = picks[:limit]
	}
	return picks, nil
}

// GenerateRunID generates a unique run ID. The timestamp keeps IDs
// sortable; the uuid tail keeps two runs in the same second distinct.
func GenerateRunID() string {
	return fmt.Sprintf("run_%s_%s", time.Now().Format("20060102_150405"), uuid.NewString()[:8])
}
