package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/internal/execution"
	"github.com/guberm/wealthsimple-trading-bot/internal/portfolio"
	"github.com/guberm/wealthsimple-trading-bot/internal/selection"
	"github.com/guberm/wealthsimple-trading-bot/internal/settings"
	"github.com/guberm/wealthsimple-trading-bot/internal/signals"
	"github.com/guberm/wealthsimple-trading-bot/pkg/config"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

func testLogger() *logger.Logger {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "error",
		LogFormat: "json",
	}
	return logger.New(cfg)
}

// --- stubs ---

type stubAuth struct {
	calls int
	err   error
}

func (s *stubAuth) Login(context.Context) error {
	s.calls++
	return s.err
}

type stubAccounts struct {
	account   *contracts.Account
	positions []contracts.Position
}

func (s *stubAccounts) AccountByType(_ context.Context, accountType contracts.AccountType) (*contracts.Account, error) {
	if s.account == nil || s.account.Type != accountType {
		return nil, fmt.Errorf("%w: %s", contracts.ErrAccountNotFound, accountType)
	}
	return s.account, nil
}

func (s *stubAccounts) Positions(context.Context, string) ([]contracts.Position, error) {
	return s.positions, nil
}

func (s *stubAccounts) BuyingPower(context.Context, string) (contracts.Money, error) {
	return s.account.BuyingPower, nil
}

type stubHistory struct {
	series map[string][]contracts.Candle
}

func (s *stubHistory) DailyCandles(_ context.Context, symbol string, _ int) ([]contracts.Candle, error) {
	candles, ok := s.series[symbol]
	if !ok || len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s", contracts.ErrNoHistory, symbol)
	}
	return candles, nil
}

type stubProfiles struct {
	profiles map[string]contracts.Profile
}

func (s *stubProfiles) Profile(_ context.Context, symbol string) (contracts.Profile, error) {
	if p, ok := s.profiles[symbol]; ok {
		return p, nil
	}
	return contracts.Profile{Symbol: symbol}, nil
}

type stubQuotes struct {
	ids    map[string]string
	prices map[string]decimal.Decimal
}

func (s *stubQuotes) ResolveSecurityID(_ context.Context, symbol string) (string, error) {
	id, ok := s.ids[symbol]
	if !ok {
		return "", fmt.Errorf("%w: %s", contracts.ErrSecurityNotFound, symbol)
	}
	return id, nil
}

func (s *stubQuotes) Quote(_ context.Context, symbol string) (decimal.Decimal, error) {
	return s.prices[symbol], nil
}

func (s *stubQuotes) BulkResolve(_ context.Context, symbols []string) map[string]string {
	out := make(map[string]string, len(symbols))
	for _, sym := range symbols {
		if id, ok := s.ids[sym]; ok {
			out[sym] = id
		}
	}
	return out
}

func (s *stubQuotes) BulkQuotes(_ context.Context, symbols []string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(symbols))
	for _, sym := range symbols {
		if p, ok := s.prices[sym]; ok && p.IsPositive() {
			out[sym] = p
		}
	}
	return out
}

type stubPlacer struct {
	orders []contracts.OrderInstruction
}

func (s *stubPlacer) PlaceOrder(_ context.Context, _ string, order contracts.OrderInstruction) (*contracts.OrderOutcome, error) {
	s.orders = append(s.orders, order)
	return &contracts.OrderOutcome{
		OrderID:    fmt.Sprintf("ord-%d", len(s.orders)),
		SecurityID: order.SecurityID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		LimitPrice: order.LimitPrice,
		Status:     contracts.OrderStatusSubmitted,
		CreatedAt:  time.Now(),
	}, nil
}

type stubJournal struct {
	saved []*contracts.RunReport
	err   error
}

func (s *stubJournal) SaveRun(_ context.Context, report *contracts.RunReport) error {
	s.saved = append(s.saved, report)
	return s.err
}

type stubNotifier struct {
	reports []*contracts.RunReport
}

func (s *stubNotifier) RunFinished(_ context.Context, report *contracts.RunReport) {
	s.reports = append(s.reports, report)
}

type stubEvents struct {
	started  []string
	stages   []contracts.StageResult
	finished []*contracts.RunReport
}

func (s *stubEvents) RunStarted(runID string, _ contracts.RunMode) {
	s.started = append(s.started, runID)
}

func (s *stubEvents) StageRecorded(_ string, stage contracts.StageResult) {
	s.stages = append(s.stages, stage)
}

func (s *stubEvents) RunFinished(report *contracts.RunReport) {
	s.finished = append(s.finished, report)
}

// --- fixtures ---

func testSettings() *settings.Settings {
	return &settings.Settings{
		Trading: settings.TradingSettings{
			Mode:        settings.ModeDryRun,
			AccountType: "ca_tfsa",
		},
		StockPicker: settings.StockPickerSettings{
			NumPicks:             3,
			LookbackDays:         90,
			MinMarketCapMillions: 500,
			MinAvgVolume:         100_000,
			MaxPerSector:         2,
		},
		Rebalancer: settings.RebalancerSettings{
			DriftThresholdPct: 5.0,
			MinTradeValueCAD:  1.0,
		},
		Safety: settings.SafetySettings{
			MaxSingleTradeCAD: 5000,
			MaxDailyTrades:    20,
		},
	}
}

func testUniverse() *settings.Universe {
	return &settings.Universe{
		ETFs: []settings.UniverseEntry{
			{Symbol: "VFV.TO", Name: "Vanguard S&P 500 Index ETF"},
			{Symbol: "XEQT.TO", Name: "iShares Core Equity ETF"},
		},
		Stocks: []settings.UniverseEntry{
			{Symbol: "ENB.TO", Name: "Enbridge"},
			{Symbol: "RY.TO", Name: "Royal Bank of Canada"},
		},
	}
}

func risingCandles(n int, start, step float64, volume int64) []contracts.Candle {
	day := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	out := make([]contracts.Candle, n)
	for i := 0; i < n; i++ {
		price := start + float64(i)*step
		out[i] = contracts.Candle{
			Date:   day.AddDate(0, 0, i),
			Open:   price,
			High:   price + 0.5,
			Low:    price - 0.5,
			Close:  price,
			Volume: volume,
		}
	}
	return out
}

type testHarness struct {
	auth     *stubAuth
	accounts *stubAccounts
	history  *stubHistory
	profiles *stubProfiles
	quotes   *stubQuotes
	placer   *stubPlacer
	journal  *stubJournal
	notifier *stubNotifier
	engine   *Engine
}

func makeHarness(cfg *settings.Settings, universe *settings.Universe, cash float64, positions []contracts.Position) *testHarness {
	log := testLogger()

	h := &testHarness{
		auth: &stubAuth{},
		accounts: &stubAccounts{
			account: &contracts.Account{
				ID:          "tfsa-1",
				Type:        contracts.AccountTypeTFSA,
				Status:      "open",
				BuyingPower: contracts.Money{Amount: decimal.NewFromFloat(cash), Currency: "CAD"},
			},
			positions: positions,
		},
		history: &stubHistory{series: map[string][]contracts.Candle{
			"VFV.TO":  risingCandles(60, 100, 0.3, 900_000),
			"XEQT.TO": risingCandles(60, 30, 0.05, 700_000),
			"ENB.TO":  risingCandles(60, 45, 0.1, 600_000),
			"RY.TO":   risingCandles(60, 120, 0.2, 500_000),
		}},
		profiles: &stubProfiles{profiles: map[string]contracts.Profile{
			"ENB.TO": {Symbol: "ENB.TO", MarketCap: 110e9, Sector: "Energy"},
			"RY.TO":  {Symbol: "RY.TO", MarketCap: 240e9, Sector: "Financial Services"},
		}},
		quotes: &stubQuotes{
			ids: map[string]string{
				"VFV.TO":  "sec-vfv",
				"XEQT.TO": "sec-xeqt",
				"ENB.TO":  "sec-enb",
				"RY.TO":   "sec-ry",
			},
			prices: map[string]decimal.Decimal{
				"VFV.TO":  decimal.NewFromFloat(117.70),
				"XEQT.TO": decimal.NewFromFloat(32.95),
				"ENB.TO":  decimal.NewFromFloat(50.90),
				"RY.TO":   decimal.NewFromFloat(131.80),
			},
		},
		placer:   &stubPlacer{},
		journal:  &stubJournal{},
		notifier: &stubNotifier{},
	}

	gate := execution.NewRateGate(100, time.Minute, log)
	executor := execution.NewExecutor(h.placer, gate, execution.ExecConfig{
		MaxTradeValue:  decimal.NewFromFloat(cfg.Safety.MaxSingleTradeCAD),
		MaxDailyTrades: cfg.Safety.MaxDailyTrades,
		Cooldown:       time.Millisecond,
	}, log)

	h.engine = New(
		h.auth,
		h.accounts,
		h.history,
		h.profiles,
		h.quotes,
		signals.NewCalculator(log),
		selection.NewScreener(selection.ScreenConfig{
			MinMarketCap: cfg.StockPicker.MinMarketCap(),
			MinAvgVolume: cfg.StockPicker.MinAvgVolume,
		}, log),
		selection.NewRanker(selection.RankConfig{
			NumPicks:        cfg.StockPicker.NumPicks,
			PreferETFs:      cfg.StockPicker.ETFsPreferred(),
			SectorDiversity: cfg.StockPicker.DiversityEnabled(),
			MaxPerSector:    cfg.StockPicker.MaxPerSector,
		}, log),
		portfolio.NewPlanner(portfolio.PlanConfig{
			DriftThresholdPct: decimal.NewFromFloat(cfg.Rebalancer.DriftThresholdPct),
			MinTradeValue:     decimal.NewFromFloat(cfg.Rebalancer.MinTradeValueCAD),
			MaxTradeValue:     decimal.NewFromFloat(cfg.Safety.MaxSingleTradeCAD),
		}, log),
		execution.NewSynthesizer(log),
		executor,
		h.journal,
		h.notifier,
		nil,
		cfg,
		universe,
		log,
	)
	return h
}

func newHarness(cash float64, positions []contracts.Position) *testHarness {
	return makeHarness(testSettings(), testUniverse(), cash, positions)
}

// --- tests ---

func TestRun_DryRunBuysIntoEmptyAccount(t *testing.T) {
	h := newHarness(10_000, nil)

	report, err := h.engine.Run(context.Background(), RunConfig{RunID: "run_fixed"})
	require.NoError(t, err)

	assert.Equal(t, "run_fixed", report.RunID)
	assert.Equal(t, contracts.RunModeDryRun, report.Mode)
	assert.Equal(t, contracts.RunCompleted, report.Outcome)
	assert.Equal(t, "tfsa-1", report.AccountID)
	assert.Equal(t, 1, h.auth.calls)

	require.Len(t, report.Picks, 3)
	require.NotNil(t, report.Summary)
	assert.Empty(t, report.Sells)
	assert.NotEmpty(t, report.Buys)

	require.NotEmpty(t, report.Outcomes)
	for _, o := range report.Outcomes {
		assert.Equal(t, contracts.OrderStatusSimulated, o.Status)
	}
	assert.Empty(t, h.placer.orders, "dry run must not reach the live placer")

	require.NotNil(t, report.Execution)
	assert.Equal(t, len(report.Outcomes), report.Execution.TotalOrders)
	assert.Equal(t, report.Execution.TotalOrders, report.Execution.Successful)
	assert.Zero(t, report.Execution.DailyTradesUsed)

	require.Len(t, report.Stages, len(contracts.AllStages()))
	for i, stage := range contracts.AllStages() {
		assert.Equal(t, stage, report.Stages[i].Stage)
		assert.True(t, report.Stages[i].Success, "stage %s", stage)
	}

	require.Len(t, h.journal.saved, 1)
	require.Len(t, h.notifier.reports, 1)
	assert.Same(t, report, h.journal.saved[0])
}

func TestRun_AuthFailureFailsRun(t *testing.T) {
	h := newHarness(10_000, nil)
	h.auth.err = errors.New("bad credentials")

	report, err := h.engine.Run(context.Background(), RunConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH failed")

	assert.Equal(t, contracts.RunFailed, report.Outcome)
	assert.NotEmpty(t, report.Error)
	require.Len(t, report.Stages, 1)
	assert.False(t, report.Stages[0].Success)

	require.Len(t, h.journal.saved, 1, "failed runs are journaled too")
	require.Len(t, h.notifier.reports, 1)
}

func TestRun_MissingAccountFailsRun(t *testing.T) {
	h := newHarness(10_000, nil)
	h.accounts.account.Type = contracts.AccountTypeRRSP

	report, err := h.engine.Run(context.Background(), RunConfig{})
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrAccountNotFound)
	assert.Equal(t, contracts.RunFailed, report.Outcome)
}

func TestRun_NoHistoryEndsNoCandidates(t *testing.T) {
	h := newHarness(10_000, nil)
	h.history.series = map[string][]contracts.Candle{}

	report, err := h.engine.Run(context.Background(), RunConfig{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(report.RunID, "run_"))
	assert.Equal(t, contracts.RunNoCandidates, report.Outcome)
	assert.True(t, report.Succeeded())
	assert.Empty(t, report.Picks)

	require.Len(t, report.Stages, 4)
	assert.Equal(t, contracts.StageSelection, report.Stages[3].Stage)
	assert.True(t, report.Stages[3].Success)
}

func TestRun_ZeroValueAccountEndsEmptyPortfolio(t *testing.T) {
	h := newHarness(0, nil)

	report, err := h.engine.Run(context.Background(), RunConfig{})
	require.NoError(t, err)

	assert.Equal(t, contracts.RunEmptyPortfolio, report.Outcome)
	require.NotNil(t, report.Summary)
	assert.Empty(t, report.Sells)
	assert.Empty(t, report.Buys)
	assert.Equal(t, contracts.StagePlan, report.Stages[len(report.Stages)-1].Stage)
}

func TestRun_BalancedPortfolioEndsNoTrades(t *testing.T) {
	cfg := testSettings()
	cfg.StockPicker.NumPicks = 1
	universe := &settings.Universe{
		ETFs: []settings.UniverseEntry{{Symbol: "VFV.TO", Name: "Vanguard S&P 500 Index ETF"}},
	}
	held := []contracts.Position{{
		SecurityID:   "sec-vfv",
		Symbol:       "VFV.TO",
		Quantity:     decimal.NewFromInt(100),
		CurrentPrice: decimal.NewFromFloat(117.70),
		MarketValue:  decimal.NewFromFloat(11770),
		Currency:     "CAD",
	}}
	h := makeHarness(cfg, universe, 0, held)

	report, err := h.engine.Run(context.Background(), RunConfig{})
	require.NoError(t, err)

	assert.Equal(t, contracts.RunNoTrades, report.Outcome)
	require.NotNil(t, report.Summary)
	require.Len(t, report.Summary.Targets, 1)
	assert.Equal(t, contracts.ActionHold, report.Summary.Targets[0].Action)
	assert.Equal(t, contracts.StageOrders, report.Stages[len(report.Stages)-1].Stage)
}

func TestRun_LiveModeUsesExecutor(t *testing.T) {
	h := newHarness(10_000, nil)

	report, err := h.engine.Run(context.Background(), RunConfig{Mode: contracts.RunModeLive})
	require.NoError(t, err)

	assert.Equal(t, contracts.RunModeLive, report.Mode)
	assert.Equal(t, contracts.RunCompleted, report.Outcome)
	require.NotEmpty(t, h.placer.orders)
	for _, o := range report.Outcomes {
		assert.Equal(t, contracts.OrderStatusSubmitted, o.Status)
	}
	require.NotNil(t, report.Execution)
	assert.Equal(t, len(report.Outcomes), report.Execution.DailyTradesUsed)
}

func TestRun_JournalFailureDoesNotFailRun(t *testing.T) {
	h := newHarness(10_000, nil)
	h.journal.err = errors.New("journal unavailable")

	report, err := h.engine.Run(context.Background(), RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, contracts.RunCompleted, report.Outcome)
}

func TestRun_PublishesEvents(t *testing.T) {
	h := newHarness(10_000, nil)
	ev := &stubEvents{}
	h.engine.events = ev

	report, err := h.engine.Run(context.Background(), RunConfig{RunID: "run_ev"})
	require.NoError(t, err)

	assert.Equal(t, []string{"run_ev"}, ev.started)
	require.Len(t, ev.finished, 1)
	assert.Same(t, report, ev.finished[0])

	require.Len(t, ev.stages, len(contracts.AllStages()))
	for i, stage := range contracts.AllStages() {
		assert.Equal(t, stage, ev.stages[i].Stage)
	}
}

func TestPicks_TruncatesAndSkipsBrokerage(t *testing.T) {
	h := newHarness(10_000, nil)

	picks, err := h.engine.Picks(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, picks, 2)
	assert.Zero(t, h.auth.calls, "picks preview must not touch the brokerage")
}

func TestPicks_NoDataReturnsError(t *testing.T) {
	h := newHarness(10_000, nil)
	h.history.series = map[string][]contracts.Candle{}

	_, err := h.engine.Picks(context.Background(), 0)
	assert.ErrorIs(t, err, contracts.ErrNoCandidates)
}

type blockingAuth struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingAuth) Login(context.Context) error {
	close(b.entered)
	<-b.release
	return nil
}

func TestRun_RejectsOverlappingRuns(t *testing.T) {
	h := newHarness(10_000, nil)
	auth := &blockingAuth{entered: make(chan struct{}), release: make(chan struct{})}
	h.engine.auth = auth

	errCh := make(chan error, 1)
	go func() {
		_, err := h.engine.Run(context.Background(), RunConfig{})
		errCh <- err
	}()

	<-auth.entered
	assert.True(t, h.engine.Busy())

	_, err := h.engine.Run(context.Background(), RunConfig{})
	assert.ErrorIs(t, err, contracts.ErrRunInProgress)

	close(auth.release)
	require.NoError(t, <-errCh)
	assert.False(t, h.engine.Busy())
}

type signalNotifier struct {
	reports chan *contracts.RunReport
}

func (s *signalNotifier) RunFinished(_ context.Context, report *contracts.RunReport) {
	s.reports <- report
}

func TestStartRun_RunsInBackground(t *testing.T) {
	h := newHarness(10_000, nil)
	sn := &signalNotifier{reports: make(chan *contracts.RunReport, 1)}
	h.engine.notifier = sn

	runID, err := h.engine.StartRun(contracts.RunModeDryRun)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(runID, "run_"))

	select {
	case report := <-sn.reports:
		assert.Equal(t, runID, report.RunID)
		assert.Equal(t, contracts.RunCompleted, report.Outcome)
		assert.Equal(t, contracts.RunModeDryRun, report.Mode)
	case <-time.After(5 * time.Second):
		t.Fatal("background run did not finish")
	}

	require.Eventually(t, func() bool { return !h.engine.Busy() },
		time.Second, 5*time.Millisecond)
}

func TestGenerateRunID(t *testing.T) {
	id := GenerateRunID()
	assert.True(t, strings.HasPrefix(id, "run_"))
	assert.Len(t, id, len("run_20060102_150405_")+8)
	assert.NotEqual(t, id, GenerateRunID())
}
