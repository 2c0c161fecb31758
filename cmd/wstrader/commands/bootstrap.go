package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guberm/wealthsimple-trading-bot/internal/engine"
	"github.com/guberm/wealthsimple-trading-bot/internal/events"
	"github.com/guberm/wealthsimple-trading-bot/internal/execution"
	"github.com/guberm/wealthsimple-trading-bot/internal/external/wealthsimple"
	"github.com/guberm/wealthsimple-trading-bot/internal/external/yahoo"
	"github.com/guberm/wealthsimple-trading-bot/internal/journal"
	"github.com/guberm/wealthsimple-trading-bot/internal/notify"
	"github.com/guberm/wealthsimple-trading-bot/internal/portfolio"
	"github.com/guberm/wealthsimple-trading-bot/internal/selection"
	"github.com/guberm/wealthsimple-trading-bot/internal/settings"
	"github.com/guberm/wealthsimple-trading-bot/internal/signals"
	"github.com/guberm/wealthsimple-trading-bot/pkg/config"
	"github.com/guberm/wealthsimple-trading-bot/pkg/database"
	"github.com/guberm/wealthsimple-trading-bot/pkg/httputil"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
	"github.com/guberm/wealthsimple-trading-bot/pkg/redis"
)

// app holds the shared dependency graph every command assembles the
// same way. Optional infrastructure (database, redis, notifier) stays
// nil when not configured; the engine then skips the matching side
// effects.
type app struct {
	cfg      *config.Config
	settings *settings.Settings
	universe *settings.Universe
	log      *logger.Logger

	wsHTTP    *httputil.Client
	yahooHTTP *httputil.Client
	redis     *redis.Client
	cache     *redis.Cache
	db        *database.DB
	journal   *journal.Journal
	notifier  *notify.Notifier

	auth       *wealthsimple.Authenticator
	accounts   *wealthsimple.AccountService
	marketData *wealthsimple.MarketDataService
	orders     *wealthsimple.OrderService
	history    *yahoo.HistoryService
	profiles   *yahoo.ProfileService
}

// initApp loads configuration, strategy settings and the shared
// clients. It does not log in to the brokerage; commands that need a
// session trigger it through the engine or explicitly.
func initApp() (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// Flag overrides win over environment
	if settingsDir != "" {
		cfg.SettingsDir = settingsDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Load strategy settings and universe
	s, universe, err := settings.Load(cfg.SettingsDir)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"settings_dir": cfg.SettingsDir,
		"universe":     universe.Count(),
		"mode":         s.Trading.Mode,
	}).Info("Settings loaded")

	// 4. Connect Redis (a disabled config yields a no-op client)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	cache := redis.NewCache(redisClient, "wstrader")

	// 5. Create HTTP clients, one per upstream so each rides its own
	// shared request budget. The limiter passes everything through when
	// Redis is off.
	limiter := redis.NewRateLimiter(redisClient, "wstrader")
	wsHTTP := httputil.New(log).
		WithRateLimiter(limiter, redis.WealthsimpleRateLimit)
	yahooHTTP := httputil.New(log).
		WithRateLimiter(limiter, redis.YahooRateLimit)
	webhookHTTP := httputil.New(log)

	// 6. Connect PostgreSQL and migrate the run journal when enabled
	var db *database.DB
	var jrnl *journal.Journal
	if cfg.Database.Enabled {
		db, err = database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		jrnl = journal.New(db.Pool)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := jrnl.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate journal: %w", err)
		}
		log.Info("Connected to database")
	}

	// 7. Create brokerage services
	baseURL := s.Wealthsimple.BaseURL
	auth := wealthsimple.NewAuthenticator(baseURL, wealthsimple.Credentials{
		Email:     cfg.Wealthsimple.Email,
		Password:  cfg.Wealthsimple.Password,
		OTPSecret: cfg.Wealthsimple.OTPSecret,
	}, wsHTTP, log)
	tokens := wealthsimple.NewTokenSource(auth, log)
	wsClient := wealthsimple.NewClient(baseURL, tokens, wsHTTP, log)

	// 8. Create market data services
	yahooClient := yahoo.NewClient(yahooHTTP, log)

	return &app{
		cfg:      cfg,
		settings: s,
		universe: universe,
		log:      log,

		wsHTTP:    wsHTTP,
		yahooHTTP: yahooHTTP,
		redis:     redisClient,
		cache:     cache,
		db:        db,
		journal:   jrnl,
		notifier:  notify.FromConfig(cfg, webhookHTTP, log),

		auth:       auth,
		accounts:   wealthsimple.NewAccountService(wsClient, log),
		marketData: wealthsimple.NewMarketDataService(wsClient, cache, log),
		orders:     wealthsimple.NewOrderService(wsClient, log),
		history:    yahoo.NewHistoryService(yahooClient, cache, log),
		profiles:   yahoo.NewProfileService(yahooClient, cache, log),
	}, nil
}

// buildEngine assembles the pipeline from the loaded settings. hub may
// be nil; the engine then publishes no live events.
func (a *app) buildEngine(hub *events.Hub) *engine.Engine {
	s := a.settings

	// 1. Strategy components
	calculator := signals.NewCalculator(a.log)
	screener := selection.NewScreener(selection.ScreenConfig{
		MinMarketCap: s.StockPicker.MinMarketCap(),
		MinAvgVolume: s.StockPicker.MinAvgVolume,
	}, a.log)
	ranker := selection.NewRanker(selection.RankConfig{
		NumPicks:        s.StockPicker.NumPicks,
		PreferETFs:      s.StockPicker.ETFsPreferred(),
		SectorDiversity: s.StockPicker.DiversityEnabled(),
		MaxPerSector:    s.StockPicker.MaxPerSector,
	}, a.log)
	planner := portfolio.NewPlanner(portfolio.PlanConfig{
		DriftThresholdPct: decimal.NewFromFloat(s.Rebalancer.DriftThresholdPct),
		MinTradeValue:     decimal.NewFromFloat(s.Rebalancer.MinTradeValueCAD),
		MaxTradeValue:     decimal.NewFromFloat(s.Safety.MaxSingleTradeCAD),
	}, a.log)
	synthesizer := execution.NewSynthesizer(a.log)

	// 2. Execution path with the brokerage rate gate
	window := time.Duration(s.Safety.RateLimitWindowSeconds) * time.Second
	gate := execution.NewRateGate(s.Safety.RateLimitPerHour, window, a.log)
	executor := execution.NewExecutor(a.orders, gate, execution.ExecConfig{
		MaxTradeValue:  decimal.NewFromFloat(s.Safety.MaxSingleTradeCAD),
		MaxDailyTrades: s.Safety.MaxDailyTrades,
	}, a.log)

	// 3. Optional side effects. The nil checks matter: assigning a nil
	// *journal.Journal straight into the interface parameter would make
	// the engine see it as non-nil and call into it.
	var engineJournal engine.Journal
	if a.journal != nil {
		engineJournal = a.journal
	}
	var engineNotifier engine.Notifier
	if a.notifier != nil {
		engineNotifier = a.notifier
	}
	var engineEvents engine.Events
	if hub != nil {
		engineEvents = hub
	}

	// 4. Engine
	return engine.New(
		a.auth,
		a.accounts,
		a.history,
		a.profiles,
		a.marketData,
		calculator,
		screener,
		ranker,
		planner,
		synthesizer,
		executor,
		engineJournal,
		engineNotifier,
		engineEvents,
		a.settings,
		a.universe,
		a.log,
	)
}

// Close releases the infrastructure connections.
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
