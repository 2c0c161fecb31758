package settings

// Settings holds the trading strategy configuration loaded from settings.yaml.
// Secrets never live here; they come from the environment (pkg/config).
type Settings struct {
	Wealthsimple WealthsimpleSettings `yaml:"wealthsimple" json:"wealthsimple"`
	Trading      TradingSettings      `yaml:"trading" json:"trading"`
	Schedule     ScheduleSettings     `yaml:"schedule" json:"schedule"`
	StockPicker  StockPickerSettings  `yaml:"stock_picker" json:"stock_picker"`
	Rebalancer   RebalancerSettings   `yaml:"rebalancer" json:"rebalancer"`
	Safety       SafetySettings       `yaml:"safety" json:"safety"`
}

// WealthsimpleSettings points at the brokerage API
type WealthsimpleSettings struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
}

// TradingSettings selects the mode and target account
type TradingSettings struct {
	Mode                 string `yaml:"mode" json:"mode"` // dry_run | live
	LiveModeConfirmation bool   `yaml:"live_mode_confirmation" json:"live_mode_confirmation"`
	AccountType          string `yaml:"account_type" json:"account_type"`
}

// ScheduleSettings drives the cron daemon
type ScheduleSettings struct {
	Timezone string   `yaml:"timezone" json:"timezone"`
	Days     []string `yaml:"days" json:"days"`           // mon..sun
	RunTimes []string `yaml:"run_times" json:"run_times"` // HH:MM local
}

// StockPickerSettings parameterizes screening and ranking
type StockPickerSettings struct {
	NumPicks             int     `yaml:"num_picks" json:"num_picks"`
	LookbackDays         int     `yaml:"lookback_days" json:"lookback_days"`
	MinMarketCapMillions float64 `yaml:"min_market_cap_millions" json:"min_market_cap_millions"`
	MinAvgVolume         float64 `yaml:"min_avg_volume" json:"min_avg_volume"`
	MaxPerSector         int     `yaml:"max_per_sector" json:"max_per_sector"`
	PreferETFs           *bool   `yaml:"prefer_etfs" json:"prefer_etfs"`           // default true
	SectorDiversity      *bool   `yaml:"sector_diversity" json:"sector_diversity"` // default true
}

// ETFsPreferred reports whether ETFs receive the ranking bonus
func (s StockPickerSettings) ETFsPreferred() bool {
	return s.PreferETFs == nil || *s.PreferETFs
}

// DiversityEnabled reports whether the sector cap applies
func (s StockPickerSettings) DiversityEnabled() bool {
	return s.SectorDiversity == nil || *s.SectorDiversity
}

// MinMarketCap returns the floor in dollars
func (s StockPickerSettings) MinMarketCap() float64 {
	return s.MinMarketCapMillions * 1e6
}

// RebalancerSettings parameterizes the allocation planner
type RebalancerSettings struct {
	DriftThresholdPct float64 `yaml:"drift_threshold_pct" json:"drift_threshold_pct"`
	MinTradeValueCAD  float64 `yaml:"min_trade_value_cad" json:"min_trade_value_cad"`
}

// SafetySettings caps what the executor may do
type SafetySettings struct {
	MaxSingleTradeCAD      float64 `yaml:"max_single_trade_cad" json:"max_single_trade_cad"`
	MaxDailyTrades         int     `yaml:"max_daily_trades" json:"max_daily_trades"`
	RateLimitPerHour       int     `yaml:"rate_limit_per_hour" json:"rate_limit_per_hour"`
	RateLimitWindowSeconds int     `yaml:"rate_limit_window_seconds" json:"rate_limit_window_seconds"`
}

// IsLiveMode requires both the mode and the explicit confirmation flag.
// The CLI --live flag is the third gate, checked at the command layer.
func (s *Settings) IsLiveMode() bool {
	return s.Trading.Mode == "live" && s.Trading.LiveModeConfirmation
}

// Trading modes
const (
	ModeDryRun = "dry_run"
	ModeLive   = "live"
)

func applyDefaults(s *Settings) {
	if s.Wealthsimple.BaseURL == "" {
		s.Wealthsimple.BaseURL = "https://trade-service.wealthsimple.com"
	}
	if s.Trading.Mode == "" {
		s.Trading.Mode = ModeDryRun
	}
	if s.Trading.AccountType == "" {
		s.Trading.AccountType = "ca_tfsa"
	}
	if s.Schedule.Timezone == "" {
		s.Schedule.Timezone = "America/Toronto"
	}
	if len(s.Schedule.Days) == 0 {
		s.Schedule.Days = []string{"mon", "tue", "wed", "thu", "fri"}
	}
	if len(s.Schedule.RunTimes) == 0 {
		s.Schedule.RunTimes = []string{"09:35", "11:30", "13:30", "15:30"}
	}
	if s.StockPicker.NumPicks == 0 {
		s.StockPicker.NumPicks = 7
	}
	if s.StockPicker.LookbackDays == 0 {
		s.StockPicker.LookbackDays = 90
	}
	if s.StockPicker.MinMarketCapMillions == 0 {
		s.StockPicker.MinMarketCapMillions = 500
	}
	if s.StockPicker.MinAvgVolume == 0 {
		s.StockPicker.MinAvgVolume = 100_000
	}
	if s.StockPicker.MaxPerSector == 0 {
		s.StockPicker.MaxPerSector = 2
	}
	if s.Rebalancer.DriftThresholdPct == 0 {
		s.Rebalancer.DriftThresholdPct = 5.0
	}
	if s.Rebalancer.MinTradeValueCAD == 0 {
		s.Rebalancer.MinTradeValueCAD = 1.0
	}
	if s.Safety.MaxSingleTradeCAD == 0 {
		s.Safety.MaxSingleTradeCAD = 5000.0
	}
	if s.Safety.MaxDailyTrades == 0 {
		s.Safety.MaxDailyTrades = 20
	}
	if s.Safety.RateLimitPerHour == 0 {
		s.Safety.RateLimitPerHour = 6
	}
	if s.Safety.RateLimitWindowSeconds == 0 {
		s.Safety.RateLimitWindowSeconds = 3600
	}
}
