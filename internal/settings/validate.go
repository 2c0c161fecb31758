package settings

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ValidationError aborts startup
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning flags a risky but legal setting
type Warning struct {
	Code    string
	Message string
}

var validDays = map[string]bool{
	"mon": true, "tue": true, "wed": true, "thu": true,
	"fri": true, "sat": true, "sun": true,
}

var validAccountTypes = map[string]bool{
	"ca_tfsa":           true,
	"ca_rrsp":           true,
	"ca_non_registered": true,
}

// Validate checks all required constraints
func Validate(s *Settings) error {
	// === Trading ===
	if s.Trading.Mode != ModeDryRun && s.Trading.Mode != ModeLive {
		return ValidationError{"trading.mode", fmt.Sprintf("must be %s or %s", ModeDryRun, ModeLive)}
	}
	if !validAccountTypes[s.Trading.AccountType] {
		return ValidationError{"trading.account_type", fmt.Sprintf("unknown account type %q", s.Trading.AccountType)}
	}

	// === Schedule ===
	if _, err := time.LoadLocation(s.Schedule.Timezone); err != nil {
		return ValidationError{"schedule.timezone", err.Error()}
	}
	for i, day := range s.Schedule.Days {
		if !validDays[day] {
			return ValidationError{fmt.Sprintf("schedule.days[%d]", i), fmt.Sprintf("unknown day %q", day)}
		}
	}
	for i, rt := range s.Schedule.RunTimes {
		if err := validateHHMM(rt); err != nil {
			return ValidationError{fmt.Sprintf("schedule.run_times[%d]", i), err.Error()}
		}
	}

	// === Stock picker ===
	if s.StockPicker.NumPicks < 5 || s.StockPicker.NumPicks > 10 {
		return ValidationError{"stock_picker.num_picks", fmt.Sprintf("must be between 5 and 10, got %d", s.StockPicker.NumPicks)}
	}
	if s.StockPicker.LookbackDays <= 0 {
		return ValidationError{"stock_picker.lookback_days", "must be > 0"}
	}
	if s.StockPicker.MinMarketCapMillions < 0 {
		return ValidationError{"stock_picker.min_market_cap_millions", "must be >= 0"}
	}
	if s.StockPicker.MinAvgVolume < 0 {
		return ValidationError{"stock_picker.min_avg_volume", "must be >= 0"}
	}
	if s.StockPicker.DiversityEnabled() && s.StockPicker.MaxPerSector < 1 {
		return ValidationError{"stock_picker.max_per_sector", "must be >= 1 when sector_diversity is on"}
	}

	// === Rebalancer ===
	if s.Rebalancer.DriftThresholdPct < 0 {
		return ValidationError{"rebalancer.drift_threshold_pct", "must be >= 0"}
	}
	if s.Rebalancer.MinTradeValueCAD < 0 {
		return ValidationError{"rebalancer.min_trade_value_cad", "must be >= 0"}
	}

	// === Safety ===
	if s.Safety.MaxSingleTradeCAD <= 0 {
		return ValidationError{"safety.max_single_trade_cad", "must be > 0"}
	}
	if s.Safety.MaxDailyTrades < 1 {
		return ValidationError{"safety.max_daily_trades", "must be >= 1"}
	}
	if s.Safety.RateLimitPerHour < 1 {
		return ValidationError{"safety.rate_limit_per_hour", "must be >= 1"}
	}
	if s.Safety.RateLimitWindowSeconds <= 0 {
		return ValidationError{"safety.rate_limit_window_seconds", "must be > 0"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(s *Settings, u *Universe) []Warning {
	var warnings []Warning

	if u != nil && u.Count() == 0 {
		warnings = append(warnings, Warning{
			Code:    "EMPTY_UNIVERSE",
			Message: "universe has no symbols; every run will end with no candidates",
		})
	}

	// The broker enforces 7 trades/hour; no margin means hard 429s
	if s.Safety.RateLimitPerHour >= 7 {
		warnings = append(warnings, Warning{
			Code:    "NO_RATE_MARGIN",
			Message: fmt.Sprintf("rate_limit_per_hour=%d leaves no slack under the broker's 7/hour cap", s.Safety.RateLimitPerHour),
		})
	}

	if s.StockPicker.LookbackDays < 30 {
		warnings = append(warnings, Warning{
			Code:    "SHORT_LOOKBACK",
			Message: "lookback_days < 30 degrades the 30-day return factor",
		})
	}

	if u != nil && s.StockPicker.NumPicks > u.Count() {
		warnings = append(warnings, Warning{
			Code:    "SMALL_UNIVERSE",
			Message: fmt.Sprintf("num_picks=%d exceeds universe size %d", s.StockPicker.NumPicks, u.Count()),
		})
	}

	return warnings
}

func validateHHMM(s string) error {
	re := regexp.MustCompile(`^\d{2}:\d{2}$`)
	if !re.MatchString(s) {
		return errors.New("must be HH:MM format")
	}
	_, err := time.Parse("15:04", s)
	return err
}
