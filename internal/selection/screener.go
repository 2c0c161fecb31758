package selection

import (
	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

// Screener drops candidates that fail the liquidity and size floors
type Screener struct {
	config ScreenConfig
	logger *logger.Logger
}

// ScreenConfig defines the hard cut conditions
type ScreenConfig struct {
	// MinMarketCap in dollars. ETFs are exempt: most report no cap
	MinMarketCap float64

	// MinAvgVolume in shares per day, applied to every candidate
	MinAvgVolume float64
}

// NewScreener creates a new screener
func NewScreener(config ScreenConfig, log *logger.Logger) *Screener {
	return &Screener{
		config: config,
		logger: log,
	}
}

// Screen applies the hard cuts. The input slice is never mutated; the
// result preserves input order.
func (s *Screener) Screen(candidates []contracts.SecurityMetrics) []contracts.SecurityMetrics {
	passed := make([]contracts.SecurityMetrics, 0, len(candidates))
	filtered := make(map[string]int) // filter name -> count

	for i := range candidates {
		reason := s.checkConditions(&candidates[i])
		if reason == "" {
			passed = append(passed, candidates[i])
			continue
		}
		filtered[reason]++
		s.logger.WithFields(map[string]interface{}{
			"symbol": candidates[i].Symbol,
			"filter": reason,
		}).Debug("Candidate filtered")
	}

	s.logger.WithFields(map[string]interface{}{
		"total_input":  len(candidates),
		"passed":       len(passed),
		"filtered_out": len(candidates) - len(passed),
		"filters":      filtered,
	}).Info("Screening completed")

	return passed
}

// checkConditions returns empty string if passed, otherwise the filter name.
// A zero market cap means the data was unavailable and is never held
// against the candidate.
func (s *Screener) checkConditions(m *contracts.SecurityMetrics) string {
	if !m.IsETF && m.MarketCap > 0 && m.MarketCap < s.config.MinMarketCap {
		return "market_cap"
	}

	if m.AvgVolume < s.config.MinAvgVolume {
		return "avg_volume"
	}

	return ""
}
