package signals

import (
	"math"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

const (
	// RiskFreeRate approximates the Canadian short-term rate
	RiskFreeRate = 0.04

	tradingDaysPerYear = 252

	// ~22 trading days cover 30 calendar days
	recentWindowDays = 22

	// the lookback window is ~90 calendar days, annualized over 365
	annualizationFactor = 365.0 / 90.0
)

// Calculator computes the factor snapshot for one symbol from its
// daily candle history
type Calculator struct {
	logger *logger.Logger
}

// NewCalculator creates a new metric calculator
func NewCalculator(log *logger.Logger) *Calculator {
	return &Calculator{
		logger: log,
	}
}

// Compute calculates all metrics for a symbol. Candles must be in
// chronological order, oldest first. An empty series is an error; the
// caller skips the symbol.
func (c *Calculator) Compute(symbol string, candles []contracts.Candle, profile contracts.Profile, isETF bool) (contracts.SecurityMetrics, error) {
	if len(candles) == 0 {
		return contracts.SecurityMetrics{}, contracts.ErrNoHistory
	}

	closes := make([]float64, len(candles))
	for i := range candles {
		closes[i] = candles[i].Close
	}

	return90d := c.fullWindowReturn(closes)
	return30d := c.recentWindowReturn(closes)
	volatility := c.annualizedVolatility(closes)
	sharpe := c.sharpeRatio(return90d, volatility)
	avgVolume := c.averageVolume(candles)

	sector := "Unknown"
	if isETF {
		// Funds report no meaningful sector; bucket them together
		sector = "ETF"
	} else if profile.Sector != "" {
		sector = profile.Sector
	}

	metrics := contracts.SecurityMetrics{
		Symbol:      symbol,
		Name:        symbol,
		Sector:      sector,
		MarketCap:   profile.MarketCap,
		AvgVolume:   avgVolume,
		Return90D:   return90d,
		Return30D:   return30d,
		Volatility:  volatility,
		SharpeRatio: sharpe,
		IsETF:       isETF,
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol":     symbol,
		"candles":    len(candles),
		"return_90d": return90d,
		"return_30d": return30d,
		"volatility": volatility,
		"sharpe":     sharpe,
		"avg_volume": avgVolume,
		"sector":     sector,
	}).Debug("Computed security metrics")

	return metrics, nil
}

// fullWindowReturn is the return over the whole lookback
func (c *Calculator) fullWindowReturn(closes []float64) float64 {
	if len(closes) < 2 || closes[0] == 0 {
		return 0.0
	}
	return closes[len(closes)-1]/closes[0] - 1
}

// recentWindowReturn is the return over the last ~30 calendar days,
// falling back to the earliest close when the series is shorter
func (c *Calculator) recentWindowReturn(closes []float64) float64 {
	n := len(closes)
	if n == 0 {
		return 0.0
	}

	idx := n - recentWindowDays
	if idx < 0 {
		idx = 0
	}
	if closes[idx] == 0 {
		return 0.0
	}
	return closes[n-1]/closes[idx] - 1
}

// annualizedVolatility is the sample standard deviation of daily
// percent changes scaled to a year. Series with fewer than two daily
// changes get the sentinel, which ranks them worst on the
// low-volatility factor without dropping them.
func (c *Calculator) annualizedVolatility(closes []float64) float64 {
	changes := dailyChanges(closes)
	if len(changes) < 2 {
		return contracts.VolatilityUnreliable
	}
	return sampleStdev(changes) * math.Sqrt(tradingDaysPerYear)
}

// sharpeRatio annualizes the lookback return and divides the excess
// over the risk-free rate by volatility. The unreliable-volatility
// sentinel yields no ratio; dividing by it would fabricate a near-zero
// sharpe that still outranks genuinely negative ones.
func (c *Calculator) sharpeRatio(return90d, volatility float64) float64 {
	if volatility <= 0 || volatility == contracts.VolatilityUnreliable {
		return 0.0
	}
	annualized := return90d * annualizationFactor
	return (annualized - RiskFreeRate) / volatility
}

// averageVolume is the mean daily volume over the whole series
func (c *Calculator) averageVolume(candles []contracts.Candle) float64 {
	if len(candles) == 0 {
		return 0.0
	}

	var sum int64
	for i := range candles {
		sum += candles[i].Volume
	}
	return float64(sum) / float64(len(candles))
}

// dailyChanges returns day-over-day percent changes, skipping pairs
// with a zero base price
func dailyChanges(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}

	changes := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if prev == 0 {
			continue
		}
		changes = append(changes, (closes[i]-prev)/prev)
	}
	return changes
}

// sampleStdev is the n-1 standard deviation
func sampleStdev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0.0
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}
