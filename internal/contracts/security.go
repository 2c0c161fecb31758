package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle represents one day of OHLCV history, oldest first in a series
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// SecurityMetrics represents the computed factor snapshot for one symbol,
// passed from the metric calculator to the screener and ranker
type SecurityMetrics struct {
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	Sector      string  `json:"sector"`      // "ETF" for funds, "Unknown" when lookup fails
	MarketCap   float64 `json:"market_cap"`  // CAD, 0 when unavailable
	AvgVolume   float64 `json:"avg_volume"`  // mean daily volume over the lookback
	Return90D   float64 `json:"return_90d"`  // fractional, not percent
	Return30D   float64 `json:"return_30d"`
	Volatility  float64 `json:"volatility"`  // annualized; 999.0 when series too short
	SharpeRatio float64 `json:"sharpe_ratio"`
	Score       float64 `json:"score"` // composite, set by the ranker only
	IsETF       bool    `json:"is_etf"`
}

// VolatilityUnreliable is the sentinel assigned when a series has fewer
// than two daily changes. It sorts such symbols to the bottom of the
// low-volatility factor without excluding them.
const VolatilityUnreliable = 999.0

// HasReliableVolatility reports whether the volatility was computed from
// an adequate series rather than assigned the sentinel
func (m *SecurityMetrics) HasReliableVolatility() bool {
	return m.Volatility < VolatilityUnreliable
}

// SecurityType represents the brokerage security classification
type SecurityType string

const (
	SecurityTypeEquity SecurityType = "equity"
	SecurityTypeETF    SecurityType = "exchange_traded_fund"
)

// Security represents a tradeable instrument as the brokerage reports it
type Security struct {
	ID       string       `json:"id"`
	Symbol   string       `json:"symbol"`
	Name     string       `json:"name"`
	Exchange string       `json:"exchange"`
	Currency string       `json:"currency"`
	Type     SecurityType `json:"type"`
	Buyable  bool         `json:"buyable"`
}

// Quote represents the latest brokerage quote for a security
type Quote struct {
	SecurityID string          `json:"security_id"`
	Symbol     string          `json:"symbol"`
	Amount     decimal.Decimal `json:"amount"`
	Bid        decimal.Decimal `json:"bid"`
	Ask        decimal.Decimal `json:"ask"`
	High       decimal.Decimal `json:"high"`
	Low        decimal.Decimal `json:"low"`
	Volume     int64           `json:"volume"`
	Date       string          `json:"date"`
}

// Profile holds the best-effort fundamentals for a symbol
type Profile struct {
	Symbol    string  `json:"symbol"`
	MarketCap float64 `json:"market_cap"` // 0 when unavailable
	Sector    string  `json:"sector"`     // "" when unavailable
}
