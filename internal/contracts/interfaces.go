package contracts

import (
	"context"

	"github.com/shopspring/decimal"
)

// HistorySource supplies daily candles for the metric calculator
type HistorySource interface {
	DailyCandles(ctx context.Context, symbol string, lookbackDays int) ([]Candle, error)
}

// ProfileSource supplies best-effort fundamentals (market cap, sector)
type ProfileSource interface {
	Profile(ctx context.Context, symbol string) (Profile, error)
}

// AccountSource supplies account state from the brokerage
type AccountSource interface {
	AccountByType(ctx context.Context, accountType AccountType) (*Account, error)
	Positions(ctx context.Context, accountID string) ([]Position, error)
	BuyingPower(ctx context.Context, accountID string) (Money, error)
}

// QuoteSource resolves symbols to security IDs and current prices.
// Quote returns zero without error when the symbol has no usable quote;
// the bulk variants aggregate with skip-and-warn semantics and never
// fail the whole batch.
type QuoteSource interface {
	ResolveSecurityID(ctx context.Context, symbol string) (string, error)
	Quote(ctx context.Context, symbol string) (decimal.Decimal, error)
	BulkResolve(ctx context.Context, symbols []string) map[string]string
	BulkQuotes(ctx context.Context, symbols []string) map[string]decimal.Decimal
}

// OrderPlacer submits one order to a broker, real or simulated
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, accountID string, order OrderInstruction) (*OrderOutcome, error)
}
