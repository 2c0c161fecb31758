package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

// PaperBroker simulates order placement for dry runs. Fills are priced
// at the live quote when one is known, else at the order's limit price,
// and a simulated cash balance gates the buys the way a real account
// balance would.
type PaperBroker struct {
	logger *logger.Logger
	prices map[string]decimal.Decimal
	cash   decimal.Decimal
	seq    int
}

// NewPaperBroker creates a paper broker seeded with the account's cash
// and the run's quote snapshot
func NewPaperBroker(cash decimal.Decimal, prices map[string]decimal.Decimal, log *logger.Logger) *PaperBroker {
	return &PaperBroker{
		logger: log,
		prices: prices,
		cash:   cash,
	}
}

// PlaceOrder fills sells unconditionally and buys while simulated cash
// lasts. Unaffordable buys come back rejected, never as an error, so
// the executor keeps working through the batch.
func (b *PaperBroker) PlaceOrder(_ context.Context, _ string, order contracts.OrderInstruction) (*contracts.OrderOutcome, error) {
	price := order.LimitPrice
	if quote, ok := b.prices[order.Symbol]; ok && quote.IsPositive() {
		price = quote
	}
	value := price.Mul(decimal.NewFromInt(order.Quantity))

	b.seq++
	outcome := &contracts.OrderOutcome{
		OrderID:    fmt.Sprintf("sim-%04d", b.seq),
		SecurityID: order.SecurityID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		LimitPrice: price,
		Status:     contracts.OrderStatusSimulated,
		CreatedAt:  time.Now(),
	}

	switch order.Side {
	case contracts.OrderSideSell:
		b.cash = b.cash.Add(value)
	case contracts.OrderSideBuy:
		if value.GreaterThan(b.cash) {
			outcome.Status = contracts.OrderStatusRejected
			b.logger.WithFields(map[string]interface{}{
				"symbol": order.Symbol,
				"need":   value.StringFixed(2),
				"cash":   b.cash.StringFixed(2),
			}).Warn("Dry run: buy skipped, insufficient simulated cash")
			return outcome, nil
		}
		b.cash = b.cash.Sub(value)
	}

	b.logger.WithFields(map[string]interface{}{
		"side":     order.Side,
		"symbol":   order.Symbol,
		"quantity": order.Quantity,
		"price":    price.StringFixed(2),
		"value":    value.StringFixed(2),
	}).Info("Dry run: order simulated")

	return outcome, nil
}

// CashRemaining returns the simulated cash after all fills so far
func (b *PaperBroker) CashRemaining() decimal.Decimal {
	return b.cash
}
