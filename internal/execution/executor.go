package execution

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

// defaultCooldown separates the last sell from the first buy so freed
// cash settles before it is spent
const defaultCooldown = 5 * time.Second

// Executor submits order instructions through the rate gate and the
// safety caps. One instance per process; the daily counter accumulates
// across runs until restart.
type Executor struct {
	placer contracts.OrderPlacer
	gate   *RateGate
	config ExecConfig
	logger *logger.Logger

	outcomes   []contracts.OrderOutcome
	dailyCount int

	sleep func(ctx context.Context, d time.Duration) error
}

// ExecConfig defines the executor's safety caps
type ExecConfig struct {
	MaxTradeValue  decimal.Decimal // per-order notional ceiling, CAD
	MaxDailyTrades int
	Cooldown       time.Duration // pause between sell and buy batches
}

// NewExecutor creates a new order executor
func NewExecutor(placer contracts.OrderPlacer, gate *RateGate, config ExecConfig, log *logger.Logger) *Executor {
	if config.Cooldown <= 0 {
		config.Cooldown = defaultCooldown
	}
	return &Executor{
		placer: placer,
		gate:   gate,
		config: config,
		logger: log,
		sleep:  sleepCtx,
	}
}

// Execute submits all sells, cools down, then submits all buys.
// Rejected and failed submissions are logged and dropped from the
// results; the batch continues. The returned error is non-nil only on
// context cancellation, with the outcomes collected so far.
func (e *Executor) Execute(ctx context.Context, accountID string, sells, buys []contracts.OrderInstruction) ([]contracts.OrderOutcome, error) {
	results := make([]contracts.OrderOutcome, 0, len(sells)+len(buys))

	e.logger.WithField("orders", len(sells)).Info("Submitting sell orders")
	batch, err := e.submitBatch(ctx, accountID, sells)
	results = append(results, batch...)
	if err != nil {
		e.outcomes = append(e.outcomes, results...)
		return results, err
	}

	if len(sells) > 0 && len(buys) > 0 {
		e.logger.WithField("cooldown", e.config.Cooldown.String()).Info("Cooling down between sells and buys")
		if err := e.sleep(ctx, e.config.Cooldown); err != nil {
			e.outcomes = append(e.outcomes, results...)
			return results, err
		}
	}

	e.logger.WithField("orders", len(buys)).Info("Submitting buy orders")
	batch, err = e.submitBatch(ctx, accountID, buys)
	results = append(results, batch...)

	e.outcomes = append(e.outcomes, results...)
	e.logger.WithFields(map[string]interface{}{
		"executed": len(results),
		"planned":  len(sells) + len(buys),
	}).Info("Execution complete")

	return results, err
}

// submitBatch runs one side's instructions in order. The daily counter
// increments on every admitted attempt, placement success or not; once
// the ceiling is hit the rest of the batch is skipped.
func (e *Executor) submitBatch(ctx context.Context, accountID string, orders []contracts.OrderInstruction) ([]contracts.OrderOutcome, error) {
	out := make([]contracts.OrderOutcome, 0, len(orders))

	for i := range orders {
		if e.dailyCount >= e.config.MaxDailyTrades {
			e.logger.WithField("limit", e.config.MaxDailyTrades).Warn("Daily trade limit reached, skipping remaining orders")
			break
		}

		order := orders[i]
		if !e.admissible(&order) {
			continue
		}

		if err := e.gate.Admit(ctx); err != nil {
			return out, err
		}
		e.dailyCount++

		outcome, err := e.placer.PlaceOrder(ctx, accountID, order)
		if err != nil {
			e.logger.WithFields(map[string]interface{}{
				"symbol": order.Symbol,
				"side":   order.Side,
				"error":  err.Error(),
			}).Error("Order submission failed")
			continue
		}

		e.logger.WithFields(map[string]interface{}{
			"symbol":      order.Symbol,
			"side":        order.Side,
			"quantity":    order.Quantity,
			"limit_price": order.LimitPrice.StringFixed(2),
			"status":      outcome.Status,
		}).Info("Order submitted")
		out = append(out, *outcome)
	}

	return out, nil
}

// admissible applies the per-order gates checked before the rate
// limiter. Rejected orders never consume a daily slot.
func (e *Executor) admissible(order *contracts.OrderInstruction) bool {
	if order.Quantity < 1 {
		e.logger.WithFields(map[string]interface{}{
			"symbol":   order.Symbol,
			"quantity": order.Quantity,
		}).Warn("Rejected order with non-positive quantity")
		return false
	}

	if !order.HasPrice() {
		e.logger.WithField("symbol", order.Symbol).Warn("Rejected zero-priced order")
		return false
	}

	if value := order.Value(); value.GreaterThan(e.config.MaxTradeValue) {
		e.logger.WithFields(map[string]interface{}{
			"symbol": order.Symbol,
			"value":  value.StringFixed(2),
			"max":    e.config.MaxTradeValue.StringFixed(2),
		}).Warn("Order value exceeds per-trade cap")
		return false
	}

	return true
}

// Summary aggregates every outcome this executor has recorded
func (e *Executor) Summary() contracts.ExecutionSummary {
	successful := 0
	for i := range e.outcomes {
		if e.outcomes[i].Accepted() {
			successful++
		}
	}
	return contracts.ExecutionSummary{
		TotalOrders:     len(e.outcomes),
		Successful:      successful,
		Failed:          len(e.outcomes) - successful,
		DailyTradesUsed: e.dailyCount,
	}
}

// DailyTradesUsed returns the attempts consumed against the daily cap
func (e *Executor) DailyTradesUsed() int {
	return e.dailyCount
}
