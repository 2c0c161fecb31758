package execution

import (
	"github.com/shopspring/decimal"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

// Synthesizer turns allocation targets into limit order instructions
type Synthesizer struct {
	logger *logger.Logger
}

// NewSynthesizer creates a new order synthesizer
func NewSynthesizer(log *logger.Logger) *Synthesizer {
	return &Synthesizer{logger: log}
}

// BuildOrders converts actionable targets into sell and buy instructions,
// preserving target order within each side. Limit prices derive from the
// plan's value columns, not a live quote: sells price at current value
// per traded share, buys fall back to target value per share when the
// symbol is not yet held. An instruction that ends up zero-priced is
// still returned but flagged here; the executor rejects it before
// submission.
func (s *Synthesizer) BuildOrders(summary *contracts.PortfolioSummary) (sells, buys []contracts.OrderInstruction) {
	for i := range summary.Targets {
		target := &summary.Targets[i]
		if !target.IsActionable() {
			continue
		}

		order := contracts.OrderInstruction{
			SecurityID:  target.SecurityID,
			Symbol:      target.Symbol,
			Quantity:    target.TradeQuantity,
			SubType:     contracts.OrderSubTypeLimit,
			TimeInForce: "day",
		}

		switch target.Action {
		case contracts.ActionSell:
			order.Side = contracts.OrderSideSell
			order.LimitPrice = sharePrice(target.CurrentValue, target.TradeQuantity)
			sells = append(sells, order)
		case contracts.ActionBuy:
			order.Side = contracts.OrderSideBuy
			if target.CurrentValue.IsPositive() {
				order.LimitPrice = sharePrice(target.CurrentValue, target.TradeQuantity)
			} else {
				order.LimitPrice = sharePrice(target.TargetValue, target.TradeQuantity)
			}
			buys = append(buys, order)
		}

		if !order.HasPrice() {
			s.logger.WithFields(map[string]interface{}{
				"symbol": order.Symbol,
				"side":   order.Side,
			}).Warn("Synthesized zero-priced order, unsafe to submit")
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"sell_orders": len(sells),
		"buy_orders":  len(buys),
	}).Info("Order instructions built")

	return sells, buys
}

// sharePrice divides a plan value evenly over the traded shares.
// Returns zero when the value carries no information.
func sharePrice(value decimal.Decimal, quantity int64) decimal.Decimal {
	if quantity < 1 || !value.IsPositive() {
		return decimal.Zero
	}
	return value.Div(decimal.NewFromInt(quantity))
}
