package portfolio

import (
	"github.com/shopspring/decimal"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Planner builds equal-weight allocation plans over the account
type Planner struct {
	config PlanConfig
	logger *logger.Logger
}

// PlanConfig defines rebalancing thresholds, values in CAD
type PlanConfig struct {
	DriftThresholdPct decimal.Decimal // rebalance trigger, percent of target weight
	MinTradeValue     decimal.Decimal // gaps below this stay holds
	MaxTradeValue     decimal.Decimal // per-order value cap
}

// NewPlanner creates a new allocation planner
func NewPlanner(config PlanConfig, log *logger.Logger) *Planner {
	return &Planner{
		config: config,
		logger: log,
	}
}

// Plan converts the selection plus current account state into per-symbol
// targets: each selected symbol gets an equal-weight bucket, every held
// symbol outside the selection gets a forced sell. Targets keep selection
// order first, then position order. A total value of zero or less, or an
// empty selection, yields a summary with no targets.
func (p *Planner) Plan(
	selection []contracts.SecurityMetrics,
	positions []contracts.Position,
	cash decimal.Decimal,
	prices map[string]decimal.Decimal,
	securityIDs map[string]string,
) *contracts.PortfolioSummary {
	positionsValue := contracts.PositionsValue(positions)
	totalValue := cash.Add(positionsValue)

	summary := &contracts.PortfolioSummary{
		TotalValue:     totalValue,
		CashBalance:    cash,
		PositionsValue: positionsValue,
		NumHoldings:    len(positions),
		Targets:        make([]contracts.AllocationTarget, 0, len(selection)+len(positions)),
	}

	if totalValue.LessThanOrEqual(decimal.Zero) {
		p.logger.Warn("Portfolio value is zero or negative, nothing to plan")
		return summary
	}
	if len(selection) == 0 {
		p.logger.Warn("Empty selection, no targets planned")
		return summary
	}

	targetWeight := one.Div(decimal.NewFromInt(int64(len(selection))))
	targetValue := totalValue.Mul(targetWeight)

	selected := make(map[string]bool, len(selection))
	for _, pick := range selection {
		selected[pick.Symbol] = true

		price := prices[pick.Symbol]
		if price.LessThanOrEqual(decimal.Zero) {
			p.logger.WithField("symbol", pick.Symbol).Warn("No price for symbol, skipping target")
			continue
		}

		currentValue := decimal.Zero
		if pos, ok := contracts.FindPosition(positions, pick.Symbol); ok {
			currentValue = pos.MarketValue
		}

		summary.Targets = append(summary.Targets, p.bucketTarget(
			pick.Symbol, securityIDs[pick.Symbol],
			price, currentValue, totalValue, targetWeight, targetValue,
		))
	}

	summary.Targets = append(summary.Targets, p.forcedSells(positions, selected, totalValue)...)

	p.logger.WithFields(map[string]interface{}{
		"total_value": totalValue.StringFixed(2),
		"cash":        cash.StringFixed(2),
		"targets":     len(summary.Targets),
		"buckets":     len(selection),
	}).Info("Allocation plan built")

	return summary
}

// bucketTarget decides the action for one selected symbol. TradeValue
// always records the uncapped gap; the per-order cap only limits the
// quantity. A gap too small to move one whole share stays a hold, so
// buy and sell targets always carry quantity >= 1.
func (p *Planner) bucketTarget(
	symbol, securityID string,
	price, currentValue, totalValue, targetWeight, targetValue decimal.Decimal,
) contracts.AllocationTarget {
	currentWeight := currentValue.Div(totalValue)
	driftPct := currentWeight.Sub(targetWeight).Abs().Div(targetWeight).Mul(hundred)

	gap := targetValue.Sub(currentValue)
	absGap := gap.Abs()

	action := contracts.ActionHold
	var quantity int64
	if driftPct.GreaterThanOrEqual(p.config.DriftThresholdPct) && absGap.GreaterThanOrEqual(p.config.MinTradeValue) {
		capped := decimal.Min(absGap, p.config.MaxTradeValue)
		quantity = capped.Div(price).IntPart()
		switch {
		case quantity < 1:
			quantity = 0
		case gap.IsPositive():
			action = contracts.ActionBuy
		default:
			action = contracts.ActionSell
		}
	}

	return contracts.AllocationTarget{
		Symbol:        symbol,
		SecurityID:    securityID,
		Action:        action,
		TargetWeight:  targetWeight,
		TargetValue:   targetValue,
		CurrentValue:  currentValue,
		CurrentWeight: currentWeight,
		DriftPct:      driftPct,
		TradeValue:    absGap,
		TradeQuantity: quantity,
	}
}

// forcedSells liquidates every held symbol missing from the selection.
// Drift is reported as a full 100 percent; fractional positions truncate
// to whole shares, which can leave a sub-share remainder unsold.
func (p *Planner) forcedSells(
	positions []contracts.Position,
	selected map[string]bool,
	totalValue decimal.Decimal,
) []contracts.AllocationTarget {
	var out []contracts.AllocationTarget
	for i := range positions {
		pos := &positions[i]
		if selected[pos.Symbol] || !pos.Quantity.IsPositive() {
			continue
		}

		p.logger.WithFields(map[string]interface{}{
			"symbol":   pos.Symbol,
			"quantity": pos.Quantity.String(),
		}).Info("Liquidating unselected holding")

		out = append(out, contracts.AllocationTarget{
			Symbol:        pos.Symbol,
			SecurityID:    pos.SecurityID,
			Action:        contracts.ActionSell,
			TargetWeight:  decimal.Zero,
			TargetValue:   decimal.Zero,
			CurrentValue:  pos.MarketValue,
			CurrentWeight: pos.MarketValue.Div(totalValue),
			DriftPct:      hundred,
			TradeValue:    pos.MarketValue,
			TradeQuantity: pos.WholeShares(),
		})
	}
	return out
}
