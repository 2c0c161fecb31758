package contracts

import "github.com/shopspring/decimal"

// Action represents the rebalancing decision for one symbol
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// AllocationTarget represents the planner's verdict for one symbol,
// passed from the allocation planner to the order synthesizer.
// Action is hold exactly when TradeQuantity is 0, except forced
// liquidations, which stay sell even at quantity 0.
type AllocationTarget struct {
	Symbol        string          `json:"symbol"`
	SecurityID    string          `json:"security_id"`
	Action        Action          `json:"action"`
	TargetWeight  decimal.Decimal `json:"target_weight"`  // 0.0 ~ 1.0
	TargetValue   decimal.Decimal `json:"target_value"`   // CAD
	CurrentValue  decimal.Decimal `json:"current_value"`  // CAD, 0 when unheld
	CurrentWeight decimal.Decimal `json:"current_weight"` // 0.0 ~ 1.0
	DriftPct      decimal.Decimal `json:"drift_pct"`      // percent distance from target
	TradeValue    decimal.Decimal `json:"trade_value"`    // absolute gap, before the per-trade cap
	TradeQuantity int64           `json:"trade_quantity"` // whole shares
}

// IsActionable reports whether this target should become an order
func (t *AllocationTarget) IsActionable() bool {
	return t.Action != ActionHold && t.TradeQuantity >= 1
}

// PortfolioSummary represents one full allocation plan over the account,
// passed from the planner to the synthesizer and the run report
type PortfolioSummary struct {
	TotalValue     decimal.Decimal    `json:"total_value"`
	CashBalance    decimal.Decimal    `json:"cash_balance"`
	PositionsValue decimal.Decimal    `json:"positions_value"`
	NumHoldings    int                `json:"num_holdings"`
	Targets        []AllocationTarget `json:"targets"`
}

// Target finds a target by symbol
func (ps *PortfolioSummary) Target(symbol string) (*AllocationTarget, bool) {
	for i := range ps.Targets {
		if ps.Targets[i].Symbol == symbol {
			return &ps.Targets[i], true
		}
	}
	return nil, false
}

// Actionable returns the targets that should become orders
func (ps *PortfolioSummary) Actionable() []AllocationTarget {
	out := make([]AllocationTarget, 0, len(ps.Targets))
	for i := range ps.Targets {
		if ps.Targets[i].IsActionable() {
			out = append(out, ps.Targets[i])
		}
	}
	return out
}

// CountByAction tallies the targets per action
func (ps *PortfolioSummary) CountByAction() map[Action]int {
	counts := make(map[Action]int, 3)
	for i := range ps.Targets {
		counts[ps.Targets[i].Action]++
	}
	return counts
}
