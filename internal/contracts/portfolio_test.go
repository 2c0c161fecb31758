package contracts

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAllocationTarget_IsActionable(t *testing.T) {
	tests := []struct {
		name   string
		target AllocationTarget
		want   bool
	}{
		{
			name:   "buy with quantity",
			target: AllocationTarget{Action: ActionBuy, TradeQuantity: 10},
			want:   true,
		},
		{
			name:   "sell with quantity",
			target: AllocationTarget{Action: ActionSell, TradeQuantity: 3},
			want:   true,
		},
		{
			name:   "hold",
			target: AllocationTarget{Action: ActionHold, TradeQuantity: 0},
			want:   false,
		},
		{
			name:   "forced sell of sub-share position",
			target: AllocationTarget{Action: ActionSell, TradeQuantity: 0},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.target.IsActionable(); got != tt.want {
				t.Errorf("IsActionable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPortfolioSummary_Target(t *testing.T) {
	summary := &PortfolioSummary{
		Targets: []AllocationTarget{
			{Symbol: "XEQT.TO", Action: ActionBuy, TradeQuantity: 5},
			{Symbol: "ENB.TO", Action: ActionHold},
		},
	}

	// Existing target
	target, exists := summary.Target("XEQT.TO")
	if !exists {
		t.Error("Expected to find target for XEQT.TO")
	}
	if target.Action != ActionBuy {
		t.Errorf("Got action %s, want buy", target.Action)
	}

	// Non-existing target
	_, exists = summary.Target("SHOP.TO")
	if exists {
		t.Error("Expected not to find target for SHOP.TO")
	}
}

func TestPortfolioSummary_Actionable(t *testing.T) {
	summary := &PortfolioSummary{
		Targets: []AllocationTarget{
			{Symbol: "XEQT.TO", Action: ActionBuy, TradeQuantity: 5},
			{Symbol: "ENB.TO", Action: ActionHold},
			{Symbol: "SU.TO", Action: ActionSell, TradeQuantity: 2},
			{Symbol: "BCE.TO", Action: ActionSell, TradeQuantity: 0},
		},
	}

	actionable := summary.Actionable()
	if len(actionable) != 2 {
		t.Fatalf("Actionable() returned %d targets, want 2", len(actionable))
	}
	if actionable[0].Symbol != "XEQT.TO" || actionable[1].Symbol != "SU.TO" {
		t.Errorf("Actionable() order = %s, %s; want XEQT.TO, SU.TO",
			actionable[0].Symbol, actionable[1].Symbol)
	}
}

func TestPortfolioSummary_CountByAction(t *testing.T) {
	summary := &PortfolioSummary{
		Targets: []AllocationTarget{
			{Symbol: "A", Action: ActionBuy},
			{Symbol: "B", Action: ActionBuy},
			{Symbol: "C", Action: ActionSell},
			{Symbol: "D", Action: ActionHold},
		},
	}

	counts := summary.CountByAction()
	if counts[ActionBuy] != 2 || counts[ActionSell] != 1 || counts[ActionHold] != 1 {
		t.Errorf("CountByAction() = %v", counts)
	}
}

func TestAction_Constants(t *testing.T) {
	if ActionBuy != "buy" {
		t.Errorf("ActionBuy = %s, want buy", ActionBuy)
	}
	if ActionSell != "sell" {
		t.Errorf("ActionSell = %s, want sell", ActionSell)
	}
	if ActionHold != "hold" {
		t.Errorf("ActionHold = %s, want hold", ActionHold)
	}
}

func TestPortfolioSummary_JSON(t *testing.T) {
	original := &PortfolioSummary{
		TotalValue:  decimal.NewFromInt(10000),
		CashBalance: decimal.NewFromInt(2500),
		NumHoldings: 1,
		Targets: []AllocationTarget{
			{
				Symbol:        "XEQT.TO",
				SecurityID:    "sec-s-aabbcc",
				Action:        ActionBuy,
				TargetValue:   decimal.NewFromInt(2000),
				TradeValue:    decimal.NewFromInt(1500),
				TradeQuantity: 42,
			},
		},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var decoded PortfolioSummary
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if !decoded.TotalValue.Equal(original.TotalValue) {
		t.Errorf("TotalValue mismatch: got %s, want %s", decoded.TotalValue, original.TotalValue)
	}
	if len(decoded.Targets) != 1 {
		t.Fatalf("Targets count mismatch: got %d, want 1", len(decoded.Targets))
	}
	if decoded.Targets[0].TradeQuantity != 42 {
		t.Errorf("TradeQuantity mismatch: got %d, want 42", decoded.Targets[0].TradeQuantity)
	}
}
