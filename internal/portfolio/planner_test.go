package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/pkg/config"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

func testLogger() *logger.Logger {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "error",
		LogFormat: "json",
	}
	return logger.New(cfg)
}

func testPlanner() *Planner {
	return NewPlanner(PlanConfig{
		DriftThresholdPct: decimal.NewFromFloat(5.0),
		MinTradeValue:     decimal.NewFromFloat(1.0),
		MaxTradeValue:     decimal.NewFromFloat(5000.0),
	}, testLogger())
}

func pick(symbol string) contracts.SecurityMetrics {
	return contracts.SecurityMetrics{Symbol: symbol, Name: symbol}
}

func d(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func TestPlan_FreshAccountSplitsEqually(t *testing.T) {
	p := testPlanner()

	summary := p.Plan(
		[]contracts.SecurityMetrics{pick("AAA.TO"), pick("BBB.TO")},
		nil,
		d(10_000),
		map[string]decimal.Decimal{"AAA.TO": d(50), "BBB.TO": d(20)},
		map[string]string{"AAA.TO": "sec-aaa", "BBB.TO": "sec-bbb"},
	)

	assert.True(t, summary.TotalValue.Equal(d(10_000)))
	assert.True(t, summary.PositionsValue.IsZero())
	require.Len(t, summary.Targets, 2)

	aaa := summary.Targets[0]
	assert.Equal(t, "AAA.TO", aaa.Symbol)
	assert.Equal(t, "sec-aaa", aaa.SecurityID)
	assert.Equal(t, contracts.ActionBuy, aaa.Action)
	assert.True(t, aaa.TargetWeight.Equal(d(0.5)))
	assert.True(t, aaa.TargetValue.Equal(d(5_000)))
	assert.True(t, aaa.TradeValue.Equal(d(5_000)))
	assert.Equal(t, int64(100), aaa.TradeQuantity)

	bbb := summary.Targets[1]
	assert.Equal(t, contracts.ActionBuy, bbb.Action)
	assert.Equal(t, int64(250), bbb.TradeQuantity)
}

func TestPlan_EmptyPortfolioIsTerminal(t *testing.T) {
	p := testPlanner()

	summary := p.Plan(
		[]contracts.SecurityMetrics{pick("AAA.TO")},
		nil,
		decimal.Zero,
		map[string]decimal.Decimal{"AAA.TO": d(50)},
		nil,
	)

	assert.True(t, summary.TotalValue.IsZero())
	assert.Empty(t, summary.Targets)
}

func TestPlan_EmptySelectionPlansNothing(t *testing.T) {
	p := testPlanner()

	positions := []contracts.Position{{
		Symbol:      "OLD.TO",
		SecurityID:  "sec-old",
		Quantity:    d(10),
		MarketValue: d(1_000),
	}}

	summary := p.Plan(nil, positions, d(500), nil, nil)

	assert.True(t, summary.TotalValue.Equal(d(1_500)))
	assert.Empty(t, summary.Targets)
}

func TestPlan_BalancedPositionHolds(t *testing.T) {
	p := testPlanner()

	// One bucket at 98% of target: 2% drift, under the 5% threshold.
	positions := []contracts.Position{{
		Symbol:      "AAA.TO",
		SecurityID:  "sec-aaa",
		Quantity:    d(98),
		MarketValue: d(980),
	}}

	summary := p.Plan(
		[]contracts.SecurityMetrics{pick("AAA.TO")},
		positions,
		d(20),
		map[string]decimal.Decimal{"AAA.TO": d(10)},
		map[string]string{"AAA.TO": "sec-aaa"},
	)

	require.Len(t, summary.Targets, 1)
	target := summary.Targets[0]
	assert.Equal(t, contracts.ActionHold, target.Action)
	assert.Equal(t, int64(0), target.TradeQuantity)
	assert.True(t, target.DriftPct.Equal(d(2)))
}

func TestPlan_OverweightPositionSells(t *testing.T) {
	p := testPlanner()

	// Two buckets of $1000 each; AAA holds $1500, so $500 must go.
	positions := []contracts.Position{{
		Symbol:      "AAA.TO",
		SecurityID:  "sec-aaa",
		Quantity:    d(150),
		MarketValue: d(1_500),
	}}

	summary := p.Plan(
		[]contracts.SecurityMetrics{pick("AAA.TO"), pick("BBB.TO")},
		positions,
		d(500),
		map[string]decimal.Decimal{"AAA.TO": d(10), "BBB.TO": d(25)},
		map[string]string{"AAA.TO": "sec-aaa", "BBB.TO": "sec-bbb"},
	)

	require.Len(t, summary.Targets, 2)

	aaa := summary.Targets[0]
	assert.Equal(t, contracts.ActionSell, aaa.Action)
	assert.True(t, aaa.TradeValue.Equal(d(500)))
	assert.Equal(t, int64(50), aaa.TradeQuantity)

	bbb := summary.Targets[1]
	assert.Equal(t, contracts.ActionBuy, bbb.Action)
	assert.Equal(t, int64(40), bbb.TradeQuantity)
}

func TestPlan_TradeValueRecordsUncappedGap(t *testing.T) {
	p := testPlanner()

	// Gap is $8000 but the per-order cap is $5000: quantity honors the
	// cap, the recorded gap does not.
	summary := p.Plan(
		[]contracts.SecurityMetrics{pick("AAA.TO")},
		nil,
		d(8_000),
		map[string]decimal.Decimal{"AAA.TO": d(100)},
		map[string]string{"AAA.TO": "sec-aaa"},
	)

	require.Len(t, summary.Targets, 1)
	target := summary.Targets[0]
	assert.Equal(t, contracts.ActionBuy, target.Action)
	assert.True(t, target.TradeValue.Equal(d(8_000)))
	assert.Equal(t, int64(50), target.TradeQuantity)
}

func TestPlan_SubShareGapDemotesToHold(t *testing.T) {
	p := testPlanner()

	// $30 gap at a $50 price floors to zero shares.
	positions := []contracts.Position{{
		Symbol:      "AAA.TO",
		SecurityID:  "sec-aaa",
		Quantity:    d(3),
		MarketValue: d(270),
	}}

	summary := p.Plan(
		[]contracts.SecurityMetrics{pick("AAA.TO")},
		positions,
		d(30),
		map[string]decimal.Decimal{"AAA.TO": d(50)},
		map[string]string{"AAA.TO": "sec-aaa"},
	)

	require.Len(t, summary.Targets, 1)
	target := summary.Targets[0]
	assert.Equal(t, contracts.ActionHold, target.Action)
	assert.Equal(t, int64(0), target.TradeQuantity)
	assert.False(t, target.IsActionable())
}

func TestPlan_MissingPriceSkipsTarget(t *testing.T) {
	p := testPlanner()

	summary := p.Plan(
		[]contracts.SecurityMetrics{pick("AAA.TO"), pick("BBB.TO")},
		nil,
		d(10_000),
		map[string]decimal.Decimal{"BBB.TO": d(20)},
		map[string]string{"BBB.TO": "sec-bbb"},
	)

	// AAA has no price: omitted entirely, BBB still planned at half.
	require.Len(t, summary.Targets, 1)
	assert.Equal(t, "BBB.TO", summary.Targets[0].Symbol)
	assert.True(t, summary.Targets[0].TargetValue.Equal(d(5_000)))
}

func TestPlan_UnselectedHoldingForcedSell(t *testing.T) {
	p := testPlanner()

	positions := []contracts.Position{{
		Symbol:       "OLD.TO",
		SecurityID:   "sec-old",
		Quantity:     d(12),
		CurrentPrice: d(25),
		MarketValue:  d(300),
	}}

	summary := p.Plan(
		[]contracts.SecurityMetrics{pick("NEW.TO")},
		positions,
		d(700),
		map[string]decimal.Decimal{"NEW.TO": d(10)},
		map[string]string{"NEW.TO": "sec-new"},
	)

	require.Len(t, summary.Targets, 2)

	forced := summary.Targets[1]
	assert.Equal(t, "OLD.TO", forced.Symbol)
	assert.Equal(t, contracts.ActionSell, forced.Action)
	assert.True(t, forced.TargetWeight.IsZero())
	assert.True(t, forced.DriftPct.Equal(d(100)))
	assert.True(t, forced.TradeValue.Equal(d(300)))
	assert.Equal(t, int64(12), forced.TradeQuantity)
	assert.True(t, forced.IsActionable())
}

func TestPlan_FractionalForcedSellTruncates(t *testing.T) {
	p := testPlanner()

	positions := []contracts.Position{{
		Symbol:      "FRAC.TO",
		SecurityID:  "sec-frac",
		Quantity:    d(2.7),
		MarketValue: d(270),
	}}

	summary := p.Plan(
		[]contracts.SecurityMetrics{pick("NEW.TO")},
		positions,
		d(730),
		map[string]decimal.Decimal{"NEW.TO": d(10)},
		map[string]string{"NEW.TO": "sec-new"},
	)

	require.Len(t, summary.Targets, 2)
	forced := summary.Targets[1]
	assert.Equal(t, contracts.ActionSell, forced.Action)
	assert.Equal(t, int64(2), forced.TradeQuantity)
}

func TestPlan_ZeroQuantityHoldingNotLiquidated(t *testing.T) {
	p := testPlanner()

	positions := []contracts.Position{{
		Symbol:      "GONE.TO",
		SecurityID:  "sec-gone",
		Quantity:    decimal.Zero,
		MarketValue: decimal.Zero,
	}}

	summary := p.Plan(
		[]contracts.SecurityMetrics{pick("NEW.TO")},
		positions,
		d(1_000),
		map[string]decimal.Decimal{"NEW.TO": d(10)},
		map[string]string{"NEW.TO": "sec-new"},
	)

	require.Len(t, summary.Targets, 1)
	assert.Equal(t, "NEW.TO", summary.Targets[0].Symbol)
}

func TestPlan_TargetOrderIsDeterministic(t *testing.T) {
	p := testPlanner()

	positions := []contracts.Position{
		{Symbol: "OLD1.TO", SecurityID: "s1", Quantity: d(1), MarketValue: d(100)},
		{Symbol: "OLD2.TO", SecurityID: "s2", Quantity: d(1), MarketValue: d(100)},
	}

	summary := p.Plan(
		[]contracts.SecurityMetrics{pick("BBB.TO"), pick("AAA.TO")},
		positions,
		d(800),
		map[string]decimal.Decimal{"AAA.TO": d(10), "BBB.TO": d(10)},
		map[string]string{"AAA.TO": "sec-a", "BBB.TO": "sec-b"},
	)

	require.Len(t, summary.Targets, 4)
	assert.Equal(t, "BBB.TO", summary.Targets[0].Symbol)
	assert.Equal(t, "AAA.TO", summary.Targets[1].Symbol)
	assert.Equal(t, "OLD1.TO", summary.Targets[2].Symbol)
	assert.Equal(t, "OLD2.TO", summary.Targets[3].Symbol)
}

func TestPlan_RebalancedPortfolioIsStable(t *testing.T) {
	p := testPlanner()

	// A portfolio already split across both buckets replans to holds.
	positions := []contracts.Position{
		{Symbol: "AAA.TO", SecurityID: "sec-a", Quantity: d(50), MarketValue: d(500)},
		{Symbol: "BBB.TO", SecurityID: "sec-b", Quantity: d(25), MarketValue: d(500)},
	}

	summary := p.Plan(
		[]contracts.SecurityMetrics{pick("AAA.TO"), pick("BBB.TO")},
		positions,
		decimal.Zero,
		map[string]decimal.Decimal{"AAA.TO": d(10), "BBB.TO": d(20)},
		map[string]string{"AAA.TO": "sec-a", "BBB.TO": "sec-b"},
	)

	require.Len(t, summary.Targets, 2)
	for _, target := range summary.Targets {
		assert.Equal(t, contracts.ActionHold, target.Action)
		assert.Equal(t, int64(0), target.TradeQuantity)
	}
	assert.Empty(t, summary.Actionable())
}
