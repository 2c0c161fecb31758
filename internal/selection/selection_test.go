package selection

import (
	"testing"

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

func metric(symbol, sector string, isETF bool) contracts.SecurityMetrics {
	return contracts.SecurityMetrics{
		Symbol:    symbol,
		Name:      symbol,
		Sector:    sector,
		IsETF:     isETF,
		MarketCap: 1_000_000_000,
		AvgVolume: 500_000,
	}
}

// momentum builds a candidate whose five factors all reflect the same
// strength, so stronger always outranks weaker on every factor.
func momentum(symbol, sector string, strength float64) contracts.SecurityMetrics {
	m := metric(symbol, sector, false)
	m.Return90D = strength
	m.Return30D = strength / 3
	m.SharpeRatio = strength * 4
	m.Volatility = 0.8 - strength
	m.AvgVolume = 100_000 + strength*1_000_000
	return m
}

// --- Screener ---

func TestScreen_MarketCapFilter(t *testing.T) {
	s := NewScreener(ScreenConfig{
		MinMarketCap: 500_000_000,
		MinAvgVolume: 100_000,
	}, testLogger())

	small := metric("TINY.TO", "Energy", false)
	small.MarketCap = 200_000_000

	big := metric("ENB.TO", "Energy", false)

	out := s.Screen([]contracts.SecurityMetrics{small, big})

	require.Len(t, out, 1)
	assert.Equal(t, "ENB.TO", out[0].Symbol)
}

func TestScreen_ETFExemptFromMarketCap(t *testing.T) {
	s := NewScreener(ScreenConfig{
		MinMarketCap: 500_000_000,
		MinAvgVolume: 100_000,
	}, testLogger())

	etf := metric("XEQT.TO", "ETF", true)
	etf.MarketCap = 50_000_000

	out := s.Screen([]contracts.SecurityMetrics{etf})

	require.Len(t, out, 1)
	assert.Equal(t, "XEQT.TO", out[0].Symbol)
}

func TestScreen_ZeroMarketCapPasses(t *testing.T) {
	s := NewScreener(ScreenConfig{
		MinMarketCap: 500_000_000,
		MinAvgVolume: 100_000,
	}, testLogger())

	// Missing profile data reports zero cap; treated as unknown, not small.
	unknown := metric("NEW.TO", "Technology", false)
	unknown.MarketCap = 0

	out := s.Screen([]contracts.SecurityMetrics{unknown})

	require.Len(t, out, 1)
}

func TestScreen_VolumeFilterAppliesToETFs(t *testing.T) {
	s := NewScreener(ScreenConfig{
		MinMarketCap: 500_000_000,
		MinAvgVolume: 100_000,
	}, testLogger())

	thin := metric("THIN.TO", "ETF", true)
	thin.AvgVolume = 5_000

	out := s.Screen([]contracts.SecurityMetrics{thin})

	assert.Empty(t, out)
}

func TestScreen_PreservesOrderAndInput(t *testing.T) {
	s := NewScreener(ScreenConfig{
		MinMarketCap: 500_000_000,
		MinAvgVolume: 100_000,
	}, testLogger())

	in := []contracts.SecurityMetrics{
		metric("RY.TO", "Financial Services", false),
		metric("SHOP.TO", "Technology", false),
		metric("ENB.TO", "Energy", false),
	}

	out := s.Screen(in)

	require.Len(t, out, 3)
	assert.Equal(t, "RY.TO", out[0].Symbol)
	assert.Equal(t, "SHOP.TO", out[1].Symbol)
	assert.Equal(t, "ENB.TO", out[2].Symbol)
}

// --- Percentile ranks ---

func TestPercentileRanks_Bounds(t *testing.T) {
	ranks := percentileRanks([]float64{3, 1, 2})

	assert.InDelta(t, 1.0, ranks[0], 1e-12)
	assert.InDelta(t, 0.0, ranks[1], 1e-12)
	assert.InDelta(t, 0.5, ranks[2], 1e-12)
}

func TestPercentileRanks_SingleValue(t *testing.T) {
	ranks := percentileRanks([]float64{42})

	require.Len(t, ranks, 1)
	assert.InDelta(t, 0.0, ranks[0], 1e-12)
}

func TestPercentileRanks_TiesKeepInputOrder(t *testing.T) {
	// Stable sort: the earlier of two equal values gets the lower rank.
	ranks := percentileRanks([]float64{5, 5, 1})

	assert.InDelta(t, 0.5, ranks[0], 1e-12)
	assert.InDelta(t, 1.0, ranks[1], 1e-12)
	assert.InDelta(t, 0.0, ranks[2], 1e-12)
}

// --- Ranker ---

func TestRank_EmptyInput(t *testing.T) {
	r := NewRanker(RankConfig{NumPicks: 7}, testLogger())

	_, err := r.Rank(nil)

	assert.ErrorIs(t, err, contracts.ErrNoCandidates)
}

func TestRank_DominantCandidateWins(t *testing.T) {
	r := NewRanker(RankConfig{NumPicks: 3}, testLogger())

	strong := metric("WIN.TO", "Technology", false)
	strong.Return90D = 0.40
	strong.Return30D = 0.15
	strong.SharpeRatio = 2.0
	strong.Volatility = 0.10
	strong.AvgVolume = 2_000_000

	weak := metric("LOSE.TO", "Energy", false)
	weak.Return90D = -0.10
	weak.Return30D = -0.05
	weak.SharpeRatio = -0.5
	weak.Volatility = 0.60
	weak.AvgVolume = 50_000

	out, err := r.Rank([]contracts.SecurityMetrics{weak, strong})

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "WIN.TO", out[0].Symbol)
	assert.Equal(t, "LOSE.TO", out[1].Symbol)
	assert.Greater(t, out[0].Score, out[1].Score)
}

func TestRank_ETFBonus(t *testing.T) {
	etf := metric("XEQT.TO", "ETF", true)
	stock := metric("ENB.TO", "Energy", false)
	for _, m := range []*contracts.SecurityMetrics{&etf, &stock} {
		m.Return90D = 0.10
		m.Return30D = 0.05
		m.SharpeRatio = 1.0
		m.Volatility = 0.20
		m.AvgVolume = 1_000_000
	}
	in := []contracts.SecurityMetrics{stock, etf}

	scoreOf := func(out []contracts.SecurityMetrics, symbol string) float64 {
		for _, m := range out {
			if m.Symbol == symbol {
				return m.Score
			}
		}
		t.Fatalf("symbol %s missing from picks", symbol)
		return 0
	}

	without := NewRanker(RankConfig{NumPicks: 2, PreferETFs: false}, testLogger())
	base, err := without.Rank(in)
	require.NoError(t, err)

	boosted, err := NewRanker(RankConfig{NumPicks: 2, PreferETFs: true}, testLogger()).Rank(in)
	require.NoError(t, err)

	// The bonus lifts the ETF's score by exactly etfBonus and leaves the
	// stock untouched.
	assert.InDelta(t, scoreOf(base, "XEQT.TO")+etfBonus, scoreOf(boosted, "XEQT.TO"), 1e-12)
	assert.InDelta(t, scoreOf(base, "ENB.TO"), scoreOf(boosted, "ENB.TO"), 1e-12)
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	r := NewRanker(RankConfig{NumPicks: 2}, testLogger())

	a := metric("A.TO", "Energy", false)
	a.Return90D = 0.30
	b := metric("B.TO", "Technology", false)
	b.Return90D = 0.10

	in := []contracts.SecurityMetrics{b, a}
	_, err := r.Rank(in)

	require.NoError(t, err)
	assert.Equal(t, "B.TO", in[0].Symbol)
	assert.Zero(t, in[0].Score)
	assert.Zero(t, in[1].Score)
}

func TestRank_SectorCap(t *testing.T) {
	r := NewRanker(RankConfig{
		NumPicks:        5,
		SectorDiversity: true,
		MaxPerSector:    2,
	}, testLogger())

	// Three technology names outscore the energy name; the cap drops
	// the third tech and the energy name moves up without reordering.
	t1 := momentum("T1.TO", "Technology", 0.50)
	t2 := momentum("T2.TO", "Technology", 0.40)
	t3 := momentum("T3.TO", "Technology", 0.30)
	e1 := momentum("E1.TO", "Energy", 0.20)

	out, err := r.Rank([]contracts.SecurityMetrics{t1, t2, t3, e1})

	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "T1.TO", out[0].Symbol)
	assert.Equal(t, "T2.TO", out[1].Symbol)
	assert.Equal(t, "E1.TO", out[2].Symbol)
}

func TestRank_SectorCapDisabled(t *testing.T) {
	r := NewRanker(RankConfig{
		NumPicks:        5,
		SectorDiversity: false,
		MaxPerSector:    2,
	}, testLogger())

	t1 := momentum("T1.TO", "Technology", 0.50)
	t2 := momentum("T2.TO", "Technology", 0.40)
	t3 := momentum("T3.TO", "Technology", 0.30)

	out, err := r.Rank([]contracts.SecurityMetrics{t1, t2, t3})

	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestRank_TruncatesToNumPicks(t *testing.T) {
	r := NewRanker(RankConfig{NumPicks: 2}, testLogger())

	in := []contracts.SecurityMetrics{
		momentum("A.TO", "Energy", 0.30),
		momentum("B.TO", "Technology", 0.20),
		momentum("C.TO", "Utilities", 0.10),
	}

	out, err := r.Rank(in)

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "A.TO", out[0].Symbol)
	assert.Equal(t, "B.TO", out[1].Symbol)
}

func TestRank_FewerCandidatesThanPicks(t *testing.T) {
	r := NewRanker(RankConfig{NumPicks: 7}, testLogger())

	out, err := r.Rank([]contracts.SecurityMetrics{metric("ONLY.TO", "Energy", false)})

	require.NoError(t, err)
	assert.Len(t, out, 1)
}
