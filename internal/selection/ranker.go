package selection

import (
	"sort"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

// Composite factor weights. The five fractional ranks sum to at most 1.0
// before the ETF bonus.
const (
	weightReturn90D  = 0.30
	weightSharpe     = 0.25
	weightReturn30D  = 0.20
	weightVolume     = 0.15
	weightInverseVol = 0.10

	etfBonus = 0.10
)

// Ranker computes composite scores, orders candidates, and applies the
// sector diversity cap
type Ranker struct {
	config RankConfig
	logger *logger.Logger
}

// RankConfig parameterizes ranking and selection
type RankConfig struct {
	NumPicks        int
	PreferETFs      bool
	SectorDiversity bool
	MaxPerSector    int
}

// NewRanker creates a new ranker
func NewRanker(config RankConfig, log *logger.Logger) *Ranker {
	return &Ranker{
		config: config,
		logger: log,
	}
}

// Rank scores the screened candidates and returns the top picks.
// The input slice is never mutated; scored copies are returned.
// Fewer than NumPicks survivors is a valid result, never padded.
func (r *Ranker) Rank(candidates []contracts.SecurityMetrics) ([]contracts.SecurityMetrics, error) {
	if len(candidates) == 0 {
		return nil, contracts.ErrNoCandidates
	}

	scored := r.score(candidates)

	// Stable sort keeps equal scores in input order
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if r.config.SectorDiversity {
		scored = r.applySectorCap(scored)
	}

	if r.config.NumPicks > 0 && len(scored) > r.config.NumPicks {
		scored = scored[:r.config.NumPicks]
	}

	r.logger.WithFields(map[string]interface{}{
		"candidates": len(candidates),
		"picks":      len(scored),
		"top_symbol": scored[0].Symbol,
		"top_score":  scored[0].Score,
	}).Info("Ranking completed")

	return scored, nil
}

// score assigns the composite score to a copy of each candidate.
// Each factor contributes its fractional percentile rank; volatility
// enters inverted so calm symbols rank high.
func (r *Ranker) score(candidates []contracts.SecurityMetrics) []contracts.SecurityMetrics {
	n := len(candidates)

	ret90 := make([]float64, n)
	sharpe := make([]float64, n)
	ret30 := make([]float64, n)
	volume := make([]float64, n)
	invVol := make([]float64, n)
	for i := range candidates {
		ret90[i] = candidates[i].Return90D
		sharpe[i] = candidates[i].SharpeRatio
		ret30[i] = candidates[i].Return30D
		volume[i] = candidates[i].AvgVolume
		invVol[i] = -candidates[i].Volatility
	}

	ret90Ranks := percentileRanks(ret90)
	sharpeRanks := percentileRanks(sharpe)
	ret30Ranks := percentileRanks(ret30)
	volumeRanks := percentileRanks(volume)
	invVolRanks := percentileRanks(invVol)

	scored := make([]contracts.SecurityMetrics, n)
	for i, c := range candidates {
		composite := weightReturn90D*ret90Ranks[i] +
			weightSharpe*sharpeRanks[i] +
			weightReturn30D*ret30Ranks[i] +
			weightVolume*volumeRanks[i] +
			weightInverseVol*invVolRanks[i]

		if r.config.PreferETFs && c.IsETF {
			composite += etfBonus
		}

		c.Score = composite
		scored[i] = c
	}

	return scored
}

// applySectorCap walks the sorted candidates and keeps at most
// MaxPerSector per sector. Survivors are never reordered, only removed.
func (r *Ranker) applySectorCap(sorted []contracts.SecurityMetrics) []contracts.SecurityMetrics {
	counts := make(map[string]int)
	kept := make([]contracts.SecurityMetrics, 0, len(sorted))

	for i := range sorted {
		sector := sorted[i].Sector
		if counts[sector] < r.config.MaxPerSector {
			kept = append(kept, sorted[i])
			counts[sector]++
			continue
		}
		r.logger.WithFields(map[string]interface{}{
			"symbol": sorted[i].Symbol,
			"sector": sector,
			"kept":   counts[sector],
		}).Debug("Sector cap: candidate dropped")
	}

	return kept
}

// percentileRanks maps each value to rank_index / max(n-1, 1) under a
// stable ascending sort. Ties keep input order; the maximum value gets
// 1.0, the minimum 0.0.
func percentileRanks(values []float64) []float64 {
	n := len(values)

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return values[idx[a]] < values[idx[b]]
	})

	denom := float64(n - 1)
	if denom < 1 {
		denom = 1
	}

	ranks := make([]float64, n)
	for rankIdx, origIdx := range idx {
		ranks[origIdx] = float64(rankIdx) / denom
	}
	return ranks
}
