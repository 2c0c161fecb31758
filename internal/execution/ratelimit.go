package execution

import (
	"context"
	"time"

	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

// Broker-imposed ceiling is 7 trades/hour; one slot stays in reserve so
// a manual trade through the app never trips the hard limit.
const (
	DefaultRateLimit  = 6
	DefaultRateWindow = time.Hour
)

// RateGate is a sliding-window admission gate over order submissions.
// One gate instance guards one executor; it is not safe for concurrent
// use by two runs.
type RateGate struct {
	limit  int
	window time.Duration
	stamps []time.Time // FIFO, oldest first
	logger *logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateGate creates a gate admitting at most limit submissions per window
func NewRateGate(limit int, window time.Duration, log *logger.Logger) *RateGate {
	return &RateGate{
		limit:  limit,
		window: window,
		logger: log,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Admit blocks until the window has capacity, then records a submission
// timestamp. Returns early only when ctx is cancelled; the slot is not
// consumed in that case.
func (g *RateGate) Admit(ctx context.Context) error {
	g.prune()
	for len(g.stamps) >= g.limit {
		oldest := g.stamps[0]
		wait := g.window - g.now().Sub(oldest) + time.Second
		if wait < time.Second {
			wait = time.Second
		}

		g.logger.WithFields(map[string]interface{}{
			"in_window": len(g.stamps),
			"limit":     g.limit,
			"wait":      wait.String(),
		}).Warn("Rate limit reached, waiting")

		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
		g.prune()
	}

	g.stamps = append(g.stamps, g.now())
	return nil
}

// CanProceed reports whether an admission would pass without waiting
func (g *RateGate) CanProceed() bool {
	g.prune()
	return len(g.stamps) < g.limit
}

// Remaining returns the number of submissions the window still allows
func (g *RateGate) Remaining() int {
	g.prune()
	if n := g.limit - len(g.stamps); n > 0 {
		return n
	}
	return 0
}

// prune evicts timestamps older than the window
func (g *RateGate) prune() {
	cutoff := g.now().Add(-g.window)
	for len(g.stamps) > 0 && g.stamps[0].Before(cutoff) {
		g.stamps = g.stamps[1:]
	}
}

// sleepCtx sleeps for d or until ctx is cancelled
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
