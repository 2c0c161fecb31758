// Package jobs holds the scheduled job implementations.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/internal/engine"
	"github.com/guberm/wealthsimple-trading-bot/internal/scheduler"
	"github.com/guberm/wealthsimple-trading-bot/internal/settings"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

// Runner runs rebalance pipelines; satisfied by the engine.
type Runner interface {
	Run(ctx context.Context, config engine.RunConfig) (*contracts.RunReport, error)
}

// RebalanceJob runs the full pipeline at every configured market slot.
// The mode is fixed at wiring time: scheduled runs are live only when
// the daemon itself was started with live trading confirmed.
type RebalanceJob struct {
	engine    Runner
	mode      contracts.RunMode
	schedules []string
	logger    *logger.Logger
}

// NewRebalanceJob builds the job from the strategy schedule.
func NewRebalanceJob(eng Runner, mode contracts.RunMode, schedule settings.ScheduleSettings, log *logger.Logger) (*RebalanceJob, error) {
	specs, err := scheduler.CronSpecs(schedule.Days, schedule.RunTimes)
	if err != nil {
		return nil, fmt.Errorf("invalid rebalance schedule: %w", err)
	}

	return &RebalanceJob{
		engine:    eng,
		mode:      mode,
		schedules: specs,
		logger:    log,
	}, nil
}

// Name returns the job name
func (j *RebalanceJob) Name() string {
	return "rebalance"
}

// Schedules returns one cron slot per configured run time
func (j *RebalanceJob) Schedules() []string {
	return j.schedules
}

// Run executes one rebalance. A run already started elsewhere (the API
// trigger, or a slow previous slot) is not an error; the slot is
// skipped.
func (j *RebalanceJob) Run(ctx context.Context) error {
	report, err := j.engine.Run(ctx, engine.RunConfig{Mode: j.mode})
	if errors.Is(err, contracts.ErrRunInProgress) {
		j.logger.Warn("A run is already active, skipping this slot")
		return nil
	}
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":  report.RunID,
		"outcome": string(report.Outcome),
	}).Info("Scheduled rebalance finished")
	return nil
}
