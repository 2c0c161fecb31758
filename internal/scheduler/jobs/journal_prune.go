package jobs

import (
	"context"

	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

const defaultKeepDays = 90

// Pruner deletes old runs; satisfied by the journal.
type Pruner interface {
	PruneOlderThan(ctx context.Context, keepDays int) (int64, error)
}

// JournalPruneJob trims old run reports from the journal overnight.
type JournalPruneJob struct {
	journal  Pruner
	keepDays int
	logger   *logger.Logger
}

// NewJournalPruneJob creates the prune job. keepDays at or below zero
// falls back to the default retention.
func NewJournalPruneJob(j Pruner, keepDays int, log *logger.Logger) *JournalPruneJob {
	if keepDays <= 0 {
		keepDays = defaultKeepDays
	}
	return &JournalPruneJob{journal: j, keepDays: keepDays, logger: log}
}

// Name returns the job name
func (j *JournalPruneJob) Name() string {
	return "journal_prune"
}

// Schedules returns the cron slot (00:30 daily, outside market hours)
func (j *JournalPruneJob) Schedules() []string {
	return []string{"0 30 0 * * *"}
}

// Run deletes runs older than the retention window
func (j *JournalPruneJob) Run(ctx context.Context) error {
	deleted, err := j.journal.PruneOlderThan(ctx, j.keepDays)
	if err != nil {
		return err
	}

	if deleted > 0 {
		j.logger.WithFields(map[string]interface{}{
			"deleted":   deleted,
			"keep_days": j.keepDays,
		}).Info("Journal pruned")
	}
	return nil
}
