package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/internal/engine"
	"github.com/guberm/wealthsimple-trading-bot/internal/settings"
	"github.com/guberm/wealthsimple-trading-bot/pkg/config"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

func testSchedule() settings.ScheduleSettings {
	return settings.ScheduleSettings{
		Timezone: "America/Toronto",
		Days:     []string{"mon", "tue", "wed", "thu", "fri"},
		RunTimes: []string{"09:35", "15:30"},
	}
}

type stubRunner struct {
	calls  int
	config engine.RunConfig
	report *contracts.RunReport
	err    error
}

func (s *stubRunner) Run(_ context.Context, config engine.RunConfig) (*contracts.RunReport, error) {
	s.calls++
	s.config = config
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

func TestNewRebalanceJobBuildsSchedules(t *testing.T) {
	job, err := NewRebalanceJob(&stubRunner{}, contracts.RunModeDryRun, testSchedule(), testLogger())
	require.NoError(t, err)

	assert.Equal(t, "rebalance", job.Name())
	assert.Equal(t, []string{
		"0 35 9 * * MON,TUE,WED,THU,FRI",
		"0 30 15 * * MON,TUE,WED,THU,FRI",
	}, job.Schedules())
}

func TestNewRebalanceJobRejectsBadSchedule(t *testing.T) {
	schedule := testSchedule()
	schedule.RunTimes = []string{"half past nine"}

	_, err := NewRebalanceJob(&stubRunner{}, contracts.RunModeDryRun, schedule, testLogger())
	assert.ErrorContains(t, err, "invalid rebalance schedule")
}

func TestRebalanceJobRunsConfiguredMode(t *testing.T) {
	runner := &stubRunner{report: &contracts.RunReport{
		RunID:      "run_x",
		Outcome:    contracts.RunCompleted,
		FinishedAt: time.Now(),
	}}
	job, err := NewRebalanceJob(runner, contracts.RunModeLive, testSchedule(), testLogger())
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, contracts.RunModeLive, runner.config.Mode)
	assert.Empty(t, runner.config.RunID, "run ID generation is the engine's job")
}

func TestRebalanceJobSkipsWhenRunActive(t *testing.T) {
	runner := &stubRunner{err: contracts.ErrRunInProgress}
	job, err := NewRebalanceJob(runner, contracts.RunModeDryRun, testSchedule(), testLogger())
	require.NoError(t, err)

	assert.NoError(t, job.Run(context.Background()), "busy engine is a skipped slot, not a job failure")
}

func TestRebalanceJobPropagatesFailure(t *testing.T) {
	runner := &stubRunner{err: errors.New("AUTH failed: bad credentials")}
	job, err := NewRebalanceJob(runner, contracts.RunModeDryRun, testSchedule(), testLogger())
	require.NoError(t, err)

	assert.ErrorContains(t, job.Run(context.Background()), "AUTH failed")
}

type stubPruner struct {
	keepDays int
	deleted  int64
	err      error
}

func (s *stubPruner) PruneOlderThan(_ context.Context, keepDays int) (int64, error) {
	s.keepDays = keepDays
	return s.deleted, s.err
}

func TestJournalPruneJob(t *testing.T) {
	pruner := &stubPruner{deleted: 5}
	job := NewJournalPruneJob(pruner, 30, testLogger())

	assert.Equal(t, "journal_prune", job.Name())
	assert.NotEmpty(t, job.Schedules())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 30, pruner.keepDays)
}

func TestJournalPruneJobDefaultsRetention(t *testing.T) {
	pruner := &stubPruner{}
	job := NewJournalPruneJob(pruner, 0, testLogger())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, defaultKeepDays, pruner.keepDays)
}

func TestJournalPruneJobPropagatesError(t *testing.T) {
	pruner := &stubPruner{err: errors.New("connection refused")}
	job := NewJournalPruneJob(pruner, 30, testLogger())

	assert.ErrorContains(t, job.Run(context.Background()), "connection refused")
}
