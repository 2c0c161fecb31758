// Package journal persists run reports to PostgreSQL so past rebalances
// can be inspected from the CLI and the status API. The full report is
// stored as JSONB next to a few indexed columns for listing queries.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
)

const defaultRecentLimit = 20

// Statements run one at a time: pgx's extended protocol rejects
// multi-statement strings.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS bot_runs (
		run_id      TEXT PRIMARY KEY,
		mode        TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		account_id  TEXT NOT NULL DEFAULT '',
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		error       TEXT NOT NULL DEFAULT '',
		report      JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bot_runs_started_at ON bot_runs (started_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_bot_runs_outcome ON bot_runs (outcome)`,
}

// Journal is a PostgreSQL-backed store of run reports.
type Journal struct {
	pool *pgxpool.Pool
}

// New creates a journal on top of an existing connection pool.
func New(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool}
}

// Migrate creates the journal schema if it does not exist yet.
func (j *Journal) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := j.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate run journal: %w", err)
		}
	}
	return nil
}

// SaveRun upserts a finished run. Saving the same run ID twice replaces
// the stored report, so retried runs never duplicate rows.
func (j *Journal) SaveRun(ctx context.Context, report *contracts.RunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}

	query := `
		INSERT INTO bot_runs (
			run_id, mode, outcome, account_id,
			started_at, finished_at, duration_ms, error, report
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE SET
			mode = EXCLUDED.mode,
			outcome = EXCLUDED.outcome,
			account_id = EXCLUDED.account_id,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			duration_ms = EXCLUDED.duration_ms,
			error = EXCLUDED.error,
			report = EXCLUDED.report
	`

	_, err = j.pool.Exec(ctx, query,
		report.RunID,
		string(report.Mode),
		string(report.Outcome),
		report.AccountID,
		report.StartedAt,
		report.FinishedAt,
		report.Duration().Milliseconds(),
		report.Error,
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", report.RunID, err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first. A limit of zero
// or less falls back to a sensible default.
func (j *Journal) RecentRuns(ctx context.Context, limit int) ([]contracts.RunReport, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	query := `
		SELECT report
		FROM bot_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := j.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]contracts.RunReport, 0, limit)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		var report contracts.RunReport
		if err := json.Unmarshal(raw, &report); err != nil {
			return nil, fmt.Errorf("failed to decode run report: %w", err)
		}
		runs = append(runs, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// LastRun returns the most recent run, or nil when the journal is empty.
func (j *Journal) LastRun(ctx context.Context) (*contracts.RunReport, error) {
	query := `
		SELECT report
		FROM bot_runs
		ORDER BY started_at DESC
		LIMIT 1
	`

	var raw []byte
	err := j.pool.QueryRow(ctx, query).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last run: %w", err)
	}

	var report contracts.RunReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("failed to decode run report: %w", err)
	}
	return &report, nil
}

// RunByID returns a single run, or nil when no run has that ID.
func (j *Journal) RunByID(ctx context.Context, runID string) (*contracts.RunReport, error) {
	query := `
		SELECT report
		FROM bot_runs
		WHERE run_id = $1
	`

	var raw []byte
	err := j.pool.QueryRow(ctx, query, runID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}

	var report contracts.RunReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("failed to decode run report: %w", err)
	}
	return &report, nil
}

// PruneOlderThan deletes runs that finished more than keepDays days ago
// and reports how many rows went away.
func (j *Journal) PruneOlderThan(ctx context.Context, keepDays int) (int64, error) {
	query := `
		DELETE FROM bot_runs
		WHERE finished_at < NOW() - ($1 * INTERVAL '1 day')
	`

	tag, err := j.pool.Exec(ctx, query, keepDays)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// OutcomeCounts returns how many stored runs finished with each outcome.
func (j *Journal) OutcomeCounts(ctx context.Context) (map[contracts.RunOutcome]int, error) {
	query := `
		SELECT outcome, COUNT(*)
		FROM bot_runs
		GROUP BY outcome
	`

	rows, err := j.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	defer rows.Close()

	counts := make(map[contracts.RunOutcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		counts[contracts.RunOutcome(outcome)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcome counts: %w", err)
	}

	return counts, nil
}
