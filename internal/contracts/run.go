package contracts

import "time"

// Rebalance pipeline flow:
//   AUTH → ACCOUNT → METRICS → SELECTION → RESOLVE → PLAN → ORDERS → EXECUTE

// Stage represents a pipeline stage
type Stage string

const (
	// StageAuth: broker login / token refresh
	StageAuth Stage = "AUTH"

	// StageAccount: account lookup, cash and positions snapshot
	StageAccount Stage = "ACCOUNT"

	// StageMetrics: per-symbol history fetch and factor computation
	StageMetrics Stage = "METRICS"

	// StageSelection: screen, rank, sector diversity, top-N cut
	StageSelection Stage = "SELECTION"

	// StageResolve: security ID and quote resolution for the picks
	StageResolve Stage = "RESOLVE"

	// StagePlan: equal-weight allocation targets and drift decisions
	StagePlan Stage = "PLAN"

	// StageOrders: limit order synthesis from actionable targets
	StageOrders Stage = "ORDERS"

	// StageExecute: rate-gated submission, live or simulated
	StageExecute Stage = "EXECUTE"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageAuth,
		StageAccount,
		StageMetrics,
		StageSelection,
		StageResolve,
		StagePlan,
		StageOrders,
		StageExecute,
	}
}

// StageResult records one stage execution for the run report
type StageResult struct {
	Stage       Stage  `json:"stage"`
	Success     bool   `json:"success"`
	InputCount  int    `json:"input_count"`
	OutputCount int    `json:"output_count"`
	DurationMS  int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
}

// RunMode distinguishes live submission from simulation
type RunMode string

const (
	RunModeLive   RunMode = "live"
	RunModeDryRun RunMode = "dry_run"
)

// RunOutcome classifies how a run ended. Empty-portfolio and no-pick
// runs are clean terminations, not failures.
type RunOutcome string

const (
	RunCompleted      RunOutcome = "completed"
	RunNoCandidates   RunOutcome = "no_candidates"
	RunEmptyPortfolio RunOutcome = "empty_portfolio"
	RunNoTrades       RunOutcome = "no_trades"
	RunFailed         RunOutcome = "failed"
)

// RunReport holds everything one pipeline run produced, consumed by the
// journal, the status API, and notifications
type RunReport struct {
	RunID      string     `json:"run_id"`
	Mode       RunMode    `json:"mode"`
	Outcome    RunOutcome `json:"outcome"`
	AccountID  string     `json:"account_id,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`

	Picks     []SecurityMetrics  `json:"picks,omitempty"`
	Summary   *PortfolioSummary  `json:"summary,omitempty"`
	Sells     []OrderInstruction `json:"sells,omitempty"`
	Buys      []OrderInstruction `json:"buys,omitempty"`
	Outcomes  []OrderOutcome     `json:"outcomes,omitempty"`
	Execution *ExecutionSummary  `json:"execution,omitempty"`

	Stages []StageResult `json:"stages"`
	Error  string        `json:"error,omitempty"`
}

// Duration returns the wall time of the run
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the run terminated cleanly
func (r *RunReport) Succeeded() bool {
	return r.Outcome != RunFailed
}

// CompletedStages lists the stages that ran to completion
func (r *RunReport) CompletedStages() []string {
	out := make([]string, 0, len(r.Stages))
	for i := range r.Stages {
		if r.Stages[i].Success {
			out = append(out, string(r.Stages[i].Stage))
		}
	}
	return out
}

// RecordStage appends a stage result
func (r *RunReport) RecordStage(stage Stage, success bool, in, out int, took time.Duration, err error) {
	sr := StageResult{
		Stage:       stage,
		Success:     success,
		InputCount:  in,
		OutputCount: out,
		DurationMS:  took.Milliseconds(),
	}
	if err != nil {
		sr.Error = err.Error()
	}
	r.Stages = append(r.Stages, sr)
}
