package contracts

import (
	"errors"
	"testing"
	"time"
)

func TestAllStages_Order(t *testing.T) {
	stages := AllStages()
	if len(stages) != 8 {
		t.Fatalf("AllStages() returned %d stages, want 8", len(stages))
	}
	if stages[0] != StageAuth {
		t.Errorf("First stage = %s, want AUTH", stages[0])
	}
	if stages[len(stages)-1] != StageExecute {
		t.Errorf("Last stage = %s, want EXECUTE", stages[len(stages)-1])
	}
}

func TestRunReport_RecordStage(t *testing.T) {
	report := &RunReport{RunID: "run-1"}

	report.RecordStage(StageMetrics, true, 15, 12, 1500*time.Millisecond, nil)
	report.RecordStage(StageSelection, false, 12, 0, 2*time.Millisecond, errors.New("no eligible candidates"))

	if len(report.Stages) != 2 {
		t.Fatalf("Stages count = %d, want 2", len(report.Stages))
	}

	first := report.Stages[0]
	if first.Stage != StageMetrics || !first.Success || first.DurationMS != 1500 {
		t.Errorf("Unexpected first stage result: %+v", first)
	}

	second := report.Stages[1]
	if second.Success || second.Error != "no eligible candidates" {
		t.Errorf("Unexpected second stage result: %+v", second)
	}

	completed := report.CompletedStages()
	if len(completed) != 1 || completed[0] != "METRICS" {
		t.Errorf("CompletedStages() = %v, want [METRICS]", completed)
	}
}

func TestRunReport_Succeeded(t *testing.T) {
	for _, outcome := range []RunOutcome{RunCompleted, RunNoCandidates, RunEmptyPortfolio, RunNoTrades} {
		report := RunReport{Outcome: outcome}
		if !report.Succeeded() {
			t.Errorf("Succeeded() = false for outcome %s", outcome)
		}
	}

	failed := RunReport{Outcome: RunFailed}
	if failed.Succeeded() {
		t.Error("Succeeded() = true for failed run")
	}
}

func TestRunReport_Duration(t *testing.T) {
	start := time.Date(2025, 6, 2, 9, 35, 0, 0, time.UTC)
	report := RunReport{
		StartedAt:  start,
		FinishedAt: start.Add(42 * time.Second),
	}

	if got := report.Duration(); got != 42*time.Second {
		t.Errorf("Duration() = %v, want 42s", got)
	}
}
