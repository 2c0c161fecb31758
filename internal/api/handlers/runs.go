package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// RunStore reads journaled runs; satisfied by the journal.
type RunStore interface {
	RecentRuns(ctx context.Context, limit int) ([]contracts.RunReport, error)
	RunByID(ctx context.Context, runID string) (*contracts.RunReport, error)
	LastRun(ctx context.Context) (*contracts.RunReport, error)
	OutcomeCounts(ctx context.Context) (map[contracts.RunOutcome]int, error)
}

// RunStarter launches background runs; satisfied by the engine.
type RunStarter interface {
	StartRun(mode contracts.RunMode) (string, error)
}

// RunsHandler serves run history and the manual run trigger. store may
// be nil when the journal is disabled; the history endpoints then
// answer 503.
type RunsHandler struct {
	store   RunStore
	starter RunStarter
	logger  *logger.Logger
}

// NewRunsHandler creates a runs handler.
func NewRunsHandler(store RunStore, starter RunStarter, log *logger.Logger) *RunsHandler {
	return &RunsHandler{store: store, starter: starter, logger: log}
}

// RunSummary condenses a report for list responses
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Mode       string    `json:"mode"`
	Outcome    string    `json:"outcome"`
	AccountID  string    `json:"account_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
	Picks      int       `json:"picks"`
	Orders     int       `json:"orders"`
	Error      string    `json:"error,omitempty"`
}

func summarizeRun(report *contracts.RunReport) *RunSummary {
	return &RunSummary{
		RunID:      report.RunID,
		Mode:       string(report.Mode),
		Outcome:    string(report.Outcome),
		AccountID:  report.AccountID,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		DurationMS: report.Duration().Milliseconds(),
		Picks:      len(report.Picks),
		Orders:     len(report.Sells) + len(report.Buys),
		Error:      report.Error,
	}
}

// ListRuns returns recent runs, newest first
// GET /api/runs?limit=N
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "Run journal is not configured")
		return
	}

	limit := queryLimit(r, defaultListLimit)
	runs, err := h.store.RecentRuns(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}

	summaries := make([]*RunSummary, 0, len(runs))
	for i := range runs {
		summaries = append(summaries, summarizeRun(&runs[i]))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  summaries,
		"count": len(summaries),
	})
}

// GetRun returns one full run report
// GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "Run journal is not configured")
		return
	}

	runID := mux.Vars(r)["id"]
	report, err := h.store.RunByID(r.Context(), runID)
	if err != nil {
		h.logger.WithError(err).WithField("run_id", runID).Error("Failed to load run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// TriggerRequest is the manual trigger payload
type TriggerRequest struct {
	Mode string `json:"mode"` // dry_run only; live runs start from the CLI
}

// TriggerRun starts a background dry run and returns its ID for
// polling. Live mode needs the interactive CLI confirmation and is
// refused here.
// POST /api/run
func (h *RunsHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	switch req.Mode {
	case "", string(contracts.RunModeDryRun):
		// ok
	case string(contracts.RunModeLive):
		respondError(w, http.StatusForbidden, "Live runs can only be started from the CLI")
		return
	default:
		respondError(w, http.StatusBadRequest, "Invalid mode (valid: dry_run)")
		return
	}

	runID, err := h.starter.StartRun(contracts.RunModeDryRun)
	if errors.Is(err, contracts.ErrRunInProgress) {
		respondError(w, http.StatusConflict, "A run is already in progress")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to start run")
		respondError(w, http.StatusInternalServerError, "Failed to start run")
		return
	}

	h.logger.WithField("run_id", runID).Info("Run triggered via API")
	respondJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"status": "started",
	})
}

// queryLimit parses ?limit=N, clamped to the list ceiling.
func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
