// Package handlers implements the status API endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/pkg/database"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

// Schedule exposes the scheduler state the status endpoint reports.
type Schedule interface {
	NextRuns(n int) []time.Time
	RunningJobs() []string
}

// EngineState exposes whether a run is active right now.
type EngineState interface {
	Busy() bool
}

// StatusHandler serves the health and status endpoints. Every
// dependency except the engine may be nil; the response then omits the
// matching section.
type StatusHandler struct {
	engine    EngineState
	store     RunStore
	schedule  Schedule
	db        *database.DB
	mode      string
	env       string
	version   string
	startedAt time.Time
	logger    *logger.Logger
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(engine EngineState, store RunStore, schedule Schedule, db *database.DB, mode, env, version string, log *logger.Logger) *StatusHandler {
	return &StatusHandler{
		engine:    engine,
		store:     store,
		schedule:  schedule,
		db:        db,
		mode:      mode,
		env:       env,
		version:   version,
		startedAt: time.Now(),
		logger:    log,
	}
}

// Health returns liveness plus a best-effort database probe
// GET /health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":  "ok",
		"service": "wstrader-api",
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, err := h.db.HealthCheck(ctx)
		switch {
		case err != nil:
			body["database"] = "unreachable"
		case status.Healthy:
			body["database"] = "healthy"
		default:
			body["database"] = "unhealthy"
		}
	}

	respondJSON(w, http.StatusOK, body)
}

// StatusResponse is the /api/status payload
type StatusResponse struct {
	Service       string                       `json:"service"`
	Env           string                       `json:"env"`
	Version       string                       `json:"version"`
	Mode          string                       `json:"mode"`
	StartedAt     time.Time                    `json:"started_at"`
	UptimeSeconds int64                        `json:"uptime_seconds"`
	RunActive     bool                         `json:"run_active"`
	RunningJobs   []string                     `json:"running_jobs,omitempty"`
	NextRuns      []time.Time                  `json:"next_runs,omitempty"`
	LastRun       *RunSummary                  `json:"last_run,omitempty"`
	Outcomes      map[contracts.RunOutcome]int `json:"outcomes,omitempty"`
}

// GetStatus returns the bot's operational snapshot
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := StatusResponse{
		Service:       "wstrader",
		Env:           h.env,
		Version:       h.version,
		Mode:          h.mode,
		StartedAt:     h.startedAt,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		RunActive:     h.engine.Busy(),
	}

	if h.schedule != nil {
		resp.RunningJobs = h.schedule.RunningJobs()
		resp.NextRuns = h.schedule.NextRuns(5)
	}

	if h.store != nil {
		last, err := h.store.LastRun(ctx)
		if err != nil {
			h.logger.WithError(err).Error("Failed to load last run")
		} else if last != nil {
			resp.LastRun = summarizeRun(last)
		}

		counts, err := h.store.OutcomeCounts(ctx)
		if err != nil {
			h.logger.WithError(err).Error("Failed to load outcome counts")
		} else {
			resp.Outcomes = counts
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
