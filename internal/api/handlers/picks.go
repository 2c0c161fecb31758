package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

// Picker previews the strategy's current selection; satisfied by the
// engine.
type Picker interface {
	Picks(ctx context.Context, limit int) ([]contracts.SecurityMetrics, error)
}

// PicksHandler serves the strategy preview endpoint.
type PicksHandler struct {
	picker Picker
	logger *logger.Logger
}

// NewPicksHandler creates a picks handler.
func NewPicksHandler(picker Picker, log *logger.Logger) *PicksHandler {
	return &PicksHandler{picker: picker, logger: log}
}

// GetPicks computes the current top picks without touching the
// brokerage account. An empty selection is a clean response, not an
// error.
// GET /api/picks?limit=N
func (h *PicksHandler) GetPicks(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 0)

	picks, err := h.picker.Picks(r.Context(), limit)
	if err != nil {
		if errors.Is(err, contracts.ErrNoCandidates) {
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"picks": []contracts.SecurityMetrics{},
				"count": 0,
			})
			return
		}
		h.logger.WithError(err).Error("Failed to compute picks")
		respondError(w, http.StatusInternalServerError, "Failed to compute picks")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"picks": picks,
		"count": len(picks),
	})
}
