// Package api serves the bot's status and control HTTP surface.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guberm/wealthsimple-trading-bot/internal/api/handlers"
	"github.com/guberm/wealthsimple-trading-bot/internal/events"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

// NewRouter creates and configures the HTTP router. hub may be nil; the
// /ws endpoint is then not registered.
func NewRouter(status *handlers.StatusHandler, runs *handlers.RunsHandler, picks *handlers.PicksHandler, hub *events.Hub, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Operational endpoints
	r.HandleFunc("/health", status.Health).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	if hub != nil {
		r.HandleFunc("/ws", hub.HandleWS).Methods("GET")
	}

	// API v1
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", status.GetStatus).Methods("GET")
	api.HandleFunc("/runs", runs.ListRuns).Methods("GET")
	api.HandleFunc("/runs/{id}", runs.GetRun).Methods("GET")
	api.HandleFunc("/run", runs.TriggerRun).Methods("POST")
	api.HandleFunc("/picks", picks.GetPicks).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
