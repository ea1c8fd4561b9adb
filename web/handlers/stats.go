// Package handlers provides HTTP handlers and middleware for the tether
// status surface: index statistics and a live resolution activity feed.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/scrypster/tether/internal/storage"
)

// StatsHandler serves index diagnostics.
type StatsHandler struct {
	store storage.Store
}

// NewStatsHandler creates a new StatsHandler instance.
func NewStatsHandler(store storage.Store) *StatsHandler {
	return &StatsHandler{store: store}
}

// GetStats handles GET /api/stats - returns entity, entry, and observation
// counts.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var stats storage.IndexStats
	var err error

	if stats.Entities, err = h.store.CountEntities(ctx); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count entities", err)
		return
	}
	if stats.Entries, err = h.store.CountEntries(ctx); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count entries", err)
		return
	}
	if stats.Observations, err = h.store.CountObservations(ctx); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count observations", err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("ERROR: failed to encode response: %v", err)
	}
}

// respondError writes a JSON error response and logs the underlying cause.
func respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		log.Printf("ERROR: %s: %v", message, err)
	}
	respondJSON(w, status, map[string]string{"error": message})
}
