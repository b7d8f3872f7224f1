package api

import (
	"context"
	"net/http"

	"can-decoder/internal/models"
)

// HistoryStore reads back persisted signals and statistics
type HistoryStore interface {
	Signals(ctx context.Context, params models.QueryParams) ([]models.SignalRecord, error)
	LatestStats(ctx context.Context, iface string) (models.FrameStats, error)
}

// handleSignals retrieves stored signal values with optional filters
// GET /api/signals?start_time=2024-01-01T00:00:00Z&end_time=2024-01-02T00:00:00Z&can_id=0x7B&message=Engine&signal=Speed&limit=100&offset=0
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondWithError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}
	params, err := parseQueryParams(r)
	if err != nil {
		respondWithErr(w, err)
		return
	}
	records, err := s.history.Signals(r.Context(), params)
	if err != nil {
		respondWithErr(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, records)
}

// handleLatestStats returns the latest frame statistics snapshot
// GET /api/stats/latest?interface=can0
func (s *Server) handleLatestStats(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondWithError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}
	stats, err := s.history.LatestStats(r.Context(), r.URL.Query().Get("interface"))
	if err != nil {
		respondWithErr(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}
