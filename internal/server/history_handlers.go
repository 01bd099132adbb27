package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// handleHistoryList returns past scoring runs, newest first.
// GET /api/history?keyword=...&limit=50
func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("keyword")
	limit := queryInt(r, "limit", 50)

	entries, err := s.history.List(r.Context(), keyword, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list history")
		s.writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleHistoryTop ranks keywords by the score of their latest run.
// GET /api/history/top?limit=20
func (s *Server) handleHistoryTop(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)

	entries, err := s.history.Top(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to rank history")
		s.writeError(w, http.StatusInternalServerError, "failed to rank history")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleHistoryGet returns one stored score result.
// GET /api/history/{id}
func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := s.history.Get(r.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Str("id", id).Msg("Failed to load score result")
		s.writeError(w, http.StatusInternalServerError, "failed to load score result")
		return
	}
	if result == nil {
		s.writeError(w, http.StatusNotFound, "score result not found")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleHistorySnapshot returns the raw signal evidence behind one run.
// GET /api/history/{id}/snapshot
func (s *Server) handleHistorySnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snapshot, err := s.history.GetSnapshot(r.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Str("id", id).Msg("Failed to load snapshot")
		s.writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}
	if snapshot == nil {
		s.writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func queryInt(r *http.Request, name string, fallback int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}
