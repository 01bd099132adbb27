package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nichescout/nichescout/internal/clientdata"
)

// handleCacheSweep removes expired rows from every cache table.
// POST /api/cache/sweep
func (s *Server) handleCacheSweep(w http.ResponseWriter, _ *http.Request) {
	removed, err := s.cache.SweepAllExpired()
	if err != nil {
		s.log.Error().Err(err).Msg("Cache sweep failed")
		s.writeError(w, http.StatusInternalServerError, "cache sweep failed")
		return
	}

	var total int64
	for _, n := range removed {
		total += n
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"removed": removed,
		"total":   total,
		"status":  "swept",
	})
}

// handleCacheInvalidate drops every row of one cache table, forcing a
// refetch on the next request for that source.
// DELETE /api/cache/{table}
func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	if err := s.cache.InvalidateAll(table); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Info().Str("table", table).Msg("Cache table invalidated")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"table":  table,
		"status": "invalidated",
		"tables": clientdata.AllTables,
	})
}
