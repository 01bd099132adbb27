// Package handlers exposes scoring and expansion over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/nichescout/nichescout/internal/expansion"
	"github.com/nichescout/nichescout/internal/opportunity"
	"github.com/nichescout/nichescout/internal/signals"
)

// batchKeywordCap bounds one batch request; bigger batches belong in
// several calls so a single request cannot hold the governor for minutes.
const batchKeywordCap = 50

// Handlers serves the scoring and expansion endpoints.
type Handlers struct {
	service *opportunity.Service
	engine  *expansion.Engine
	log     zerolog.Logger
}

// New creates the opportunity API handlers.
func New(service *opportunity.Service, engine *expansion.Engine, log zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		engine:  engine,
		log:     log.With().Str("component", "opportunity_handlers").Logger(),
	}
}

// Routes mounts the opportunity endpoints on a router.
func (h *Handlers) Routes(r chi.Router) {
	r.Post("/score", h.handleScore)
	r.Post("/score/batch", h.handleScoreBatch)
	r.Get("/expand", h.handleExpand)
	r.Get("/expand/stream", h.handleExpandStream)
	r.Get("/keywords/{keyword}/trigger", h.handleTriggerLength)
}

type scoreRequest struct {
	Keyword  string `json:"keyword"`
	Category string `json:"category"`
	Country  string `json:"country"`
}

// handleScore runs one scoring call.
// POST /api/score
func (h *Handlers) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Keyword) == "" {
		h.writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}

	result, err := h.service.Score(r.Context(), req.Keyword, req.Category, req.Country)
	if err != nil {
		h.log.Error().Err(err).Str("keyword", req.Keyword).Msg("Scoring failed")
		h.writeError(w, http.StatusInternalServerError, "scoring failed")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

type batchRequest struct {
	Keywords []string `json:"keywords"`
	Category string   `json:"category"`
	Country  string   `json:"country"`
}

type batchResponse struct {
	Results []*opportunity.ScoreResult `json:"results"`
	Scored  int                        `json:"scored"`
	Skipped int                        `json:"skipped"`
}

// handleScoreBatch scores keywords sequentially with the politeness delay.
// POST /api/score/batch
func (h *Handlers) handleScoreBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Keywords) == 0 {
		h.writeError(w, http.StatusBadRequest, "keywords are required")
		return
	}
	if len(req.Keywords) > batchKeywordCap {
		h.writeError(w, http.StatusBadRequest, "too many keywords in one batch")
		return
	}

	results, err := h.service.ScoreBatch(r.Context(), req.Keywords, req.Category, req.Country)
	if err != nil {
		// Cancellation mid-batch still returns the completed portion.
		h.log.Warn().Err(err).Int("completed", len(results)).Msg("Batch interrupted")
	}
	h.writeJSON(w, http.StatusOK, batchResponse{
		Results: results,
		Scored:  len(results),
		Skipped: len(req.Keywords) - len(results),
	})
}

type expandResponse struct {
	Seed    string                    `json:"seed"`
	Country string                    `json:"country"`
	Terms   []signals.AutosuggestHint `json:"terms"`
}

// handleExpand runs a full expansion and returns the terms in bulk.
// GET /api/expand?seed=...&country=us
func (h *Handlers) handleExpand(w http.ResponseWriter, r *http.Request) {
	seed := r.URL.Query().Get("seed")
	if strings.TrimSpace(seed) == "" {
		h.writeError(w, http.StatusBadRequest, "seed is required")
		return
	}
	country := countryOrDefault(r)

	terms, err := h.engine.Expand(r.Context(), seed, country, nil)
	if err != nil {
		h.log.Error().Err(err).Str("seed", seed).Msg("Expansion failed")
		h.writeError(w, http.StatusInternalServerError, "expansion failed")
		return
	}
	h.writeJSON(w, http.StatusOK, expandResponse{Seed: seed, Country: country, Terms: terms})
}

type streamMessage struct {
	Type  string                   `json:"type"` // "term" or "done"
	Term  *signals.AutosuggestHint `json:"term,omitempty"`
	Total int                      `json:"total,omitempty"`
}

// handleExpandStream streams discovered terms over a websocket as the
// expansion runs, ending with a "done" message carrying the total.
// GET /api/expand/stream?seed=...&country=us
func (h *Handlers) handleExpandStream(w http.ResponseWriter, r *http.Request) {
	seed := r.URL.Query().Get("seed")
	if strings.TrimSpace(seed) == "" {
		h.writeError(w, http.StatusBadRequest, "seed is required")
		return
	}
	country := countryOrDefault(r)

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "expansion aborted")

	ctx := r.Context()
	terms, err := h.engine.Expand(ctx, seed, country, func(hint signals.AutosuggestHint) {
		if writeErr := wsjson.Write(ctx, conn, streamMessage{Type: "term", Term: &hint}); writeErr != nil {
			h.log.Debug().Err(writeErr).Msg("Stream write failed, client likely gone")
		}
	})
	if err != nil {
		conn.Close(websocket.StatusInternalError, "expansion failed")
		return
	}

	if err := wsjson.Write(ctx, conn, streamMessage{Type: "done", Total: len(terms)}); err == nil {
		conn.Close(websocket.StatusNormalClosure, "")
	}
}

type triggerResponse struct {
	Keyword      string `json:"keyword"`
	Country      string `json:"country"`
	TriggerChars int    `json:"trigger_chars"`
	Triggered    bool   `json:"triggered"`
}

// handleTriggerLength resolves how short a prefix makes a keyword surface
// in the suggestion list.
// GET /api/keywords/{keyword}/trigger?country=us
func (h *Handlers) handleTriggerLength(w http.ResponseWriter, r *http.Request) {
	keyword := chi.URLParam(r, "keyword")
	if strings.TrimSpace(keyword) == "" {
		h.writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}
	country := countryOrDefault(r)

	n, err := h.engine.ResolveTriggerLength(r.Context(), keyword, country)
	if err != nil {
		h.log.Error().Err(err).Str("keyword", keyword).Msg("Trigger resolution failed")
		h.writeError(w, http.StatusInternalServerError, "trigger resolution failed")
		return
	}
	h.writeJSON(w, http.StatusOK, triggerResponse{
		Keyword:      keyword,
		Country:      country,
		TriggerChars: n,
		Triggered:    n > 0,
	})
}

func countryOrDefault(r *http.Request) string {
	if c := r.URL.Query().Get("country"); c != "" {
		return c
	}
	return "us"
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
