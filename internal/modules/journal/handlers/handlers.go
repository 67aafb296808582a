// Package handlers provides HTTP handlers for the decision journal API.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/deepdiver/internal/modules/journal"
)

// Handler provides HTTP handlers for journal endpoints
type Handler struct {
	repo *journal.Repository
	log  zerolog.Logger
}

// NewHandler creates a new journal handler
func NewHandler(repo *journal.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "journal").Logger(),
	}
}

// RegisterRoutes registers journal routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/journal", func(r chi.Router) {
		r.Get("/", h.HandleRecent)
		r.Get("/ticker/{ticker}", h.HandleByTicker)
		r.Get("/type/{type}", h.HandleByType)
	})
}

// HandleRecent returns the most recent journal entries
// GET /api/journal?limit=50
func (h *Handler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, "Invalid limit", http.StatusBadRequest)
		return
	}

	entries, err := h.repo.Recent(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to fetch journal entries")
		http.Error(w, "Failed to fetch journal entries", http.StatusInternalServerError)
		return
	}

	h.writeEntries(w, entries)
}

// HandleByTicker returns journal entries for a single ticker
// GET /api/journal/ticker/{ticker}
func (h *Handler) HandleByTicker(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, "Invalid limit", http.StatusBadRequest)
		return
	}

	ticker := chi.URLParam(r, "ticker")
	entries, err := h.repo.ByTicker(ticker, limit)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to fetch journal entries")
		http.Error(w, "Failed to fetch journal entries", http.StatusInternalServerError)
		return
	}

	h.writeEntries(w, entries)
}

// HandleByType returns journal entries of a single type
// GET /api/journal/type/{type}
func (h *Handler) HandleByType(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, "Invalid limit", http.StatusBadRequest)
		return
	}

	entryType := chi.URLParam(r, "type")
	entries, err := h.repo.ByType(entryType, limit)
	if err != nil {
		h.log.Error().Err(err).Str("type", entryType).Msg("Failed to fetch journal entries")
		http.Error(w, "Failed to fetch journal entries", http.StatusInternalServerError)
		return
	}

	h.writeEntries(w, entries)
}

func (h *Handler) writeEntries(w http.ResponseWriter, entries []journal.Entry) {
	if entries == nil {
		entries = []journal.Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"count":   len(entries),
		"entries": entries,
	}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil // repository default applies
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit < 0 {
		return 0, strconv.ErrSyntax
	}
	return limit, nil
}
