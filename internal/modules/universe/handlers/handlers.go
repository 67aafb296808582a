// Package handlers provides HTTP handlers for the trading universe API.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/deepdiver/internal/modules/universe"
)

// Handler provides HTTP handlers for universe endpoints
type Handler struct {
	repo         *universe.Repository
	bootstrapper *universe.Bootstrapper
	log          zerolog.Logger
}

// NewHandler creates a new universe handler
func NewHandler(repo *universe.Repository, bootstrapper *universe.Bootstrapper, log zerolog.Logger) *Handler {
	return &Handler{
		repo:         repo,
		bootstrapper: bootstrapper,
		log:          log.With().Str("handler", "universe").Logger(),
	}
}

// RegisterRoutes registers universe routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/universe", func(r chi.Router) {
		r.Get("/", h.HandleQuery)
		r.Get("/stats", h.HandleStats)
		r.Post("/bootstrap", h.HandleBootstrap)
		r.Get("/{ticker}", h.HandleGet)
		r.Put("/{ticker}", h.HandleUpsert)
		r.Post("/{ticker}/deactivate", h.HandleDeactivate)
		r.Post("/{ticker}/reactivate", h.HandleReactivate)
	})
}

// HandleQuery returns stocks matching the query parameters, highest score first
// GET /api/universe?is_active=true&min_score=40&max_score=90&category=ai_chip&limit=50
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stocks, err := h.repo.Query(filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query universe")
		http.Error(w, "Failed to query universe", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"count":  len(stocks),
		"stocks": stocks,
	}
	if stocks == nil {
		response["stocks"] = []universe.Stock{}
	}

	writeJSON(w, h.log, response)
}

// HandleGet returns a single stock by ticker
// GET /api/universe/{ticker}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	stock, err := h.repo.Get(ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to fetch stock")
		http.Error(w, "Failed to fetch stock", http.StatusInternalServerError)
		return
	}
	if stock == nil {
		http.Error(w, "Stock not found", http.StatusNotFound)
		return
	}

	writeJSON(w, h.log, stock)
}

// HandleUpsert applies a partial update to a stock, creating it when absent
// PUT /api/universe/{ticker}
func (h *Handler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	ticker := strings.TrimSpace(chi.URLParam(r, "ticker"))
	if ticker == "" {
		http.Error(w, "Ticker is required", http.StatusBadRequest)
		return
	}

	var fields universe.Fields
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&fields); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.repo.Upsert(ticker, fields); err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to upsert stock")
		http.Error(w, "Failed to upsert stock", http.StatusInternalServerError)
		return
	}

	stock, err := h.repo.Get(ticker)
	if err != nil || stock == nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to fetch stock after upsert")
		http.Error(w, "Failed to fetch stock", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, stock)
}

// HandleDeactivate marks a stock inactive
// POST /api/universe/{ticker}/deactivate
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	if err := h.repo.Deactivate(ticker); err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to deactivate stock")
		http.Error(w, "Failed to deactivate stock", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, map[string]interface{}{"status": "deactivated", "ticker": strings.ToUpper(strings.TrimSpace(ticker))})
}

// HandleReactivate marks a stock active again
// POST /api/universe/{ticker}/reactivate
func (h *Handler) HandleReactivate(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	if err := h.repo.Reactivate(ticker); err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to reactivate stock")
		http.Error(w, "Failed to reactivate stock", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, map[string]interface{}{"status": "reactivated", "ticker": strings.ToUpper(strings.TrimSpace(ticker))})
}

// HandleStats returns score distribution statistics for the active universe
// GET /api/universe/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := universe.ComputeStats(h.repo)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to calculate universe stats")
		http.Error(w, "Failed to calculate stats", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, stats)
}

// HandleBootstrap seeds the universe from an uploaded CSV
// POST /api/universe/bootstrap with the CSV as the request body
func (h *Handler) HandleBootstrap(w http.ResponseWriter, r *http.Request) {
	result, err := h.bootstrapper.Import(r.Body)
	if err != nil {
		h.log.Error().Err(err).Msg("Bootstrap import failed")
		http.Error(w, "Bootstrap import failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.log.Info().Int("imported", result.Imported).Int("skipped", result.Skipped).Msg("Universe bootstrapped")
	writeJSON(w, h.log, result)
}

// parseFilter builds a universe filter from query parameters
func parseFilter(r *http.Request) (universe.Filter, error) {
	var filter universe.Filter
	q := r.URL.Query()

	if v := q.Get("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return filter, &filterError{"is_active", v}
		}
		filter.IsActive = &active
	}
	if v := q.Get("min_score"); v != "" {
		score, err := strconv.Atoi(v)
		if err != nil {
			return filter, &filterError{"min_score", v}
		}
		filter.MinScore = &score
	}
	if v := q.Get("max_score"); v != "" {
		score, err := strconv.Atoi(v)
		if err != nil {
			return filter, &filterError{"max_score", v}
		}
		filter.MaxScore = &score
	}
	if v := q.Get("category"); v != "" {
		category := v
		filter.Category = &category
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return filter, &filterError{"limit", v}
		}
		filter.Limit = limit
	}

	return filter, nil
}

type filterError struct {
	param string
	value string
}

func (e *filterError) Error() string {
	return "Invalid " + e.param + " value: " + e.value
}

// writeJSON encodes a JSON response
func writeJSON(w http.ResponseWriter, log zerolog.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
