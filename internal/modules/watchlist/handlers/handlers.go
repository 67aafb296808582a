// Package handlers provides HTTP handlers for the watchlist API.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/deepdiver/internal/clients/finnhub"
	"github.com/aristath/deepdiver/internal/modules/watchlist"
)

// PriceSource serves the last observed live trades for watched tickers
type PriceSource interface {
	AllTrades() map[string]finnhub.Trade
	IsConnected() bool
}

// Handler provides HTTP handlers for watchlist endpoints
type Handler struct {
	repo   *watchlist.Repository
	policy *watchlist.Policy
	prices PriceSource // nil when the live stream is not configured
	log    zerolog.Logger
}

// NewHandler creates a new watchlist handler
func NewHandler(repo *watchlist.Repository, policy *watchlist.Policy, prices PriceSource, log zerolog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		policy: policy,
		prices: prices,
		log:    log.With().Str("handler", "watchlist").Logger(),
	}
}

// RegisterRoutes registers watchlist routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/watchlist", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/prices", h.HandleLivePrices)
		r.Post("/promote", h.HandleRunCycle)
		r.Post("/{ticker}", h.HandleAdd)
		r.Delete("/{ticker}", h.HandleRemove)
	})
}

// HandleList returns all watchlist entries
// GET /api/watchlist
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.repo.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list watchlist")
		http.Error(w, "Failed to list watchlist", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []watchlist.Item{}
	}

	writeJSON(w, h.log, map[string]interface{}{
		"count": len(items),
		"items": items,
	})
}

// LivePrice is the last observed trade for a watched ticker
type LivePrice struct {
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleLivePrices returns the last streamed trade for every watched
// ticker that has traded since the stream connected
// GET /api/watchlist/prices
func (h *Handler) HandleLivePrices(w http.ResponseWriter, r *http.Request) {
	if h.prices == nil {
		http.Error(w, "Live prices not configured", http.StatusServiceUnavailable)
		return
	}

	tickers, err := h.repo.Tickers()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list watchlist tickers")
		http.Error(w, "Failed to list watchlist tickers", http.StatusInternalServerError)
		return
	}

	trades := h.prices.AllTrades()
	prices := make(map[string]LivePrice)
	for _, ticker := range tickers {
		if trade, ok := trades[ticker]; ok {
			prices[ticker] = LivePrice{
				Price:     trade.Price,
				Volume:    trade.Volume,
				Timestamp: trade.Timestamp,
			}
		}
	}

	writeJSON(w, h.log, map[string]interface{}{
		"connected": h.prices.IsConnected(),
		"count":     len(prices),
		"prices":    prices,
	})
}

// HandleRunCycle runs the promotion policy over the whole universe
// POST /api/watchlist/promote
func (h *Handler) HandleRunCycle(w http.ResponseWriter, r *http.Request) {
	result, err := h.policy.RunCycle()
	if err != nil {
		h.log.Error().Err(err).Msg("Promotion cycle failed")
		http.Error(w, "Promotion cycle failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, result)
}

// HandleAdd manually places a ticker on the watchlist
// POST /api/watchlist/{ticker}
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ticker := strings.TrimSpace(chi.URLParam(r, "ticker"))
	if ticker == "" {
		http.Error(w, "Ticker is required", http.StatusBadRequest)
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	if body.Reason == "" {
		body.Reason = "manually added"
	}

	added, err := h.repo.Add(ticker, watchlist.StatusWatching, body.Reason)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to add to watchlist")
		http.Error(w, "Failed to add to watchlist", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, map[string]interface{}{
		"ticker": strings.ToUpper(ticker),
		"added":  added,
	})
}

// HandleRemove removes a ticker from the watchlist
// DELETE /api/watchlist/{ticker}
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	removed, err := h.repo.Remove(ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to remove from watchlist")
		http.Error(w, "Failed to remove from watchlist", http.StatusInternalServerError)
		return
	}
	if !removed {
		http.Error(w, "Ticker not on watchlist", http.StatusNotFound)
		return
	}

	writeJSON(w, h.log, map[string]interface{}{
		"ticker":  strings.ToUpper(strings.TrimSpace(ticker)),
		"removed": true,
	})
}

// writeJSON encodes a JSON response
func writeJSON(w http.ResponseWriter, log zerolog.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
