// Package handlers provides HTTP handlers for the curator scan API.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/deepdiver/internal/modules/curator"
)

// TickerSource lists the tickers a full scan covers
type TickerSource interface {
	ActiveTickers() ([]string, error)
}

// Handler provides HTTP handlers for curator endpoints
type Handler struct {
	scanner *curator.Scanner
	batch   *curator.BatchScanner
	tickers TickerSource
	log     zerolog.Logger

	scanRunning atomic.Bool
}

// NewHandler creates a new curator handler
func NewHandler(scanner *curator.Scanner, batch *curator.BatchScanner, tickers TickerSource, log zerolog.Logger) *Handler {
	return &Handler{
		scanner: scanner,
		batch:   batch,
		tickers: tickers,
		log:     log.With().Str("handler", "curator").Logger(),
	}
}

// RegisterRoutes registers curator routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/curator", func(r chi.Router) {
		r.Post("/scan/{ticker}", h.HandleScanTicker)
		r.Post("/scan-all", h.HandleScanAll)
	})
}

// HandleScanTicker scans a single ticker synchronously
// POST /api/curator/scan/{ticker}
func (h *Handler) HandleScanTicker(w http.ResponseWriter, r *http.Request) {
	ticker := strings.TrimSpace(chi.URLParam(r, "ticker"))
	if ticker == "" {
		http.Error(w, "Ticker is required", http.StatusBadRequest)
		return
	}

	result, err := h.scanner.Scan(r.Context(), ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Scan failed")
		http.Error(w, "Scan failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.log, result)
}

// HandleScanAll starts a full-universe scan in the background.
// Only one full scan runs at a time.
// POST /api/curator/scan-all
func (h *Handler) HandleScanAll(w http.ResponseWriter, r *http.Request) {
	tickers, err := h.tickers.ActiveTickers()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load active tickers")
		http.Error(w, "Failed to load active tickers", http.StatusInternalServerError)
		return
	}

	if !h.scanRunning.CompareAndSwap(false, true) {
		http.Error(w, "A full scan is already running", http.StatusConflict)
		return
	}

	go func() {
		defer h.scanRunning.Store(false)

		result, err := h.batch.ScanAll(context.Background(), tickers)
		if err != nil {
			h.log.Error().Err(err).Msg("Full scan failed")
			return
		}
		h.log.Info().
			Int("scanned", result.Scanned).
			Int("failed", result.Failed).
			Int("ai_focused", result.AIFocused).
			Msg("Full scan completed")
	}()

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, h.log, map[string]interface{}{
		"status":  "started",
		"tickers": len(tickers),
	})
}

// writeJSON encodes a JSON response
func writeJSON(w http.ResponseWriter, log zerolog.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
