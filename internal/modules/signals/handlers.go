package signals

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler provides HTTP handlers for signal endpoints
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new signals handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "signals").Logger(),
	}
}

// RegisterRoutes registers signal routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/signals", func(r chi.Router) {
		r.Get("/{ticker}", h.HandleAnalyze)
	})
}

// HandleAnalyze returns the indicator snapshot for a ticker
// GET /api/signals/{ticker}
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	analysis, err := h.service.Analyze(r.Context(), ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Signal analysis failed")
		http.Error(w, "Signal analysis failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(analysis); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
