package market

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler provides HTTP handlers for the market clock
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new market handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "market").Logger(),
	}
}

// RegisterRoutes registers market routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/market/status", h.HandleStatus)
}

// HandleStatus returns the market clock status
// GET /api/market/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.service.StatusNow()); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
