package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/yourorg/sity/internal/pricing"
)

// PriceHandler quotes trip prices
type PriceHandler struct {
	logger *slog.Logger
}

// NewPriceHandler creates a new price handler
func NewPriceHandler(logger *slog.Logger) *PriceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceHandler{logger: logger}
}

// QuoteResponse wraps a price quote
type QuoteResponse struct {
	Quote pricing.Quote `json:"quote"`
}

// Quote handles GET {prefix}/price?distance=&duration=&passengers=.
// Passengers defaults to 1.
func (h *PriceHandler) Quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	distance, errD := strconv.ParseFloat(q.Get("distance"), 64)
	duration, errT := strconv.ParseFloat(q.Get("duration"), 64)
	passengers := 1
	var errP error
	if v := q.Get("passengers"); v != "" {
		passengers, errP = strconv.Atoi(v)
	}
	if err := errors.Join(errD, errT, errP); err != nil {
		writeErrorMessage(w, h.logger, http.StatusBadRequest, "distance and duration must be numbers and passengers a whole number")
		return
	}

	quote, err := pricing.Estimate(distance, duration, passengers)
	if err != nil {
		writeErrorMessage(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, QuoteResponse{Quote: quote})
}
