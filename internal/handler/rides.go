package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/sity/internal/domain"
	"github.com/yourorg/sity/internal/security/middleware"
	"github.com/yourorg/sity/internal/service"
)

// RideHandler handles ride offers
type RideHandler struct {
	rides  *service.RideService
	logger *slog.Logger
}

// NewRideHandler creates a new ride handler
func NewRideHandler(rides *service.RideService, logger *slog.Logger) *RideHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RideHandler{rides: rides, logger: logger}
}

// RideResponse wraps one ride; Success is set on writes
type RideResponse struct {
	Success bool         `json:"success,omitempty"`
	Ride    *domain.Ride `json:"ride"`
}

// RideListResponse wraps the active ride list
type RideListResponse struct {
	Rides []*domain.Ride `json:"rides"`
}

// DriverRidesResponse lists the rides a driver has offered
type DriverRidesResponse struct {
	RideIDs []string `json:"ride_ids"`
}

// Create handles POST {prefix}/rides. The driver is the authenticated user.
func (h *RideHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateRideInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.logger.Warn("failed to decode ride request", slog.String("error", err.Error()))
		writeErrorMessage(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	ride, err := h.rides.CreateRide(r.Context(), middleware.UserIDFromContext(r.Context()), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, RideResponse{Success: true, Ride: ride})
}

// List handles GET {prefix}/rides
func (h *RideHandler) List(w http.ResponseWriter, r *http.Request) {
	rides, err := h.rides.ListActiveRides(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if rides == nil {
		rides = []*domain.Ride{}
	}
	writeJSON(w, h.logger, http.StatusOK, RideListResponse{Rides: rides})
}

// Get handles GET {prefix}/rides/{id}
func (h *RideHandler) Get(w http.ResponseWriter, r *http.Request) {
	ride, err := h.rides.GetRide(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, RideResponse{Ride: ride})
}

// ListForDriver handles GET {prefix}/drivers/{id}/rides
func (h *RideHandler) ListForDriver(w http.ResponseWriter, r *http.Request) {
	ids, err := h.rides.ListDriverRideIDs(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, DriverRidesResponse{RideIDs: ids})
}

// Complete handles POST {prefix}/rides/{id}/complete
func (h *RideHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ride, err := h.rides.CompleteRide(r.Context(), middleware.UserIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, RideResponse{Success: true, Ride: ride})
}

// Cancel handles POST {prefix}/rides/{id}/cancel
func (h *RideHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ride, err := h.rides.CancelRide(r.Context(), middleware.UserIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, RideResponse{Success: true, Ride: ride})
}
