package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/sity/internal/domain"
	"github.com/yourorg/sity/internal/security/middleware"
	"github.com/yourorg/sity/internal/service"
)

// RequestHandler handles seat requests on rides
type RequestHandler struct {
	requests *service.RequestService
	logger   *slog.Logger
}

// NewRequestHandler creates a new request handler
func NewRequestHandler(requests *service.RequestService, logger *slog.Logger) *RequestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestHandler{requests: requests, logger: logger}
}

// CreateRequestBody is the rider's seat request
type CreateRequestBody struct {
	SeatsRequested int `json:"seats_requested"`
}

// RequestResponse wraps one ride request
type RequestResponse struct {
	Success bool                `json:"success,omitempty"`
	Request *domain.RideRequest `json:"request"`
}

// RequestListResponse wraps the requests of a ride
type RequestListResponse struct {
	Requests []*domain.RideRequest `json:"requests"`
}

// Create handles POST {prefix}/rides/{id}/requests. A missing seat count
// means one seat.
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	body := CreateRequestBody{SeatsRequested: 1}
	if err := decodeJSON(w, r, &body); err != nil {
		writeErrorMessage(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	req, err := h.requests.CreateRequest(r.Context(), middleware.UserIDFromContext(r.Context()), r.PathValue("id"), body.SeatsRequested)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, RequestResponse{Success: true, Request: req})
}

// List handles GET {prefix}/rides/{id}/requests
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.requests.ListRequests(r.Context(), middleware.UserIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if reqs == nil {
		reqs = []*domain.RideRequest{}
	}
	writeJSON(w, h.logger, http.StatusOK, RequestListResponse{Requests: reqs})
}

// Accept handles POST {prefix}/requests/{id}/accept
func (h *RequestHandler) Accept(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.AcceptRequest(r.Context(), middleware.UserIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, RequestResponse{Success: true, Request: req})
}

// Reject handles POST {prefix}/requests/{id}/reject
func (h *RequestHandler) Reject(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.RejectRequest(r.Context(), middleware.UserIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, RequestResponse{Success: true, Request: req})
}
