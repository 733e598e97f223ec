package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yourorg/sity/internal/domain"
	"github.com/yourorg/sity/internal/events"
	"github.com/yourorg/sity/internal/observability/metrics"
	"github.com/yourorg/sity/internal/observability/tracing"
	"github.com/yourorg/sity/internal/security/audit"
)

// RequestService handles riders asking for seats and drivers deciding
type RequestService struct {
	rides    domain.RideRepository
	requests domain.RideRequestRepository
	notifier notifier
	audit    *audit.Logger
	logger   *slog.Logger
}

// NewRequestService creates a new request service
func NewRequestService(
	rides domain.RideRepository,
	requests domain.RideRequestRepository,
	publisher events.Publisher,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *RequestService {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	return &RequestService{
		rides:    rides,
		requests: requests,
		notifier: newNotifier(publisher, logger),
		audit:    auditLog,
		logger:   logger,
	}
}

// CreateRequest records a pending request. Seats are only reserved when the
// driver accepts.
func (s *RequestService) CreateRequest(ctx context.Context, riderID, rideID string, seats int) (req *domain.RideRequest, err error) {
	ctx, span := tracing.Start(ctx, "requests.create", attribute.String("ride_id", rideID))
	defer func() {
		tracing.End(span, err)
		metrics.ObserveRequest("create", result(err))
	}()

	if seats < 1 {
		return nil, domain.NewValidationError("Seats requested must be at least 1")
	}
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != domain.RideActive {
		return nil, fmt.Errorf("ride %s is %s: %w", rideID, ride.Status, domain.ErrInvalidTransition)
	}
	if ride.DriverID == riderID {
		return nil, domain.NewValidationError("You cannot request a seat on your own ride")
	}
	if seats > ride.AvailableSeats {
		return nil, fmt.Errorf("ride %s has %d seats: %w", rideID, ride.AvailableSeats, domain.ErrInsufficientSeats)
	}

	req = &domain.RideRequest{RideID: rideID, RiderID: riderID, SeatsRequested: seats}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create ride request: %w", err)
	}

	s.audit.LogRequest(ctx, riderID, "create_request", req.ID, "success", "")
	s.notifier.publish(ctx, events.Event{
		Type: events.RequestCreated, RideID: rideID, RequestID: req.ID, ActorID: riderID, Data: req,
	})
	return req, nil
}

// AcceptRequest reserves the requested seats and marks the request accepted.
// Seats are taken first so a failed reservation never leaves an accepted
// request behind; if the request was decided concurrently the seats go back.
func (s *RequestService) AcceptRequest(ctx context.Context, driverID, requestID string) (req *domain.RideRequest, err error) {
	ctx, span := tracing.Start(ctx, "requests.accept", attribute.String("request_id", requestID))
	defer func() {
		tracing.End(span, err)
		metrics.ObserveRequest("accept", result(err))
	}()

	req, _, err = s.ownedRequest(ctx, driverID, requestID)
	if err != nil {
		return nil, err
	}
	if err := req.Status.CanTransition(domain.RequestAccepted); err != nil {
		return nil, err
	}

	if _, err := s.rides.ReserveSeats(ctx, req.RideID, req.SeatsRequested); err != nil {
		s.audit.LogRequest(ctx, driverID, "accept_request", requestID, "failure", err.Error())
		return nil, err
	}

	accepted, err := s.requests.Transition(ctx, requestID, domain.RequestPending, domain.RequestAccepted)
	if err != nil {
		if _, relErr := s.rides.ReleaseSeats(context.WithoutCancel(ctx), req.RideID, req.SeatsRequested); relErr != nil {
			s.logger.Error("failed to release seats after losing accept race",
				slog.String("ride_id", req.RideID),
				slog.String("request_id", requestID),
				slog.Int("seats", req.SeatsRequested),
				slog.String("error", relErr.Error()),
			)
		}
		s.audit.LogRequest(ctx, driverID, "accept_request", requestID, "failure", err.Error())
		return nil, err
	}

	s.audit.LogRequest(ctx, driverID, "accept_request", requestID, "success", "")
	s.notifier.publish(ctx, events.Event{
		Type: events.RequestAccepted, RideID: accepted.RideID, RequestID: requestID, ActorID: driverID, Data: accepted,
	})
	return accepted, nil
}

// RejectRequest marks a pending request rejected
func (s *RequestService) RejectRequest(ctx context.Context, driverID, requestID string) (req *domain.RideRequest, err error) {
	ctx, span := tracing.Start(ctx, "requests.reject", attribute.String("request_id", requestID))
	defer func() {
		tracing.End(span, err)
		metrics.ObserveRequest("reject", result(err))
	}()

	if _, _, err = s.ownedRequest(ctx, driverID, requestID); err != nil {
		return nil, err
	}
	rejected, err := s.requests.Transition(ctx, requestID, domain.RequestPending, domain.RequestRejected)
	if err != nil {
		s.audit.LogRequest(ctx, driverID, "reject_request", requestID, "failure", err.Error())
		return nil, err
	}

	s.audit.LogRequest(ctx, driverID, "reject_request", requestID, "success", "")
	s.notifier.publish(ctx, events.Event{
		Type: events.RequestRejected, RideID: rejected.RideID, RequestID: requestID, ActorID: driverID, Data: rejected,
	})
	return rejected, nil
}

// ListRequests returns the requests for a ride; only its driver may look
func (s *RequestService) ListRequests(ctx context.Context, driverID, rideID string) ([]*domain.RideRequest, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != driverID {
		s.audit.LogDenied(ctx, driverID, "list requests of ride "+rideID)
		return nil, fmt.Errorf("list requests of ride %s: %w", rideID, domain.ErrForbidden)
	}
	return s.requests.ListForRide(ctx, rideID)
}

func (s *RequestService) ownedRequest(ctx context.Context, driverID, requestID string) (*domain.RideRequest, *domain.Ride, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	ride, err := s.rides.GetByID(ctx, req.RideID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("ride request points at a missing ride",
				slog.String("request_id", requestID),
				slog.String("ride_id", req.RideID),
			)
		}
		return nil, nil, err
	}
	if ride.DriverID != driverID {
		s.audit.LogDenied(ctx, driverID, "decide request "+requestID)
		return nil, nil, fmt.Errorf("request %s: %w", requestID, domain.ErrForbidden)
	}
	return req, ride, nil
}
