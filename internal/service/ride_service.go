package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yourorg/sity/internal/domain"
	"github.com/yourorg/sity/internal/events"
	"github.com/yourorg/sity/internal/observability/metrics"
	"github.com/yourorg/sity/internal/observability/tracing"
	"github.com/yourorg/sity/internal/security/audit"
)

// CreateRideInput is the offer-a-ride form. Seats and price arrive as JSON
// numbers or numeric strings.
type CreateRideInput struct {
	Departure   string      `json:"departure" validate:"required"`
	Destination string      `json:"destination" validate:"required"`
	Date        string      `json:"date" validate:"required"`
	Time        string      `json:"time" validate:"required"`
	Seats       json.Number `json:"seats" validate:"required"`
	Price       json.Number `json:"price" validate:"required"`
	Description string      `json:"description"`
	AllowBidUp  bool        `json:"allow_bid_up"`
	AllowHopIn  bool        `json:"allow_hop_in"`
}

// RideService manages ride offers
type RideService struct {
	rides    domain.RideRepository
	users    domain.UserRepository
	notifier notifier
	audit    *audit.Logger
	logger   *slog.Logger
}

// NewRideService creates a new ride service
func NewRideService(
	rides domain.RideRepository,
	users domain.UserRepository,
	publisher events.Publisher,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *RideService {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	return &RideService{
		rides:    rides,
		users:    users,
		notifier: newNotifier(publisher, logger),
		audit:    auditLog,
		logger:   logger,
	}
}

// CreateRide validates the form and stores a new active ride for driverID
func (s *RideService) CreateRide(ctx context.Context, driverID string, in CreateRideInput) (ride *domain.Ride, err error) {
	ctx, span := tracing.Start(ctx, "rides.create", attribute.String("driver_id", driverID))
	defer func() {
		tracing.End(span, err)
		metrics.ObserveRide("create", result(err))
	}()

	ride, err = parseRide(driverID, in)
	if err != nil {
		return nil, err
	}
	if err := s.rides.Create(ctx, ride); err != nil {
		s.audit.LogRide(ctx, driverID, "create_ride", "", "failure", err.Error())
		return nil, fmt.Errorf("failed to create ride: %w", err)
	}

	s.logger.Info("ride created",
		slog.String("ride_id", ride.ID),
		slog.String("driver_id", driverID),
		slog.Int("seats", ride.AvailableSeats),
	)
	s.audit.LogRide(ctx, driverID, "create_ride", ride.ID, "success", "")
	s.notifier.publish(ctx, events.Event{Type: events.RideCreated, RideID: ride.ID, ActorID: driverID, Data: ride})
	return ride, nil
}

func parseRide(driverID string, in CreateRideInput) (*domain.Ride, error) {
	in.Departure = strings.TrimSpace(in.Departure)
	in.Destination = strings.TrimSpace(in.Destination)
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
	if err := validate.Struct(in); err != nil {
		return nil, domain.NewValidationError("Missing required fields")
	}

	date, err := time.Parse(time.DateOnly, in.Date)
	if err != nil {
		return nil, domain.NewValidationError("Date must be formatted YYYY-MM-DD")
	}
	clock, ok := canonicalClock(in.Time)
	if !ok {
		return nil, domain.NewValidationError("Time must be formatted HH:MM")
	}

	seats, err := strconv.Atoi(string(in.Seats))
	if err != nil || seats < 1 {
		return nil, domain.NewValidationError("Seats must be a whole number of at least 1")
	}
	price, err := strconv.ParseFloat(string(in.Price), 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return nil, domain.NewValidationError("Price must be a non-negative number")
	}

	return &domain.Ride{
		DriverID:          driverID,
		DepartureLocation: in.Departure,
		Destination:       in.Destination,
		DepartureTime:     date.Format(time.DateOnly) + "T" + clock,
		AvailableSeats:    seats,
		PricePerSeat:      math.Floor(price*100+0.5) / 100,
		Description:       in.Description,
		AllowBidUp:        in.AllowBidUp,
		AllowHopIn:        in.AllowHopIn,
		Status:            domain.RideActive,
	}, nil
}

// canonicalClock zero-pads the hour so departure times sort as strings.
// Seconds are kept when given.
func canonicalClock(v string) (string, bool) {
	for _, layout := range []string{"15:04", time.TimeOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(layout), true
		}
	}
	return "", false
}

// GetRide returns one ride in any status
func (s *RideService) GetRide(ctx context.Context, id string) (*domain.Ride, error) {
	return s.rides.GetByID(ctx, id)
}

// ListActiveRides returns active rides ordered by departure
func (s *RideService) ListActiveRides(ctx context.Context) ([]*domain.Ride, error) {
	rides, err := s.rides.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rides: %w", err)
	}
	return rides, nil
}

// ListDriverRideIDs returns the ids of every ride driverID has offered
func (s *RideService) ListDriverRideIDs(ctx context.Context, driverID string) ([]string, error) {
	ids, err := s.rides.ListIDsForDriver(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list driver rides: %w", err)
	}
	return ids, nil
}

// CompleteRide marks the ride completed and credits the driver
func (s *RideService) CompleteRide(ctx context.Context, driverID, rideID string) (*domain.Ride, error) {
	ride, err := s.changeStatus(ctx, driverID, rideID, domain.RideCompleted)
	if err != nil {
		return nil, err
	}
	if err := s.users.IncrementTotalRides(ctx, driverID); err != nil {
		level := slog.LevelError
		if errors.Is(err, domain.ErrNotFound) {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "failed to increment driver total rides",
			slog.String("driver_id", driverID),
			slog.String("ride_id", rideID),
			slog.String("error", err.Error()),
		)
	}
	return ride, nil
}

// CancelRide marks the ride cancelled
func (s *RideService) CancelRide(ctx context.Context, driverID, rideID string) (*domain.Ride, error) {
	return s.changeStatus(ctx, driverID, rideID, domain.RideCancelled)
}

func (s *RideService) changeStatus(ctx context.Context, driverID, rideID string, to domain.RideStatus) (ride *domain.Ride, err error) {
	op := "complete"
	eventType := events.RideCompleted
	if to == domain.RideCancelled {
		op = "cancel"
		eventType = events.RideCancelled
	}

	ctx, span := tracing.Start(ctx, "rides."+op, attribute.String("ride_id", rideID))
	defer func() {
		tracing.End(span, err)
		metrics.ObserveRide(op, result(err))
	}()

	current, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if current.DriverID != driverID {
		s.audit.LogDenied(ctx, driverID, "not the driver of ride "+rideID)
		return nil, fmt.Errorf("%s ride %s: %w", op, rideID, domain.ErrForbidden)
	}

	ride, err = s.rides.UpdateStatus(ctx, rideID, to)
	if err != nil {
		s.audit.LogRide(ctx, driverID, op+"_ride", rideID, "failure", err.Error())
		return nil, err
	}

	s.audit.LogRide(ctx, driverID, op+"_ride", rideID, "success", "")
	s.notifier.publish(ctx, events.Event{Type: eventType, RideID: rideID, ActorID: driverID, Data: ride})
	return ride, nil
}
