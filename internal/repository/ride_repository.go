package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/sity/internal/domain"
	"github.com/yourorg/sity/internal/observability/metrics"
	"github.com/yourorg/sity/pkg/kv"
)

const (
	ridePrefix        = "ride:"
	driverRidesPrefix = "driver_rides:"
)

func rideKey(id string) string              { return ridePrefix + id }
func driverRidesKey(driverID string) string { return driverRidesPrefix + driverID }

// RideRepository implements domain.RideRepository on a kv.Store. The
// driver_rides index is derived from ride records and can be rebuilt.
type RideRepository struct {
	store  kv.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRideRepository creates a new ride repository
func NewRideRepository(store kv.Store, logger *slog.Logger) *RideRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &RideRepository{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Create assigns an id, stores the ride and appends it to the driver index.
// Once the record is written the ride is live, so a failed index append is
// logged and left for the reconcile worker instead of failing the create.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	ride.ID = uuid.NewString()
	ride.CreatedAt = r.now().UTC()
	if ride.Status == "" {
		ride.Status = domain.RideActive
	}

	if err := kv.SetJSON(ctx, r.store, rideKey(ride.ID), ride); err != nil {
		return fmt.Errorf("failed to store ride: %w", err)
	}

	err := kv.UpdateJSON(ctx, r.store, driverRidesKey(ride.DriverID), func(ids *[]string, _ bool) error {
		if !slices.Contains(*ids, ride.ID) {
			*ids = append(*ids, ride.ID)
		}
		return nil
	})
	if err != nil {
		metrics.IncIndexFailures()
		r.logger.Error("failed to index ride for driver",
			slog.String("ride_id", ride.ID),
			slog.String("driver_id", ride.DriverID),
			slog.String("error", err.Error()),
		)
	}

	r.logger.Debug("ride saved", slog.String("ride_id", ride.ID))
	return nil
}

// GetByID retrieves a ride by ID
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	var ride domain.Ride
	if err := kv.GetJSON(ctx, r.store, rideKey(id), &ride); err != nil {
		return nil, r.notFound(err, id)
	}
	return &ride, nil
}

// ListActive returns active rides ordered by departure time, then creation
// time, then id.
func (r *RideRepository) ListActive(ctx context.Context) ([]*domain.Ride, error) {
	rides, err := r.listAll(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]*domain.Ride, 0, len(rides))
	for _, ride := range rides {
		if ride.Status == domain.RideActive {
			active = append(active, ride)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if a.DepartureTime != b.DepartureTime {
			return a.DepartureTime < b.DepartureTime
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return active, nil
}

// ListIDsForDriver reads the driver's ride index; an absent index is empty
func (r *RideRepository) ListIDsForDriver(ctx context.Context, driverID string) ([]string, error) {
	var ids []string
	err := kv.GetJSON(ctx, r.store, driverRidesKey(driverID), &ids)
	if errors.Is(err, kv.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read driver rides: %w", err)
	}
	return ids, nil
}

// UpdateStatus moves a ride to status `to`, enforcing the ride status machine
func (r *RideRepository) UpdateStatus(ctx context.Context, id string, to domain.RideStatus) (*domain.Ride, error) {
	return r.mutate(ctx, id, func(ride *domain.Ride) error {
		return ride.Status.CanTransition(to)
	}, func(ride *domain.Ride) {
		ride.Status = to
	})
}

// ReserveSeats decrements available seats. Nothing is written when the ride
// is not active or has fewer than seats left.
func (r *RideRepository) ReserveSeats(ctx context.Context, id string, seats int) (*domain.Ride, error) {
	if seats < 1 {
		return nil, domain.NewValidationError("seats must be at least 1")
	}
	return r.mutate(ctx, id, func(ride *domain.Ride) error {
		if ride.Status != domain.RideActive {
			return fmt.Errorf("ride is %s: %w", ride.Status, domain.ErrInvalidTransition)
		}
		if ride.AvailableSeats < seats {
			return fmt.Errorf("requested %d, %d left: %w", seats, ride.AvailableSeats, domain.ErrInsufficientSeats)
		}
		return nil
	}, func(ride *domain.Ride) {
		ride.AvailableSeats -= seats
	})
}

// ReleaseSeats gives seats back after a failed acceptance
func (r *RideRepository) ReleaseSeats(ctx context.Context, id string, seats int) (*domain.Ride, error) {
	if seats < 1 {
		return nil, domain.NewValidationError("seats must be at least 1")
	}
	return r.mutate(ctx, id, func(*domain.Ride) error { return nil }, func(ride *domain.Ride) {
		ride.AvailableSeats += seats
	})
}

// RebuildDriverIndex merges every ride id found by a ride: scan into its
// driver's index and returns the number of ids that were missing.
func (r *RideRepository) RebuildDriverIndex(ctx context.Context) (int, error) {
	rides, err := r.listAll(ctx)
	if err != nil {
		return 0, err
	}

	byDriver := make(map[string][]*domain.Ride)
	for _, ride := range rides {
		byDriver[ride.DriverID] = append(byDriver[ride.DriverID], ride)
	}

	repaired := 0
	for driverID, driverRides := range byDriver {
		sort.Slice(driverRides, func(i, j int) bool {
			return driverRides[i].CreatedAt.Before(driverRides[j].CreatedAt)
		})
		added := 0
		err := kv.UpdateJSON(ctx, r.store, driverRidesKey(driverID), func(ids *[]string, _ bool) error {
			added = 0
			for _, ride := range driverRides {
				if !slices.Contains(*ids, ride.ID) {
					*ids = append(*ids, ride.ID)
					added++
				}
			}
			return nil
		})
		if err != nil {
			return repaired, fmt.Errorf("failed to rebuild index for driver %s: %w", driverID, err)
		}
		repaired += added
	}
	return repaired, nil
}

func (r *RideRepository) listAll(ctx context.Context) ([]*domain.Ride, error) {
	rides, err := kv.ListJSON[*domain.Ride](ctx, r.store, ridePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list rides: %w", err)
	}
	return rides, nil
}

// mutate runs check then apply inside one atomic update of the ride record
func (r *RideRepository) mutate(ctx context.Context, id string, check func(*domain.Ride) error, apply func(*domain.Ride)) (*domain.Ride, error) {
	var updated domain.Ride
	err := kv.UpdateJSON(ctx, r.store, rideKey(id), func(ride *domain.Ride, exists bool) error {
		if !exists {
			return &domain.NotFoundError{Resource: "Ride", ID: id}
		}
		if err := check(ride); err != nil {
			return err
		}
		apply(ride)
		updated = *ride
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *RideRepository) notFound(err error, id string) error {
	if errors.Is(err, kv.ErrNotFound) {
		return &domain.NotFoundError{Resource: "Ride", ID: id}
	}
	return fmt.Errorf("failed to get ride: %w", err)
}
