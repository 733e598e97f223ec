package domain

import (
	"context"
	"fmt"
	"time"
)

// RideStatus is the lifecycle state of a ride
type RideStatus string

const (
	RideActive    RideStatus = "active"
	RideCompleted RideStatus = "completed"
	RideCancelled RideStatus = "cancelled"
)

var rideTransitions = map[RideStatus][]RideStatus{
	RideActive: {RideCompleted, RideCancelled},
}

// CanTransition returns ErrInvalidTransition unless from -> to is allowed.
// Completed and cancelled are terminal.
func (from RideStatus) CanTransition(to RideStatus) error {
	for _, next := range rideTransitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("ride %s -> %s: %w", from, to, ErrInvalidTransition)
}

// Ride is a driver's offer of seats between two places at a scheduled time
type Ride struct {
	ID                string     `json:"id"`
	DriverID          string     `json:"driver_id"`
	DepartureLocation string     `json:"departure_location"`
	Destination       string     `json:"destination"`
	DepartureTime     string     `json:"departure_time"` // {date}T{time}
	AvailableSeats    int        `json:"available_seats"`
	PricePerSeat      float64    `json:"price_per_seat"`
	Description       string     `json:"description,omitempty"`
	AllowBidUp        bool       `json:"allow_bid_up"`
	AllowHopIn        bool       `json:"allow_hop_in"`
	Status            RideStatus `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
}

// RideRepository defines data access for rides and the per-driver index
type RideRepository interface {
	Create(ctx context.Context, ride *Ride) error
	GetByID(ctx context.Context, id string) (*Ride, error)
	ListActive(ctx context.Context) ([]*Ride, error)
	ListIDsForDriver(ctx context.Context, driverID string) ([]string, error)
	UpdateStatus(ctx context.Context, id string, to RideStatus) (*Ride, error)
	ReserveSeats(ctx context.Context, id string, seats int) (*Ride, error)
	ReleaseSeats(ctx context.Context, id string, seats int) (*Ride, error)
	RebuildDriverIndex(ctx context.Context) (int, error)
}
