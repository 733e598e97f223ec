package domain

import (
	"context"
	"fmt"
	"time"
)

// RequestStatus is the lifecycle state of a ride request
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// CanTransition allows pending -> accepted and pending -> rejected only
func (from RequestStatus) CanTransition(to RequestStatus) error {
	if from == RequestPending && (to == RequestAccepted || to == RequestRejected) {
		return nil
	}
	return fmt.Errorf("request %s -> %s: %w", from, to, ErrInvalidTransition)
}

// RideRequest is a rider asking for seats on a ride
type RideRequest struct {
	ID             string        `json:"id"`
	RideID         string        `json:"ride_id"`
	RiderID        string        `json:"rider_id"`
	SeatsRequested int           `json:"seats_requested"`
	Status         RequestStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
}

// RideRequestRepository defines data access for ride requests
type RideRequestRepository interface {
	Create(ctx context.Context, req *RideRequest) error
	GetByID(ctx context.Context, id string) (*RideRequest, error)
	ListForRide(ctx context.Context, rideID string) ([]*RideRequest, error)
	Transition(ctx context.Context, id string, from, to RequestStatus) (*RideRequest, error)
}
