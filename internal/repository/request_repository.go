package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/sity/internal/domain"
	"github.com/yourorg/sity/pkg/kv"
)

const (
	requestPrefix      = "ride_request:"
	rideRequestsPrefix = "ride_requests:"
)

func requestKey(id string) string          { return requestPrefix + id }
func rideRequestsKey(rideID string) string { return rideRequestsPrefix + rideID }

// RequestRepository implements domain.RideRequestRepository on a kv.Store
type RequestRepository struct {
	store  kv.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRequestRepository creates a new ride request repository
func NewRequestRepository(store kv.Store, logger *slog.Logger) *RequestRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &RequestRepository{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Create stores a pending request and indexes it under its ride
func (r *RequestRepository) Create(ctx context.Context, req *domain.RideRequest) error {
	req.ID = uuid.NewString()
	req.CreatedAt = r.now().UTC()
	req.Status = domain.RequestPending

	if err := kv.SetJSON(ctx, r.store, requestKey(req.ID), req); err != nil {
		return fmt.Errorf("failed to store ride request: %w", err)
	}

	err := kv.UpdateJSON(ctx, r.store, rideRequestsKey(req.RideID), func(ids *[]string, _ bool) error {
		*ids = append(*ids, req.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to index ride request: %w", err)
	}

	r.logger.Debug("ride request saved",
		slog.String("request_id", req.ID),
		slog.String("ride_id", req.RideID),
	)
	return nil
}

// GetByID retrieves a ride request by ID
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*domain.RideRequest, error) {
	var req domain.RideRequest
	err := kv.GetJSON(ctx, r.store, requestKey(id), &req)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, &domain.NotFoundError{Resource: "Ride request", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ride request: %w", err)
	}
	return &req, nil
}

// ListForRide returns a ride's requests, oldest first. Index entries whose
// record is missing are skipped.
func (r *RequestRepository) ListForRide(ctx context.Context, rideID string) ([]*domain.RideRequest, error) {
	var ids []string
	err := kv.GetJSON(ctx, r.store, rideRequestsKey(rideID), &ids)
	if errors.Is(err, kv.ErrNotFound) {
		return []*domain.RideRequest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ride requests: %w", err)
	}

	requests := make([]*domain.RideRequest, 0, len(ids))
	for _, id := range ids {
		req, err := r.GetByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn("indexed ride request missing", slog.String("request_id", id))
			continue
		}
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})
	return requests, nil
}

// Transition moves a request from `from` to `to` atomically. It fails with
// ErrInvalidTransition when the stored status is no longer `from`.
func (r *RequestRepository) Transition(ctx context.Context, id string, from, to domain.RequestStatus) (*domain.RideRequest, error) {
	if err := from.CanTransition(to); err != nil {
		return nil, err
	}

	var updated domain.RideRequest
	err := kv.UpdateJSON(ctx, r.store, requestKey(id), func(req *domain.RideRequest, exists bool) error {
		if !exists {
			return &domain.NotFoundError{Resource: "Ride request", ID: id}
		}
		if req.Status != from {
			return fmt.Errorf("request is %s, expected %s: %w", req.Status, from, domain.ErrInvalidTransition)
		}
		req.Status = to
		updated = *req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
