package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/yourorg/sity/internal/domain"
	"github.com/yourorg/sity/pkg/kv"
)

func TestRequestLifecycle(t *testing.T) {
	repo := NewRequestRepository(kv.NewMemoryStore(), nil)
	ctx := context.Background()

	req := &domain.RideRequest{RideID: "r1", RiderID: "u2", SeatsRequested: 2}
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if req.ID == "" || req.Status != domain.RequestPending {
		t.Fatalf("expected pending request with id, got %+v", req)
	}

	list, err := repo.ListForRide(ctx, "r1")
	if err != nil || len(list) != 1 || list[0].ID != req.ID {
		t.Fatalf("unexpected list %v (err=%v)", list, err)
	}

	accepted, err := repo.Transition(ctx, req.ID, domain.RequestPending, domain.RequestAccepted)
	if err != nil || accepted.Status != domain.RequestAccepted {
		t.Fatalf("accept failed: %+v (err=%v)", accepted, err)
	}
	if _, err := repo.Transition(ctx, req.ID, domain.RequestPending, domain.RequestRejected); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected stale transition to fail, got %v", err)
	}
	if _, err := repo.Transition(ctx, req.ID, domain.RequestAccepted, domain.RequestRejected); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected terminal transition to fail, got %v", err)
	}

	_, err = repo.GetByID(ctx, "missing")
	if !errors.Is(err, domain.ErrNotFound) || err.Error() != "Ride request not found" {
		t.Fatalf("expected not found, got %v", err)
	}

	empty, err := repo.ListForRide(ctx, "no-requests")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list, got %v (err=%v)", empty, err)
	}
}

func TestTransitionHasOneWinner(t *testing.T) {
	repo := NewRequestRepository(kv.NewMemoryStore(), nil)
	ctx := context.Background()
	req := &domain.RideRequest{RideID: "r1", RiderID: "u2", SeatsRequested: 1}
	_ = repo.Create(ctx, req)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Transition(ctx, req.ID, domain.RequestPending, domain.RequestAccepted); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}
