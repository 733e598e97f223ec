package worker

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/yourorg/sity/internal/domain"
	"github.com/yourorg/sity/internal/repository"
	"github.com/yourorg/sity/pkg/kv"
)

func TestRunOnceRestoresMissingIndexEntries(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	store := kv.NewMemoryStore()
	rides := repository.NewRideRepository(store, log)
	ctx := context.Background()

	ride := &domain.Ride{DriverID: "d1", DepartureLocation: "A", Destination: "B", DepartureTime: "2026-11-20T08:30", AvailableSeats: 2}
	if err := rides.Create(ctx, ride); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	// Simulate a lost index append
	if err := store.Set(ctx, "driver_rides:d1", []byte(`[]`)); err != nil {
		t.Fatalf("reset index: %v", err)
	}

	w := NewReconcileWorker(rides, log, time.Minute)
	repaired, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if repaired != 1 {
		t.Fatalf("expected 1 repaired entry, got %d", repaired)
	}
	ids, _ := rides.ListIDsForDriver(ctx, "d1")
	if !slices.Equal(ids, []string{ride.ID}) {
		t.Fatalf("expected index restored, got %v", ids)
	}

	if repaired, _ := w.RunOnce(ctx); repaired != 0 {
		t.Fatalf("expected second pass to be a no-op, got %d", repaired)
	}
}

type failingIndex struct{ calls int }

func (f *failingIndex) RebuildDriverIndex(context.Context) (int, error) {
	f.calls++
	return 0, errors.New("store unavailable")
}

func (f *failingIndex) ListActive(context.Context) ([]*domain.Ride, error) {
	return nil, nil
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	idx := &failingIndex{}
	w := NewReconcileWorker(idx, slog.New(slog.DiscardHandler), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop after cancel")
	}
	if idx.calls != 1 {
		t.Fatalf("expected exactly one pass, got %d", idx.calls)
	}
}
