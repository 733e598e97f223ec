package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yourorg/sity/internal/domain"
	"github.com/yourorg/sity/internal/infrastructure/redis"
	"github.com/yourorg/sity/pkg/kv"
)

func newRide(driverID, departure string, seats int) *domain.Ride {
	return &domain.Ride{
		DriverID:          driverID,
		DepartureLocation: "North Campus",
		Destination:       "Downtown",
		DepartureTime:     departure,
		AvailableSeats:    seats,
		PricePerSeat:      7.5,
		Description:       "leaving from lot B",
		AllowBidUp:        true,
	}
}

func TestRideRoundTrip(t *testing.T) {
	repo := NewRideRepository(kv.NewMemoryStore(), nil)
	ctx := context.Background()

	in := newRide("d1", "2025-03-01T08:30", 3)
	if err := repo.Create(ctx, in); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if in.ID == "" || in.CreatedAt.IsZero() || in.Status != domain.RideActive {
		t.Fatalf("expected id, timestamp and active status, got %+v", in)
	}

	got, err := repo.GetByID(ctx, in.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !got.CreatedAt.Equal(in.CreatedAt) {
		t.Fatalf("created_at changed: %v vs %v", got.CreatedAt, in.CreatedAt)
	}
	got.CreatedAt = in.CreatedAt
	if *got != *in {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, in)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListIDsForDriver(t *testing.T) {
	repo := NewRideRepository(kv.NewMemoryStore(), nil)
	ctx := context.Background()

	ids, err := repo.ListIDsForDriver(ctx, "nobody")
	if err != nil || ids == nil || len(ids) != 0 {
		t.Fatalf("expected empty non-nil list, got %v (err=%v)", ids, err)
	}

	first := newRide("d1", "2025-03-01T08:30", 2)
	second := newRide("d1", "2025-03-02T08:30", 2)
	other := newRide("d2", "2025-03-02T08:30", 2)
	for _, r := range []*domain.Ride{first, second, other} {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	ids, _ = repo.ListIDsForDriver(ctx, "d1")
	if len(ids) != 2 || ids[0] != first.ID || ids[1] != second.ID {
		t.Fatalf("unexpected driver index %v", ids)
	}
}

func assertConcurrentCreates(t *testing.T, store kv.Store) {
	t.Helper()
	repo := NewRideRepository(store, nil)
	ctx := context.Background()
	const n = 20

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Create(ctx, newRide("busy-driver", "2025-03-01T08:30", 1))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	ids, err := repo.ListIDsForDriver(ctx, "busy-driver")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	seen := make(map[string]bool)
	for _, id := range ids {
		seen[id] = true
	}
	if len(ids) != n || len(seen) != n {
		t.Fatalf("expected %d distinct ids, got %d (%d distinct)", n, len(ids), len(seen))
	}
}

func TestConcurrentCreatesKeepEveryID(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		assertConcurrentCreates(t, kv.NewMemoryStore())
	})
	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		assertConcurrentCreates(t, redis.NewStoreFromClient(rdb, nil))
	})
}

func TestListActive(t *testing.T) {
	repo := NewRideRepository(kv.NewMemoryStore(), nil)
	ctx := context.Background()

	late := newRide("d1", "2025-03-03T09:00", 2)
	early := newRide("d1", "2025-03-01T09:00", 2)
	done := newRide("d2", "2025-03-02T09:00", 2)
	dropped := newRide("d2", "2025-03-02T10:00", 2)
	for _, r := range []*domain.Ride{late, early, done, dropped} {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	if _, err := repo.UpdateStatus(ctx, done.ID, domain.RideCompleted); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if _, err := repo.UpdateStatus(ctx, dropped.ID, domain.RideCancelled); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	rides, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rides) != 2 {
		t.Fatalf("expected 2 active rides, got %d", len(rides))
	}
	if rides[0].ID != early.ID || rides[1].ID != late.ID {
		t.Fatalf("expected rides ordered by departure time, got %s then %s", rides[0].DepartureTime, rides[1].DepartureTime)
	}
}

func TestListActiveTieBreaksOnCreation(t *testing.T) {
	repo := NewRideRepository(kv.NewMemoryStore(), nil)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	var created []string
	for i := 0; i < 3; i++ {
		r := newRide("d1", "2025-03-01T09:00", 1)
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		created = append(created, r.ID)
	}

	rides, _ := repo.ListActive(ctx)
	for i, r := range rides {
		if r.ID != created[i] {
			t.Fatalf("expected creation order on equal departure times")
		}
	}
}

func TestUpdateStatusIsMonotonic(t *testing.T) {
	repo := NewRideRepository(kv.NewMemoryStore(), nil)
	ctx := context.Background()
	ride := newRide("d1", "2025-03-01T09:00", 2)
	_ = repo.Create(ctx, ride)

	if _, err := repo.UpdateStatus(ctx, ride.ID, domain.RideCancelled); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := repo.UpdateStatus(ctx, ride.ID, domain.RideActive); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := repo.UpdateStatus(ctx, ride.ID, domain.RideCompleted); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := repo.UpdateStatus(ctx, "missing", domain.RideCompleted); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReserveSeats(t *testing.T) {
	repo := NewRideRepository(kv.NewMemoryStore(), nil)
	ctx := context.Background()
	ride := newRide("d1", "2025-03-01T09:00", 3)
	_ = repo.Create(ctx, ride)

	updated, err := repo.ReserveSeats(ctx, ride.ID, 2)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if updated.AvailableSeats != 1 {
		t.Fatalf("expected 1 seat left, got %d", updated.AvailableSeats)
	}

	if _, err := repo.ReserveSeats(ctx, ride.ID, 2); !errors.Is(err, domain.ErrInsufficientSeats) {
		t.Fatalf("expected ErrInsufficientSeats, got %v", err)
	}
	stored, _ := repo.GetByID(ctx, ride.ID)
	if stored.AvailableSeats != 1 {
		t.Fatalf("failed reservation changed seats to %d", stored.AvailableSeats)
	}

	if _, err := repo.ReleaseSeats(ctx, ride.ID, 2); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	stored, _ = repo.GetByID(ctx, ride.ID)
	if stored.AvailableSeats != 3 {
		t.Fatalf("expected 3 seats after release, got %d", stored.AvailableSeats)
	}

	_, _ = repo.UpdateStatus(ctx, ride.ID, domain.RideCompleted)
	if _, err := repo.ReserveSeats(ctx, ride.ID, 1); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected reservation on completed ride to fail, got %v", err)
	}
}

func TestConcurrentReservationsNeverOverbook(t *testing.T) {
	repo := NewRideRepository(kv.NewMemoryStore(), nil)
	ctx := context.Background()
	ride := newRide("d1", "2025-03-01T09:00", 4)
	_ = repo.Create(ctx, ride)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ReserveSeats(ctx, ride.ID, 1); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	stored, _ := repo.GetByID(ctx, ride.ID)
	if granted != 4 || stored.AvailableSeats != 0 {
		t.Fatalf("expected 4 grants and 0 seats, got %d grants and %d seats", granted, stored.AvailableSeats)
	}
}

// indexOutageStore fails every read-modify-write on driver indexes
type indexOutageStore struct {
	kv.Store
}

func (s indexOutageStore) Update(ctx context.Context, key string, fn kv.UpdateFunc) error {
	if strings.HasPrefix(key, driverRidesPrefix) {
		return context.DeadlineExceeded
	}
	return s.Store.Update(ctx, key, fn)
}

func TestCreateSurvivesIndexOutage(t *testing.T) {
	store := kv.NewMemoryStore()
	ctx := context.Background()

	ride := newRide("d1", "2025-03-01T09:00", 2)
	if err := NewRideRepository(indexOutageStore{store}, nil).Create(ctx, ride); err != nil {
		t.Fatalf("a stored ride must not be reported as failed: %v", err)
	}

	repo := NewRideRepository(store, nil)
	active, err := repo.ListActive(ctx)
	if err != nil || len(active) != 1 || active[0].ID != ride.ID {
		t.Fatalf("expected the ride to be live, got %v (err=%v)", active, err)
	}
	if ids, _ := repo.ListIDsForDriver(ctx, "d1"); len(ids) != 0 {
		t.Fatalf("expected the index append to be missing, got %v", ids)
	}

	if repaired, err := repo.RebuildDriverIndex(ctx); err != nil || repaired != 1 {
		t.Fatalf("expected reconcile to restore 1 entry, got %d (err=%v)", repaired, err)
	}
	if ids, _ := repo.ListIDsForDriver(ctx, "d1"); len(ids) != 1 || ids[0] != ride.ID {
		t.Fatalf("expected restored index [%s], got %v", ride.ID, ids)
	}
}

func TestRebuildDriverIndex(t *testing.T) {
	store := kv.NewMemoryStore()
	repo := NewRideRepository(store, nil)
	ctx := context.Background()

	a := newRide("d1", "2025-03-01T09:00", 1)
	b := newRide("d1", "2025-03-02T09:00", 1)
	_ = repo.Create(ctx, a)
	_ = repo.Create(ctx, b)

	// Simulate an index append that never landed.
	if err := kv.SetJSON(ctx, store, driverRidesKey("d1"), []string{a.ID}); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	repaired, err := repo.RebuildDriverIndex(ctx)
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if repaired != 1 {
		t.Fatalf("expected 1 repaired entry, got %d", repaired)
	}
	ids, _ := repo.ListIDsForDriver(ctx, "d1")
	if len(ids) != 2 {
		t.Fatalf("expected both rides indexed, got %v", ids)
	}

	repaired, _ = repo.RebuildDriverIndex(ctx)
	if repaired != 0 {
		t.Fatalf("expected rebuild to be idempotent, repaired %d", repaired)
	}
}
