package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yourorg/sity/internal/domain"
	"github.com/yourorg/sity/pkg/kv"
)

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository(kv.NewMemoryStore(), nil)
	ctx := context.Background()

	user := &domain.User{
		ID:         "u1",
		Email:      "student@school.edu",
		Name:       "Sam",
		IsDriver:   true,
		CarDetails: &domain.CarDetails{Make: "Toyota", Model: "Prius", Color: "Silver", Plate: "SITY1"},
		Rating:     domain.DefaultRating,
		CreatedAt:  time.Now().UTC(),
	}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "u1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Email != user.Email || got.CarDetails.Plate != "SITY1" || got.Rating != 5.0 {
		t.Fatalf("unexpected user %+v", got)
	}

	if err := repo.IncrementTotalRides(ctx, "u1"); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	got, _ = repo.GetByID(ctx, "u1")
	if got.TotalRides != 1 {
		t.Fatalf("expected 1 ride, got %d", got.TotalRides)
	}

	_, err = repo.GetByID(ctx, "ghost")
	if !errors.Is(err, domain.ErrNotFound) || err.Error() != "User not found" {
		t.Fatalf("expected User not found, got %v", err)
	}
	if err := repo.IncrementTotalRides(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Create(ctx, &domain.User{Email: "x@y.edu"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for missing id, got %v", err)
	}
}
