package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourorg/sity/internal/domain"
	"github.com/yourorg/sity/pkg/kv"
)

const userPrefix = "user:"

func userKey(id string) string { return userPrefix + id }

// UserRepository implements domain.UserRepository on a kv.Store
type UserRepository struct {
	store  kv.Store
	logger *slog.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(store kv.Store, logger *slog.Logger) *UserRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &UserRepository{
		store:  store,
		logger: logger,
	}
}

// Create stores a profile under the id issued by the identity provider
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		return fmt.Errorf("failed to create user: %w", domain.NewValidationError("user id is required"))
	}

	if err := kv.SetJSON(ctx, r.store, userKey(user.ID), user); err != nil {
		r.logger.Error("failed to create user",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := kv.GetJSON(ctx, r.store, userKey(id), &user)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, &domain.NotFoundError{Resource: "User", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// IncrementTotalRides bumps the completed ride counter atomically
func (r *UserRepository) IncrementTotalRides(ctx context.Context, id string) error {
	return kv.UpdateJSON(ctx, r.store, userKey(id), func(user *domain.User, exists bool) error {
		if !exists {
			return &domain.NotFoundError{Resource: "User", ID: id}
		}
		user.TotalRides++
		return nil
	})
}
