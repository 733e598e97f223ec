package domain

import (
	"context"
	"time"
)

// DefaultRating is the rating every new user starts with
const DefaultRating = 5.0

// CarDetails describes a driver's vehicle. All four fields are required
// together when the owner is a driver.
type CarDetails struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Color string `json:"color"`
	Plate string `json:"plate"`
}

// Complete reports whether every field is filled in
func (c *CarDetails) Complete() bool {
	return c != nil && c.Make != "" && c.Model != "" && c.Color != "" && c.Plate != ""
}

// User represents a rider or driver profile. The ID is issued by the
// identity provider.
type User struct {
	ID         string      `json:"id"`
	Email      string      `json:"email"`
	Name       string      `json:"name"`
	Phone      string      `json:"phone,omitempty"`
	University string      `json:"university,omitempty"`
	IsDriver   bool        `json:"is_driver"`
	CarDetails *CarDetails `json:"car_details,omitempty"`
	Rating     float64     `json:"rating"`
	TotalRides int         `json:"total_rides"`
	CreatedAt  time.Time   `json:"created_at"`
}

// UserRepository defines data access for user profiles
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	IncrementTotalRides(ctx context.Context, id string) error
}
