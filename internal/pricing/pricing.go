// Package pricing computes ride prices in whole dollars.
package pricing

import (
	"errors"
	"fmt"
	"math"
)

const (
	PerMile           = 1.50
	PerMinute         = 0.25
	PerMileExtraRider = 0.10
)

// ErrInvalidArgument is returned for negative, NaN or infinite inputs and for
// fewer than one passenger. Inputs are never clamped.
var ErrInvalidArgument = errors.New("invalid pricing argument")

// Calculate returns the total ride price rounded half-up to whole dollars.
func Calculate(distanceMiles, durationMinutes float64, totalPassengers int) (int, error) {
	q, err := Estimate(distanceMiles, durationMinutes, totalPassengers)
	if err != nil {
		return 0, err
	}
	return q.Total, nil
}

// Quote is the breakdown behind a price
type Quote struct {
	DistanceMiles   float64 `json:"distance_miles"`
	DurationMinutes float64 `json:"duration_minutes"`
	Passengers      int     `json:"passengers"`
	BaseCost        float64 `json:"base_cost"`
	ExtraCost       float64 `json:"extra_cost"`
	Total           int     `json:"total"`
	PerPassenger    float64 `json:"per_passenger"`
}

// Estimate computes the full quote
func Estimate(distanceMiles, durationMinutes float64, totalPassengers int) (Quote, error) {
	if err := checkNonNegative("distance", distanceMiles); err != nil {
		return Quote{}, err
	}
	if err := checkNonNegative("duration", durationMinutes); err != nil {
		return Quote{}, err
	}
	if totalPassengers < 1 {
		return Quote{}, fmt.Errorf("passengers must be at least 1, got %d: %w", totalPassengers, ErrInvalidArgument)
	}

	base := distanceMiles*PerMile + durationMinutes*PerMinute
	extra := distanceMiles * PerMileExtraRider * float64(totalPassengers-1)
	total := roundHalfUp(base + extra)

	return Quote{
		DistanceMiles:   distanceMiles,
		DurationMinutes: durationMinutes,
		Passengers:      totalPassengers,
		BaseCost:        base,
		ExtraCost:       extra,
		Total:           int(total),
		PerPassenger:    roundHalfUp(total/float64(totalPassengers)*100) / 100,
	}, nil
}

func checkNonNegative(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%s must be a finite non-negative number, got %v: %w", name, v, ErrInvalidArgument)
	}
	return nil
}

func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
