// Package events carries ride and request lifecycle notifications to
// interested consumers. Publishing is best-effort: callers log failures and
// carry on.
package events

import (
	"context"
	"errors"
	"time"
)

// Type names an event; it doubles as the AMQP routing key
type Type string

const (
	RideCreated     Type = "ride.created"
	RideCompleted   Type = "ride.completed"
	RideCancelled   Type = "ride.cancelled"
	RequestCreated  Type = "request.created"
	RequestAccepted Type = "request.accepted"
	RequestRejected Type = "request.rejected"
)

// Event is the payload sent to every publisher
type Event struct {
	Type       Type      `json:"type"`
	RideID     string    `json:"ride_id"`
	RequestID  string    `json:"request_id,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	Data       any       `json:"data,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers events somewhere
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Multi fans an event out to every publisher and joins their errors
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
