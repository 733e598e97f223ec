// Package service holds the carpool use cases. Handlers call services;
// services call repositories, the identity provider and event publishers.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/yourorg/sity/internal/events"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// notifier publishes events without letting a broker outage fail the
// operation that produced them
type notifier struct {
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func newNotifier(publisher events.Publisher, logger *slog.Logger) notifier {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return notifier{publisher: publisher, logger: logger, now: time.Now}
}

func (n notifier) publish(ctx context.Context, event events.Event) {
	event.OccurredAt = n.now().UTC()
	if err := n.publisher.Publish(ctx, event); err != nil {
		n.logger.Warn("failed to publish event",
			slog.String("type", string(event.Type)),
			slog.String("ride_id", event.RideID),
			slog.String("error", err.Error()),
		)
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
