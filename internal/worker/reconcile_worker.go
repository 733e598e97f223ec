package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/sity/internal/domain"
	"github.com/yourorg/sity/internal/observability/metrics"
)

// RideIndex is the part of the ride repository the worker needs
type RideIndex interface {
	RebuildDriverIndex(ctx context.Context) (int, error)
	ListActive(ctx context.Context) ([]*domain.Ride, error)
}

// ReconcileWorker periodically repairs driver ride indexes from the ride
// records and refreshes the active rides gauge. A ride whose index append
// failed at creation reappears under its driver on the next pass.
type ReconcileWorker struct {
	rides    RideIndex
	logger   *slog.Logger
	interval time.Duration
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(rides RideIndex, logger *slog.Logger, interval time.Duration) *ReconcileWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileWorker{rides: rides, logger: logger, interval: interval}
}

// Start runs one pass immediately, then one per interval until ctx is done
func (w *ReconcileWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("reconcile worker started", slog.Duration("interval", w.interval))
	w.run(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconcile worker stopped")
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

func (w *ReconcileWorker) run(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("reconcile pass failed", slog.String("error", err.Error()))
	}
}

// RunOnce performs a single pass and returns how many index entries it
// restored
func (w *ReconcileWorker) RunOnce(ctx context.Context) (int, error) {
	active, err := w.rides.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count active rides: %w", err)
	}
	metrics.SetActiveRides(len(active))

	repaired, err := w.rides.RebuildDriverIndex(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to rebuild driver index: %w", err)
	}
	metrics.AddIndexRepairs(repaired)

	if repaired > 0 {
		w.logger.Warn("driver ride index repaired", slog.Int("restored", repaired))
	} else {
		w.logger.Debug("driver ride index consistent", slog.Int("active_rides", len(active)))
	}
	return repaired, nil
}
