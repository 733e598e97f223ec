package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sity_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sity_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	storeOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sity_store_operation_duration_seconds",
		Help:    "Duration of key-value store operations",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"backend", "op", "result"})

	rideOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sity_ride_operations_total",
		Help: "Count of ride lifecycle operations by result",
	}, []string{"op", "result"})

	requestDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sity_ride_request_operations_total",
		Help: "Count of ride request operations by result",
	}, []string{"op", "result"})

	indexRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sity_driver_index_repairs_total",
		Help: "Ride ids restored to driver indexes by the reconcile worker",
	})

	indexFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sity_driver_index_failures_total",
		Help: "Driver index appends that failed after the ride record was stored",
	})

	activeRides = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sity_active_rides",
		Help: "Number of rides in active status at the last reconcile",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveStoreOperation records a key-value store call
func ObserveStoreOperation(backend, op, result string, duration time.Duration) {
	storeOperationDuration.WithLabelValues(backend, op, result).Observe(duration.Seconds())
}

// ObserveRide counts a ride operation (create, complete, cancel) by result
func ObserveRide(op, result string) {
	rideOperations.WithLabelValues(op, result).Inc()
}

// ObserveRequest counts a ride request operation (create, accept, reject) by result
func ObserveRequest(op, result string) {
	requestDecisions.WithLabelValues(op, result).Inc()
}

// AddIndexRepairs adds n repaired driver index entries
func AddIndexRepairs(n int) {
	if n > 0 {
		indexRepairs.Add(float64(n))
	}
}

// IncIndexFailures counts a ride left out of its driver index
func IncIndexFailures() {
	indexFailures.Inc()
}

// SetActiveRides sets the active rides gauge to a specific count.
func SetActiveRides(count int) {
	if count < 0 {
		count = 0
	}
	activeRides.Set(float64(count))
}
