package metrics

import (
	"errors"
	"time"

	"github.com/ayukmr/lixel-server/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels recorded for each canvas operation.
const (
	OutcomeOK           = "ok"
	OutcomeNotFound     = "not_found"
	OutcomeOutOfBounds  = "out_of_bounds"
	OutcomeStorageError = "storage_error"
	OutcomeError        = "error"
)

// Metrics tracks canvas service operations.
//
// Usage:
//
//	m := metrics.New(prometheus.DefaultRegisterer)
//	start := time.Now()
//	err := doPatch()
//	m.Observe("patch", start, err)
type Metrics struct {
	// OperationCounter counts operations.
	// Labels: operation (create|delete|content|patch), outcome
	OperationCounter *prometheus.CounterVec

	// OperationDuration measures the full load/transform/save cycle in seconds.
	// Labels: operation
	OperationDuration *prometheus.HistogramVec
}

// New creates the canvas metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OperationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lixel_canvas_operations_total",
				Help: "Total number of canvas operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lixel_canvas_operation_duration_seconds",
				Help:    "Duration of canvas operations in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation"},
		),
	}
}

// Observe records one finished operation. A nil receiver records nothing.
func (m *Metrics) Observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.OperationCounter.WithLabelValues(operation, Outcome(err)).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Outcome classifies an operation error into a metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, core.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, core.ErrOutOfBounds):
		return OutcomeOutOfBounds
	case core.IsStorageError(err):
		return OutcomeStorageError
	default:
		return OutcomeError
	}
}
