// Package metrics provides Prometheus metrics for the outlook service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"outlook_service/internal/app/apperr"
)

const resultOK = "ok"

// Metrics groups the collectors registered by New. A nil *Metrics records nothing.
type Metrics struct {
	// StoreOperations counts store calls by operation and result kind
	StoreOperations *prometheus.CounterVec
	// StoreDuration tracks store call duration in seconds
	StoreDuration *prometheus.HistogramVec
	// IngestRecords counts ingested records by entity and result
	IngestRecords *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StoreOperations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "outlook",
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Total number of store operations by result",
			},
			[]string{"op", "result"},
		),
		StoreDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "outlook",
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Duration of store operations in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
			},
			[]string{"op"},
		),
		IngestRecords: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "outlook",
				Subsystem: "ingest",
				Name:      "records_total",
				Help:      "Total number of ingested records by entity and result",
			},
			[]string{"entity", "result"},
		),
	}
}

// ObserveStore records one store call. kind is the error kind of a failed call.
func (m *Metrics) ObserveStore(op string, kind apperr.Kind, failed bool, d time.Duration) {
	if m == nil {
		return
	}
	result := resultOK
	if failed {
		result = string(kind)
		if result == "" {
			result = "error"
		}
	}
	m.StoreOperations.WithLabelValues(op, result).Inc()
	m.StoreDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) ObserveIngest(entity, result string) {
	if m == nil {
		return
	}
	m.IngestRecords.WithLabelValues(entity, result).Inc()
}
