// Package metrics provides Prometheus metrics for razor's file operations.
package metrics

import (
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

const namespacePrefix = "razor_"

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "razor_operations_total",
			Help: "Total number of finished file operations",
		},
		[]string{"kind", "result"},
	)

	bytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "razor_bytes_transferred_total",
			Help: "Total bytes copied, moved or deleted",
		},
		[]string{"kind"},
	)

	conflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "razor_conflicts_total",
			Help: "Total naming conflicts by decision",
		},
		[]string{"decision"},
	)

	operationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "razor_operations_in_flight",
			Help: "Number of operations currently running",
		},
	)
)

// RecordOperationStart marks an operation as running.
func RecordOperationStart() {
	operationsInFlight.Inc()
}

// RecordOperationEnd records the outcome of a finished operation.
func RecordOperationEnd(kind string, err error) {
	operationsInFlight.Dec()
	result := "success"
	if err != nil {
		result = "error"
	}
	operationsTotal.WithLabelValues(kind, result).Inc()
}

// RecordBytes adds n transferred bytes for kind.
func RecordBytes(kind string, n int64) {
	if n > 0 {
		bytesTransferred.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordConflict counts one resolved conflict.
func RecordConflict(decision string) {
	conflictsTotal.WithLabelValues(decision).Inc()
}

// WriteText writes razor's metrics from the default registry in the
// Prometheus text exposition format.
func WriteText(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), namespacePrefix) {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
