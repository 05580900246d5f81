package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	droppedWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hospitalai_store_dropped_writes_total",
			Help: "Total number of best-effort persistence writes that were swallowed",
		},
		[]string{"kind"},
	)

	writesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hospitalai_store_writes_total",
			Help: "Total number of persistence writes attempted",
		},
		[]string{"kind"},
	)
)

// RecordWrite counts an attempted persistence write of the given kind
func RecordWrite(kind string) {
	writesTotal.WithLabelValues(kind).Inc()
}

// RecordDroppedWrite counts a swallowed persistence failure so best-effort
// drops stay observable instead of silent.
func RecordDroppedWrite(kind string) {
	droppedWrites.WithLabelValues(kind).Inc()
}
