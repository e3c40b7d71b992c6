package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type SinkMetrics struct {
	OpsTotal      *prometheus.CounterVec
	OpErrorsTotal *prometheus.CounterVec
	OpLatencyMS   *prometheus.HistogramVec
	LockWaitMS    prometheus.Histogram
}

var (
	sinkOnce sync.Once
	sink     *SinkMetrics
)

// Sink returns the metrics of the shared Redis publisher. The op label is one
// of get, set, publish or ping.
func Sink() *SinkMetrics {
	sinkOnce.Do(func() {
		r := Registerer()
		sink = &SinkMetrics{
			OpsTotal: promauto.With(r).NewCounterVec(
				prometheus.CounterOpts{Name: "sink_ops_total", Help: "sink round trips by operation"},
				[]string{"op"},
			),
			OpErrorsTotal: promauto.With(r).NewCounterVec(
				prometheus.CounterOpts{Name: "sink_op_errors_total", Help: "failed sink round trips by operation"},
				[]string{"op"},
			),
			OpLatencyMS: promauto.With(r).NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "sink_op_latency_ms",
					Help:    "sink round trip latency (ms)",
					Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000},
				},
				[]string{"op"},
			),
			LockWaitMS: promauto.With(r).NewHistogram(prometheus.HistogramOpts{
				Name:    "sink_lock_wait_ms",
				Help:    "time spent waiting for exclusive access to the sink connection (ms)",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500},
			}),
		}
	})
	return sink
}
