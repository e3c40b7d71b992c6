package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MirrorMetrics covers the optional Kafka copy of relayed blocks.
type MirrorMetrics struct {
	AttemptsTotal    prometheus.Counter
	BlocksTotal      prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	AttemptLatencyMS prometheus.Histogram
	LastHeight       prometheus.Gauge
}

var (
	mirrorOnce sync.Once
	mirror     *MirrorMetrics
)

func Mirror() *MirrorMetrics {
	mirrorOnce.Do(func() {
		f := promauto.With(Registerer())
		mirror = &MirrorMetrics{
			AttemptsTotal: f.NewCounter(prometheus.CounterOpts{
				Name: "mirror_produce_attempts_total",
				Help: "block produce attempts sent to kafka",
			}),
			BlocksTotal: f.NewCounter(prometheus.CounterOpts{
				Name: "mirror_blocks_total",
				Help: "blocks acknowledged by kafka",
			}),
			ErrorsTotal: f.NewCounterVec(
				prometheus.CounterOpts{Name: "mirror_produce_errors_total", Help: "failed produce attempts by kafka error"},
				[]string{"reason"},
			),
			AttemptLatencyMS: f.NewHistogram(prometheus.HistogramOpts{
				Name:    "mirror_produce_latency_ms",
				Help:    "latency of one produce attempt (ms)",
				Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
			}),
			LastHeight: f.NewGauge(prometheus.GaugeOpts{
				Name: "mirror_last_block_height",
				Help: "height of the last block acknowledged by kafka",
			}),
		}
	})
	return mirror
}
