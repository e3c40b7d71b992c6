package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type SourceMetrics struct {
	ReceivedBlocksTotal *prometheus.CounterVec
	SkippedBlocksTotal  *prometheus.CounterVec
	DecodeErrorsTotal   prometheus.Counter
	HandlerErrorsTotal  prometheus.Counter
	Connected           prometheus.Gauge
}

var (
	sourceOnce sync.Once
	source     *SourceMetrics
)

func Source() *SourceMetrics {
	sourceOnce.Do(func() {
		r := Registerer()
		source = &SourceMetrics{
			ReceivedBlocksTotal: promauto.With(r).NewCounterVec(
				prometheus.CounterOpts{
					Name: "source_received_blocks_total",
					Help: "blocks delivered by the stream source",
				},
				[]string{"network"},
			),
			SkippedBlocksTotal: promauto.With(r).NewCounterVec(
				prometheus.CounterOpts{
					Name: "source_skipped_blocks_total",
					Help: "blocks dropped by the source before the handler, by reason",
				},
				[]string{"reason"},
			),
			DecodeErrorsTotal: promauto.With(r).NewCounter(prometheus.CounterOpts{
				Name: "source_decode_errors_total",
				Help: "stream messages that could not be decoded into a block",
			}),
			HandlerErrorsTotal: promauto.With(r).NewCounter(prometheus.CounterOpts{
				Name: "source_handler_errors_total",
				Help: "block handler failures that stopped the source",
			}),
			Connected: promauto.With(r).NewGauge(prometheus.GaugeOpts{
				Name: "source_connected",
				Help: "stream source connectivity (1=connected,0=disconnected)",
			}),
		}
	})
	return source
}
